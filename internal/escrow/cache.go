package escrow

import (
	"sync"
	"time"
)

// infoCache is a small TTL cache for get_escrow_info results, keyed by PDA.
// The sweeper and the webhook handler both poll the same job's escrow
// account within seconds of each other; caching avoids hammering the RPC
// endpoint for no new information.
type infoCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	info      *EscrowInfo
	expiresAt time.Time
}

func newInfoCache(ttl time.Duration) *infoCache {
	return &infoCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *infoCache) get(pda string) (*EscrowInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[pda]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.info, true
}

func (c *infoCache) set(pda string, info *EscrowInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[pda] = cacheEntry{info: info, expiresAt: time.Now().Add(c.ttl)}
}
