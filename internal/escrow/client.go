// Package escrow is a thin typed client over an external Solana-compatible
// escrow program, reached over JSON-RPC-over-HTTP. The wire shape (request
// envelope, response envelope, typed RPC error) is grounded on the teacher
// pack's r3e-network-service_layer chain client; the PDA-derivation and
// transaction-building logic is this spec's own, since the teacher's chain
// client targets Neo N3 (neo-go actor/wallet types) and has no PDA concept.
package escrow

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/moltcities/backend/internal/cryptoutil"
)

// Status is the on-chain escrow account's lifecycle state.
type Status string

const (
	StatusActive        Status = "active"
	StatusPendingReview  Status = "pending_review"
	StatusReleased       Status = "released"
	StatusRefunded       Status = "refunded"
)

// EscrowInfo is the decoded on-chain escrow account.
type EscrowInfo struct {
	Exists  bool    `json:"exists"`
	Balance int64   `json:"balance"`
	Status  Status  `json:"status"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// rpcRequest mirrors the teacher's chain.RPCRequest shape.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

// rpcResponse mirrors the teacher's chain.RPCResponse shape.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError mirrors the teacher's chain.RPCError shape.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("escrow rpc error %d: %s", e.Code, e.Message)
}

// Client talks JSON-RPC to the configured escrow program endpoint.
type Client struct {
	rpcURL         string
	platformWallet string // base58 platform wallet pubkey, signs privileged calls
	httpClient     *http.Client
	infoCache      *infoCache
}

// Config configures a Client.
type Config struct {
	RPCURL         string
	PlatformWallet string
	Timeout        time.Duration
	HTTPClient     *http.Client
	CacheTTL       time.Duration // get_escrow_info result cache
}

// NewClient builds a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("escrow: rpc url required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 10 * time.Second
	}
	return &Client{
		rpcURL:         cfg.RPCURL,
		platformWallet: cfg.PlatformWallet,
		httpClient:     httpClient,
		infoCache:      newInfoCache(ttl),
	}, nil
}

// call performs one JSON-RPC round trip, the same request/response/error
// shape as the teacher's chain.Client.Call.
func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("escrow: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("escrow: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("escrow: rpc call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("escrow: rpc http error %d for %s", resp.StatusCode, method)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("escrow: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// DerivePDA computes the deterministic program-derived address for a job's
// escrow account from (job_id, poster_wallet). Unlike a real Solana PDA
// (which walks bump seeds against ed25519's curve-membership check), this
// is a SHA-256-derived, Base58-encoded stand-in with the same determinism
// property the spec requires: the same (job_id, poster_wallet) pair always
// derives the same address, computable before any on-chain transaction
// exists.
func DerivePDA(jobID, posterWallet string) string {
	h := sha256.Sum256([]byte("moltcities-escrow|" + jobID + "|" + posterWallet))
	return cryptoutil.Base58Encode(h[:])
}

// UnsignedTx is a serialized transaction awaiting a client signature.
type UnsignedTx struct {
	Base64       string `json:"transaction"`
	EscrowPDA    string `json:"escrow_pda"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// BuildCreateEscrowTx builds an unsigned create_escrow transaction for the
// poster to sign. amount is reward_lamports; expiry is fixed at 30 days.
func (c *Client) BuildCreateEscrowTx(ctx context.Context, jobID, posterWallet string, amountLamports int64) (*UnsignedTx, error) {
	pda := DerivePDA(jobID, posterWallet)
	result, err := c.call(ctx, "build_create_escrow", []interface{}{jobID, posterWallet, amountLamports, pda})
	if err != nil {
		return nil, fmt.Errorf("escrow: build create tx: %w", err)
	}
	var tx UnsignedTx
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, fmt.Errorf("escrow: decode create tx: %w", err)
	}
	tx.EscrowPDA = pda
	tx.ExpiresAt = time.Now().UTC().Add(30 * 24 * time.Hour)
	return &tx, nil
}

// BuildSubmitWorkTx builds an unsigned submit_work transaction for the
// worker to sign, embedding an optional SHA-256 proof hash of the
// submission text.
func (c *Client) BuildSubmitWorkTx(ctx context.Context, jobID, workerWallet, submissionText string) (*UnsignedTx, error) {
	var proofHash string
	if submissionText != "" {
		h := sha256.Sum256([]byte(submissionText))
		proofHash = fmt.Sprintf("%x", h)
	}
	result, err := c.call(ctx, "build_submit_work", []interface{}{jobID, workerWallet, proofHash})
	if err != nil {
		return nil, fmt.Errorf("escrow: build submit tx: %w", err)
	}
	var tx UnsignedTx
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, fmt.Errorf("escrow: decode submit tx: %w", err)
	}
	return &tx, nil
}

// PlatformWallet returns the configured platform wallet's base58 pubkey,
// the "poster wallet" for platform_funded jobs.
func (c *Client) PlatformWallet() string {
	return c.platformWallet
}

// Ping checks that the ledger RPC endpoint is reachable, for /healthz.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, "getHealth", nil)
	return err
}

// FundFromPlatform synchronously creates and funds an escrow from the
// platform wallet, for platform_funded job postings that skip the
// poster-signs-a-transaction flow entirely.
func (c *Client) FundFromPlatform(ctx context.Context, jobID string, amountLamports int64) (signature string, err error) {
	if c.platformWallet == "" {
		return "", fmt.Errorf("escrow: platform-funded jobs require a configured platform wallet")
	}
	pda := DerivePDA(jobID, c.platformWallet)
	result, err := c.call(ctx, "fund_escrow_platform", []interface{}{jobID, c.platformWallet, amountLamports, pda})
	if err != nil {
		return "", fmt.Errorf("escrow: fund_escrow_platform: %w", err)
	}
	var out struct {
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return "", fmt.Errorf("escrow: decode fund_escrow_platform: %w", err)
	}
	return out.Signature, nil
}

// ReleaseToWorker is a platform-wallet-signed privileged release.
func (c *Client) ReleaseToWorker(ctx context.Context, jobID, workerWallet string) (signature string, err error) {
	return c.privilegedCall(ctx, "release_to_worker", jobID, workerWallet)
}

// RefundToPoster is a platform-wallet-signed privileged refund.
func (c *Client) RefundToPoster(ctx context.Context, jobID, posterWallet string) (signature string, err error) {
	return c.privilegedCall(ctx, "refund_to_poster", jobID, posterWallet)
}

// AutoRelease is the permissionless crank invoked after the on-chain review
// window has elapsed — any caller may submit it, so it is tried before the
// platform-signed fallback.
func (c *Client) AutoRelease(ctx context.Context, jobID string) (signature string, err error) {
	result, err := c.call(ctx, "auto_release", []interface{}{jobID})
	if err != nil {
		return "", fmt.Errorf("escrow: auto_release: %w", err)
	}
	var out struct {
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return "", fmt.Errorf("escrow: decode auto_release: %w", err)
	}
	return out.Signature, nil
}

func (c *Client) privilegedCall(ctx context.Context, method, jobID, counterparty string) (string, error) {
	if c.platformWallet == "" {
		return "", fmt.Errorf("escrow: %s requires a configured platform wallet", method)
	}
	result, err := c.call(ctx, method, []interface{}{jobID, counterparty, c.platformWallet})
	if err != nil {
		return "", fmt.Errorf("escrow: %s: %w", method, err)
	}
	var out struct {
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return "", fmt.Errorf("escrow: decode %s: %w", method, err)
	}
	return out.Signature, nil
}

// GetEscrowInfo reads the on-chain escrow account, caching results for a
// short TTL since the sweeper and webhook handler both poll the same jobs.
func (c *Client) GetEscrowInfo(ctx context.Context, jobID, posterWallet string) (*EscrowInfo, error) {
	pda := DerivePDA(jobID, posterWallet)
	if cached, ok := c.infoCache.get(pda); ok {
		return cached, nil
	}

	result, err := c.call(ctx, "get_escrow_info", []interface{}{pda})
	if err != nil {
		return nil, fmt.Errorf("escrow: get_escrow_info: %w", err)
	}

	var info EscrowInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, fmt.Errorf("escrow: decode escrow info: %w", err)
	}
	info.Status = Status(strings.ToLower(string(info.Status)))
	c.infoCache.set(pda, &info)
	return &info, nil
}
