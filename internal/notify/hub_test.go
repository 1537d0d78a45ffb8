package notify

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func testHubServer(t *testing.T, h *Hub, agentID string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if agentID == townSquareGroup {
			_ = h.ServeTownSquare(w, r)
			return
		}
		_ = h.ServePersonal(w, r, agentID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNotifyDeliversToPersonalGroup(t *testing.T) {
	h := NewHub(zap.NewNop(), nil)
	srv := testHubServer(t, h, "agent_1")
	conn := dialWS(t, srv)

	waitForConnCount(t, h, "agent_1", 1)

	h.Notify("agent_1", "job_completed", map[string]string{"job_id": "job_42"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	if evt.Type != "job_completed" {
		t.Errorf("expected job_completed, got %q", evt.Type)
	}
}

func TestNotifyDoesNotCrossDeliverBetweenAgents(t *testing.T) {
	h := NewHub(zap.NewNop(), nil)
	srv := testHubServer(t, h, "agent_1")
	conn := dialWS(t, srv)
	waitForConnCount(t, h, "agent_1", 1)

	h.Notify("agent_2", "job_completed", nil)

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var evt Event
	err := conn.ReadJSON(&evt)
	if err == nil {
		t.Fatalf("expected timeout, got event %+v", evt)
	}
}

func TestBroadcastTownSquareReachesAllSubscribers(t *testing.T) {
	h := NewHub(zap.NewNop(), nil)
	srv := testHubServer(t, h, townSquareGroup)
	c1 := dialWS(t, srv)
	c2 := dialWS(t, srv)
	waitForConnCount(t, h, townSquareGroup, 2)

	h.BroadcastTownSquare("chat_message", map[string]string{"body": "hello town"})

	for _, conn := range []*websocket.Conn{c1, c2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var evt Event
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("read: %v", err)
		}
		if evt.Type != "chat_message" {
			t.Errorf("expected chat_message, got %q", evt.Type)
		}
	}
}

func waitForConnCount(t *testing.T, h *Hub, group string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ConnectionCount(group) >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d connections on group %q", want, group)
}
