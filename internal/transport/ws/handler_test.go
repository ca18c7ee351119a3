package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	authsvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/auth"
	presencesvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/presence"
	queuesvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/queue"
	sessionsvc "github.com/Baltyara/boltaiznakomsya-sub000/internal/services/sessions"
)

func newHandlerTestServer(t *testing.T) (*httptest.Server, *queuesvc.Service, *presencesvc.Service, string) {
	t.Helper()

	sessions := sessionsvc.NewService(sessionsvc.Dependencies{})
	presenceService := presencesvc.NewService(presencesvc.Dependencies{Sessions: sessions})
	queueService := queuesvc.NewService(queuesvc.Dependencies{
		Sessions: sessions,
		Presence: presenceService,
	})

	tokens := authsvc.NewJWTManager("handler-test-secret", time.Minute)
	dispatcher := NewDispatcher(DispatcherDependencies{Queue: queueService})
	handler := NewHandler(HandlerDependencies{
		Presence:   presenceService,
		Queue:      queueService,
		Dispatcher: dispatcher,
		Tokens:     tokens,
	})

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	signed, _, err := tokens.GenerateAccessToken(1, "sid-1")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	return ts, queueService, presenceService, signed
}

func dialSocket(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?token=" + token
	sock, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = sock.Close() })
	return sock
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHandlerRejectsBadToken(t *testing.T) {
	ts, _, _, _ := newHandlerTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?token=garbage"
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatalf("expected handshake failure for bad token")
	} else if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
}

// A reconnecting user must not lose the queue entry made over the new
// connection when the old connection's exit path finally runs.
func TestStaleDisconnectKeepsFreshQueueEntry(t *testing.T) {
	ts, q, p, token := newHandlerTestServer(t)

	stale := dialSocket(t, ts, token)
	waitFor(t, "first connection registered", func() bool { return p.Online() == 1 })
	before, _ := p.Lookup(1)

	fresh := dialSocket(t, ts, token)
	waitFor(t, "reconnect replaced the connection", func() bool {
		record, ok := p.Lookup(1)
		return ok && record.ConnID != before.ConnID
	})

	join := map[string]any{
		"event": "join-queue",
		"data": map[string]any{
			"display_name": "ann",
			"gender":       "female",
			"age":          25,
			"looking_for":  "male",
			"age_range":    map[string]int{"min": 20, "max": 30},
			"interests":    []string{"music"},
		},
	}
	if err := fresh.WriteJSON(join); err != nil {
		t.Fatalf("send join-queue: %v", err)
	}
	waitFor(t, "queue entry", func() bool { return q.Status(1).InQueue })

	_ = stale.Close()
	time.Sleep(200 * time.Millisecond)

	if !q.Status(1).InQueue {
		t.Fatalf("stale connection's disconnect removed the fresh queue entry")
	}
	if _, ok := p.Lookup(1); !ok {
		t.Fatalf("stale connection's disconnect removed the live presence record")
	}

	// The current connection's disconnect still cleans both up.
	_ = fresh.Close()
	waitFor(t, "disconnect cleanup", func() bool {
		return !q.Status(1).InQueue && p.Online() == 0
	})
}
