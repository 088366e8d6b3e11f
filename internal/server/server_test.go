package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ntrli-bot/internal/bot"
	"ntrli-bot/internal/config"
	"ntrli-bot/internal/middleware"
	"ntrli-bot/internal/outbox"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type fakeDB struct {
	status string
}

func (f *fakeDB) Health(ctx context.Context) map[string]string {
	return map[string]string{"status": f.status}
}

func (f *fakeDB) DB() *sql.DB  { return nil }
func (f *fakeDB) Close() error { return nil }

type replyDispatcher struct {
	box outbox.Outbox
}

func (d replyDispatcher) Dispatch(ctx context.Context, u bot.Update) error {
	return d.box.Push(ctx, u.SenderID, outbox.Text("ok"))
}

func newTestServer(db *fakeDB, opts ...func(*Deps)) *Server {
	cfg := &config.Config{
		Server: config.ServerConfig{Port: "0", Env: "development"},
	}
	box := outbox.NewMemory()
	deps := Deps{Bot: replyDispatcher{box: box}, Outbox: box}
	if db != nil {
		deps.DB = db
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewServer(cfg, zap.NewNop(), deps)
}

func newGatewayLimiter(t *testing.T, budget int) middleware.Limiter {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return middleware.NewRedisLimiter(client, middleware.RateLimitConfig{
		RequestsPerWindow: budget,
		Window:            time.Minute,
		KeyPrefix:         "gateway_test",
	})
}

// postUpdate sends one update the way the chat gateway does, always from the
// same address.
func postUpdate(srv *Server, senderID int) int {
	body := fmt.Sprintf(`{"sender_id":%d,"text":"/start"}`, senderID)
	req := httptest.NewRequest("POST", "/api/updates/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "127.0.0.1:40000"
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)
	return w.Code
}

func drainOutbox(srv *Server, senderID int) int {
	req := httptest.NewRequest("GET", fmt.Sprintf("/api/updates/%d/outbox", senderID), nil)
	req.RemoteAddr = "127.0.0.1:40000"
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)
	return w.Code
}

func TestRoot(t *testing.T) {
	srv := newTestServer(nil)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK || w.Body.String() != "Bot online" {
		t.Errorf("unexpected root response %d %q", w.Code, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		db         *fakeDB
		wantStatus int
		want       string
	}{
		{"no database", nil, http.StatusOK, "ok"},
		{"database up", &fakeDB{status: "up"}, http.StatusOK, "ok"},
		{"database down", &fakeDB{status: "down"}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(tt.db)

			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			var body map[string]interface{}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != tt.want {
				t.Errorf("expected status %q, got %v", tt.want, body["status"])
			}
		})
	}
}

func TestUpdatesRouteIsMounted(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest("POST", "/api/updates/", bytes.NewBufferString(`{"sender_id":1,"text":"/start"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHealth_ReportsLivePredicate(t *testing.T) {
	live := true
	srv := newTestServer(nil, func(d *Deps) { d.Live = func() bool { return live } })

	for _, want := range []bool{true, false, true} {
		live = want

		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

		var body map[string]interface{}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["live"] != want {
			t.Errorf("expected live %v, got %v", want, body["live"])
		}
	}
}

func TestGatewayLimit_ManySendersOneAddress(t *testing.T) {
	cfg := config.Load()
	limiter := newGatewayLimiter(t, cfg.RateLimit.GatewayRequests)
	srv := newTestServer(nil, func(d *Deps) { d.GatewayLimiter = limiter })

	// More distinct senders than the per-sender budget allows one sender.
	senders := cfg.RateLimit.Requests + 10
	for id := 1; id <= senders; id++ {
		if code := postUpdate(srv, id); code != http.StatusOK {
			t.Fatalf("sender %d: expected 200, got %d", id, code)
		}
	}
}

func TestGatewayLimit_OutboxDrainsAreNotCounted(t *testing.T) {
	limiter := newGatewayLimiter(t, 2)
	srv := newTestServer(nil, func(d *Deps) { d.GatewayLimiter = limiter })

	for i := 0; i < 20; i++ {
		if code := drainOutbox(srv, 1); code != http.StatusOK {
			t.Fatalf("drain %d: expected 200, got %d", i, code)
		}
	}

	for id := 1; id <= 2; id++ {
		if code := postUpdate(srv, id); code != http.StatusOK {
			t.Fatalf("sender %d: expected 200, got %d", id, code)
		}
	}
	if code := postUpdate(srv, 3); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 once the gateway budget is spent, got %d", code)
	}
	if code := drainOutbox(srv, 3); code != http.StatusOK {
		t.Errorf("drain after exhaustion: expected 200, got %d", code)
	}
}
