package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	cases := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusBadRequest, zapcore.WarnLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tc := range cases {
		core, logs := observer.New(zapcore.DebugLevel)
		handler := LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("expected one log entry, got %d", len(entries))
		}
		if entries[0].Level != tc.level {
			t.Errorf("status %d logged at %s, want %s", tc.status, entries[0].Level, tc.level)
		}
		if entries[0].ContextMap()["status"] != int64(tc.status) {
			t.Errorf("status field missing for %d", tc.status)
		}
	}
}
