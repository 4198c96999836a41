package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// serveLogged runs req through LoggingMiddleware and returns the single
// access log entry's fields.
func serveLogged(t *testing.T, req *http.Request, status int) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)

	wrapped := LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "http request", entries[0].Message)
	return w, entries[0].ContextMap()
}

func TestLoggingMiddleware_Fields(t *testing.T) {
	req := httptest.NewRequest("POST", "/backtest/sweep", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	w, fields := serveLogged(t, req, http.StatusOK)

	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/backtest/sweep", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.Contains(t, fields, "duration_ms")
	assert.Equal(t, "192.168.1.1:12345", fields["client_ip"])

	id := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, fields["request_id"])
}

func TestLoggingMiddleware_ClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		want      string
	}{
		{"remote addr", "", "10.0.0.1:54321"},
		{"single forwarded", "203.0.113.50", "203.0.113.50"},
		{"forwarded chain", "203.0.113.50, 10.0.0.2", "203.0.113.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/portfolio", nil)
			req.RemoteAddr = "10.0.0.1:54321"
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			_, fields := serveLogged(t, req, http.StatusOK)
			assert.Equal(t, tt.want, fields["client_ip"])
		})
	}
}

func TestLoggingMiddleware_ReusesIncomingRequestID(t *testing.T) {
	req := httptest.NewRequest("POST", "/execute_order", nil)
	req.Header.Set(RequestIDHeader, "abc-123")

	w, fields := serveLogged(t, req, http.StatusForbidden)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", fields["request_id"])
	assert.EqualValues(t, http.StatusForbidden, fields["status"])
}
