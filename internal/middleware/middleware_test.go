package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomdowns/cbatool/internal/infrastructure"
	"github.com/tomdowns/cbatool/internal/shared/testutil"
)

func TestRequestID(t *testing.T) {
	t.Run("generates request ID when absent", func(t *testing.T) {
		var seenReqID, seenTraceID string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenReqID = chimiddleware.GetReqID(r.Context())
			seenTraceID = infrastructure.GetTraceID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/analyses", nil)

		handler.ServeHTTP(w, r)

		headerID := w.Header().Get("X-Request-ID")
		require.NotEmpty(t, headerID)

		_, err := uuid.Parse(headerID)
		assert.NoError(t, err, "generated request ID should be a UUID")

		assert.Equal(t, headerID, seenReqID)
		assert.Equal(t, headerID, seenTraceID)
	})

	t.Run("honors client supplied request ID", func(t *testing.T) {
		var seenReqID string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenReqID = chimiddleware.GetReqID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/analyses", nil)
		r.Header.Set("X-Request-ID", "client-supplied-id")

		handler.ServeHTTP(w, r)

		assert.Equal(t, "client-supplied-id", seenReqID)
		assert.Equal(t, "client-supplied-id", w.Header().Get("X-Request-ID"))
	})
}

func TestGetRequestID(t *testing.T) {
	t.Run("prefers chi request ID", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), chimiddleware.RequestIDKey, "req-1")
		assert.Equal(t, "req-1", GetRequestID(ctx))
	})

	t.Run("falls back to trace ID", func(t *testing.T) {
		ctx := infrastructure.WithTraceID(context.Background(), "trace-1")
		assert.Equal(t, "trace-1", GetRequestID(ctx))
	})

	t.Run("empty without either", func(t *testing.T) {
		assert.Empty(t, GetRequestID(context.Background()))
	})
}

func TestRateLimiter(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	rl := NewRateLimiter(1, 1, logger)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest("POST", "/api/analyses", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest("POST", "/api/analyses", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", second.Header().Get("Content-Type"))

	var problem Problem
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &problem))
	assert.Equal(t, "/errors/rate-limit", problem.Type)
	assert.Equal(t, http.StatusTooManyRequests, problem.Status)
}

func TestClientRateLimiter(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)

	crl := NewClientRateLimiter(1, 1, logger)
	handler := crl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	send := func(remoteAddr string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/api/analyses", nil)
		r.RemoteAddr = remoteAddr
		handler.ServeHTTP(w, r)
		return w
	}

	// First client exhausts its bucket.
	assert.Equal(t, http.StatusAccepted, send("10.0.0.1:50001").Code)
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:50002").Code)

	// A different client has its own bucket.
	assert.Equal(t, http.StatusAccepted, send("10.0.0.2:50003").Code)

	assert.True(t, logs.ContainsMessage("client rate limit exceeded"))
	assert.True(t, logs.ContainsAttr("client_ip", "10.0.0.1"))
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "10.0.0.1:55000",
			want:       "10.0.0.1",
		},
		{
			name:       "forwarded for single",
			remoteAddr: "10.0.0.1:55000",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded for chain uses first hop",
			remoteAddr: "10.0.0.1:55000",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 198.51.100.2"},
			want:       "203.0.113.7",
		},
		{
			name:       "real ip header",
			remoteAddr: "10.0.0.1:55000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "198.51.100.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientKey(r))
		})
	}
}

func TestTimeout(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	t.Run("fast handler completes", func(t *testing.T) {
		handler := Timeout(time.Second, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("done"))
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/cables", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "done", w.Body.String())
	})

	t.Run("slow handler times out", func(t *testing.T) {
		handler := Timeout(50*time.Millisecond, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Never writes; the middleware owns the timeout response.
			time.Sleep(300 * time.Millisecond)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/cables", nil))

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)

		var problem Problem
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
		assert.Equal(t, "/errors/timeout", problem.Type)
	})
}

func TestCORS(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("preflight request", func(t *testing.T) {
		handler := CORS(CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}})(okHandler)

		w := httptest.NewRecorder()
		r := httptest.NewRequest("OPTIONS", "/api/analyses", nil)
		r.Header.Set("Origin", "http://localhost:3000")

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Equal(t, "300", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("disallowed origin gets no allow header", func(t *testing.T) {
		handler := CORS(CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}})(okHandler)

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/analyses", nil)
		r.Header.Set("Origin", "http://evil.example")

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard origin", func(t *testing.T) {
		handler := CORS(CORSConfig{AllowedOrigins: []string{"*"}})(okHandler)

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/analyses", nil)
		r.Header.Set("Origin", "http://anywhere.example")

		handler.ServeHTTP(w, r)

		assert.Equal(t, "http://anywhere.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("empty origin list allows all", func(t *testing.T) {
		handler := CORS(CORSConfig{})(okHandler)

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/analyses", nil)
		r.Header.Set("Origin", "http://tools.example")

		handler.ServeHTTP(w, r)

		assert.Equal(t, "http://tools.example", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSecureHeaders(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("default headers", func(t *testing.T) {
		handler := DefaultSecureHeaders().Handler(okHandler)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
		assert.NotEmpty(t, w.Header().Get("Permissions-Policy"))
		// No TLS and no dev mode, so no HSTS.
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("csp allows chart asset host", func(t *testing.T) {
		handler := DefaultSecureHeaders().Handler(okHandler)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "go-echarts.github.io")
	})

	t.Run("websocket upgrade skips headers", func(t *testing.T) {
		handler := DefaultSecureHeaders().Handler(okHandler)

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Header.Set("Upgrade", "websocket")

		handler.ServeHTTP(w, r)

		assert.Empty(t, w.Header().Get("X-Frame-Options"))
	})

	t.Run("dev mode relaxes policies", func(t *testing.T) {
		sh := DefaultSecureHeaders()
		sh.DevMode = true
		handler := sh.Handler(okHandler)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		// Dev mode sends HSTS even without TLS and drops the default CSP.
		assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
		assert.Empty(t, w.Header().Get("Content-Security-Policy"))
	})
}
