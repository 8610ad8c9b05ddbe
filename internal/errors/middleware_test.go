package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomdowns/cbatool/internal/shared/testutil"
)

func TestNewErrorMiddleware(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	errorHandler := NewErrorHandler(logger, false)

	em := NewErrorMiddleware(errorHandler, logger)

	assert.NotNil(t, em)
	assert.Equal(t, errorHandler, em.handler)
	assert.NotNil(t, em.logger)
}

func findHTTPLogRecord(records []testutil.LogRecord) *testutil.LogRecord {
	for _, record := range records {
		if strings.Contains(record.Message, "http request") {
			return &record
		}
	}
	return nil
}

func TestErrorMiddleware_Handler(t *testing.T) {
	tests := []struct {
		name          string
		handler       http.HandlerFunc
		requestBody   string
		requestPath   string
		requestMethod string
		wantStatus    int
		shouldPanic   bool
		wantLogLevel  slog.Level
		checkDuration bool
	}{
		{
			name: "successful request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("success"))
			},
			requestPath:   "/api/analyses",
			requestMethod: "GET",
			wantStatus:    http.StatusOK,
			wantLogLevel:  slog.LevelInfo,
			checkDuration: true,
		},
		{
			name: "client error request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte("bad request"))
			},
			requestPath:   "/api/analyses",
			requestMethod: "POST",
			wantStatus:    http.StatusBadRequest,
			wantLogLevel:  slog.LevelWarn,
		},
		{
			name: "server error request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("internal error"))
			},
			requestPath:   "/api/cables",
			requestMethod: "PUT",
			wantStatus:    http.StatusInternalServerError,
			wantLogLevel:  slog.LevelError,
		},
		{
			name: "failing request with body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte("validation error"))
			},
			requestBody:   `{"file": "missing.xlsx", "targetDepth": -1}`,
			requestPath:   "/api/analyses",
			requestMethod: "POST",
			wantStatus:    http.StatusBadRequest,
			wantLogLevel:  slog.LevelWarn,
		},
		{
			name: "request that panics",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("something went wrong")
			},
			requestPath:   "/api/analyses",
			requestMethod: "GET",
			wantStatus:    http.StatusInternalServerError,
			shouldPanic:   true,
			wantLogLevel:  slog.LevelError,
		},
		{
			name: "request with query parameters",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte("bad query"))
			},
			requestPath:   "/api/cables?status=installed&limit=10",
			requestMethod: "GET",
			wantStatus:    http.StatusBadRequest,
			wantLogLevel:  slog.LevelWarn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logHandler := testutil.NewTestLogger(t)
			errorHandler := NewErrorHandler(logger, true)
			errorMiddleware := NewErrorMiddleware(errorHandler, logger)

			wrapped := errorMiddleware.Handler(tt.handler)

			var body io.Reader
			if tt.requestBody != "" {
				body = strings.NewReader(tt.requestBody)
			}

			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.requestMethod, tt.requestPath, body)
			if tt.requestBody != "" {
				r.Header.Set("Content-Type", "application/json")
			}

			ctx := context.WithValue(r.Context(), middleware.RequestIDKey, "test-request-id")
			r = r.WithContext(ctx)
			r.Header.Set("User-Agent", "test-client/1.0")

			wrapped.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.True(t, logHandler.ContainsMessage("http request"))

			records := logHandler.GetRecordsByLevel(tt.wantLogLevel)
			assert.Greater(t, len(records), 0, "expected log record at level %s", tt.wantLogLevel)

			httpLogRecord := findHTTPLogRecord(logHandler.GetRecords())
			require.NotNil(t, httpLogRecord, "should have an http request log record")

			assert.Equal(t, tt.requestMethod, httpLogRecord.Attrs["method"])

			if strings.Contains(tt.requestPath, "?") {
				pathParts := strings.Split(tt.requestPath, "?")
				assert.Equal(t, pathParts[0], httpLogRecord.Attrs["path"])
				assert.Equal(t, pathParts[1], httpLogRecord.Attrs["query"])
			} else {
				assert.Equal(t, tt.requestPath, httpLogRecord.Attrs["path"])
			}

			assert.EqualValues(t, tt.wantStatus, httpLogRecord.Attrs["status"])
			assert.Equal(t, "test-request-id", httpLogRecord.Attrs["request_id"])
			assert.Equal(t, "test-client/1.0", httpLogRecord.Attrs["user_agent"])

			if tt.checkDuration {
				require.Contains(t, httpLogRecord.Attrs, "duration")
				duration, ok := httpLogRecord.Attrs["duration"].(time.Duration)
				assert.True(t, ok, "duration should be time.Duration")
				assert.Greater(t, duration, time.Duration(0))
			}

			if tt.wantStatus >= 400 && tt.requestBody != "" {
				assert.Contains(t, httpLogRecord.Attrs, "request_body")
			}

			if tt.shouldPanic {
				assert.True(t, logHandler.ContainsMessage("panic recovered"))
			}
		})
	}
}

func TestErrorMiddleware_RequestBodyCapture(t *testing.T) {
	tests := []struct {
		name             string
		requestBody      string
		wantCaptured     bool
		expectTruncation bool
	}{
		{
			name:         "small JSON body",
			requestBody:  `{"file": "survey.xlsx", "cableId": "EXC-01"}`,
			wantCaptured: true,
		},
		{
			name:         "empty body",
			requestBody:  "",
			wantCaptured: false,
		},
		{
			name:         "large body exceeds limit",
			requestBody:  strings.Repeat("a", 1024*1024+1),
			wantCaptured: false,
		},
		{
			name:             "body requiring truncation",
			requestBody:      strings.Repeat("a", 600),
			wantCaptured:     true,
			expectTruncation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logHandler := testutil.NewTestLogger(t)
			errorHandler := NewErrorHandler(logger, false)
			errorMiddleware := NewErrorMiddleware(errorHandler, logger)

			handler := errorMiddleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte("error"))
			}))

			var body io.Reader
			if tt.requestBody != "" {
				body = strings.NewReader(tt.requestBody)
			}

			w := httptest.NewRecorder()
			r := httptest.NewRequest("POST", "/api/analyses", body)

			handler.ServeHTTP(w, r)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			httpLogRecord := findHTTPLogRecord(logHandler.GetRecords())
			require.NotNil(t, httpLogRecord)

			if tt.wantCaptured {
				require.Contains(t, httpLogRecord.Attrs, "request_body")

				loggedBody := httpLogRecord.Attrs["request_body"].(string)
				if tt.expectTruncation {
					assert.True(t, strings.HasSuffix(loggedBody, "..."))
					assert.Len(t, loggedBody, 503)
				} else {
					assert.Equal(t, tt.requestBody, loggedBody)
				}
			} else {
				assert.NotContains(t, httpLogRecord.Attrs, "request_body")
			}
		})
	}
}

func TestSanitizeRequestBody(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "sanitize password field",
			input:    `{"username": "surveyor", "password": "secret123"}`,
			expected: `{"password":"[REDACTED]","username":"surveyor"}`,
		},
		{
			name:     "sanitize multiple sensitive fields",
			input:    `{"email": "ops@example.com", "password": "secret", "api_key": "abc123", "name": "North Route"}`,
			expected: `{"api_key":"[REDACTED]","email":"ops@example.com","name":"North Route","password":"[REDACTED]"}`,
		},
		{
			name:     "sanitize token field",
			input:    `{"token": "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9", "file": "survey.xlsx"}`,
			expected: `{"file":"survey.xlsx","token":"[REDACTED]"}`,
		},
		{
			name:     "sanitize secret field",
			input:    `{"secret": "top-secret-value", "cableId": "EXC-01"}`,
			expected: `{"cableId":"EXC-01","secret":"[REDACTED]"}`,
		},
		{
			name:     "sanitize apiKey camelCase field",
			input:    `{"apiKey": "secret-api-key", "targetDepth": 1.5}`,
			expected: `{"apiKey":"[REDACTED]","targetDepth":1.5}`,
		},
		{
			name:     "no sensitive fields",
			input:    `{"file": "survey.xlsx", "sheet": "Data", "targetDepth": 1.5}`,
			expected: `{"file":"survey.xlsx","sheet":"Data","targetDepth":1.5}`,
		},
		{
			name:     "invalid JSON passes through",
			input:    `not a json string`,
			expected: `not a json string`,
		},
		{
			name:     "empty string",
			input:    ``,
			expected: ``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeRequestBody(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		shouldPanic bool
		wantStatus  int
	}{
		{
			name: "normal request without panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("success"))
			},
			shouldPanic: false,
			wantStatus:  http.StatusOK,
		},
		{
			name: "request that panics with string",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("something went wrong")
			},
			shouldPanic: true,
			wantStatus:  http.StatusInternalServerError,
		},
		{
			name: "request that panics with error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic(assert.AnError)
			},
			shouldPanic: true,
			wantStatus:  http.StatusInternalServerError,
		},
		{
			name: "request that panics with integer",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic(42)
			},
			shouldPanic: true,
			wantStatus:  http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logHandler := testutil.NewTestLogger(t)
			errorHandler := NewErrorHandler(logger, true)

			wrapped := RecoveryMiddleware(errorHandler)(tt.handler)

			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/api/analyses", nil)

			wrapped.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.shouldPanic {
				assert.True(t, logHandler.ContainsMessage("panic recovered"))
				assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

				problem := decodeProblem(t, w)
				assert.Equal(t, TypeInternal, problem["type"])
				assert.Equal(t, "Internal Server Error", problem["title"])
				assert.Equal(t, float64(http.StatusInternalServerError), problem["status"])
			}
		})
	}
}

func TestErrorMiddleware_LargeRequestBodyHandling(t *testing.T) {
	logger, logHandler := testutil.NewTestLogger(t)
	errorHandler := NewErrorHandler(logger, false)
	errorMiddleware := NewErrorMiddleware(errorHandler, logger)

	largeBody := strings.Repeat("a", 1024*1024+1)

	handler := errorMiddleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Bodies over the capture limit must still reach the handler intact.
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, largeBody, string(body))

		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("error"))
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/analyses", strings.NewReader(largeBody))

	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	httpLogRecord := findHTTPLogRecord(logHandler.GetRecords())
	require.NotNil(t, httpLogRecord)
	assert.NotContains(t, httpLogRecord.Attrs, "request_body")
}

func TestErrorMiddleware_NilRequestBody(t *testing.T) {
	logger, logHandler := testutil.NewTestLogger(t)
	errorHandler := NewErrorHandler(logger, false)
	errorMiddleware := NewErrorMiddleware(errorHandler, logger)

	handler := errorMiddleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("error"))
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/analyses", nil)

	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	httpLogRecord := findHTTPLogRecord(logHandler.GetRecords())
	require.NotNil(t, httpLogRecord)
	assert.NotContains(t, httpLogRecord.Attrs, "request_body")
}

func TestErrorMiddleware_LoggingAttributes(t *testing.T) {
	logger, logHandler := testutil.NewTestLogger(t)
	errorHandler := NewErrorHandler(logger, false)
	errorMiddleware := NewErrorMiddleware(errorHandler, logger)

	handler := errorMiddleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Hello, World!"))
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/cables?status=installed&limit=20", strings.NewReader(`{"name": "test"}`))
	r.RemoteAddr = "192.168.1.1:12345"
	r.Header.Set("User-Agent", "TestClient/1.0")

	ctx := context.WithValue(r.Context(), middleware.RequestIDKey, "test-req-123")
	r = r.WithContext(ctx)

	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	httpLogRecord := findHTTPLogRecord(logHandler.GetRecords())
	require.NotNil(t, httpLogRecord)

	assert.Equal(t, "POST", httpLogRecord.Attrs["method"])
	assert.Equal(t, "/api/cables", httpLogRecord.Attrs["path"])
	assert.Equal(t, "status=installed&limit=20", httpLogRecord.Attrs["query"])
	assert.EqualValues(t, http.StatusOK, httpLogRecord.Attrs["status"])
	assert.Equal(t, "192.168.1.1:12345", httpLogRecord.Attrs["remote_addr"])
	assert.Equal(t, "TestClient/1.0", httpLogRecord.Attrs["user_agent"])
	assert.Equal(t, "test-req-123", httpLogRecord.Attrs["request_id"])
	assert.Contains(t, httpLogRecord.Attrs, "duration")
	assert.EqualValues(t, len("Hello, World!"), httpLogRecord.Attrs["bytes"])
}

func TestErrorMiddleware_ConcurrentRequests(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	errorHandler := NewErrorHandler(logger, false)
	errorMiddleware := NewErrorMiddleware(errorHandler, logger)

	handler := errorMiddleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	}))

	const numRequests = 10
	results := make(chan int, numRequests)

	for i := 0; i < numRequests; i++ {
		go func(i int) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/api/analyses", nil)
			ctx := context.WithValue(r.Context(), middleware.RequestIDKey, fmt.Sprintf("req-%d", i))
			r = r.WithContext(ctx)

			handler.ServeHTTP(w, r)
			results <- w.Code
		}(i)
	}

	for i := 0; i < numRequests; i++ {
		select {
		case statusCode := <-results:
			assert.Equal(t, http.StatusOK, statusCode)
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for concurrent requests")
		}
	}
}

func TestErrorMiddleware_Integration(t *testing.T) {
	logger, logHandler := testutil.NewTestLogger(t)
	errorHandler := NewErrorHandler(logger, false)
	errorMiddleware := NewErrorMiddleware(errorHandler, logger)

	// Stacked the way the server package wires it.
	handler := middleware.RequestID(
		errorMiddleware.Handler(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTeapot)
				w.Write([]byte("I'm a teapot"))
			}),
		),
	)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/analyses", nil)

	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "I'm a teapot", w.Body.String())
	assert.True(t, logHandler.ContainsMessage("http request"))

	httpLogRecord := findHTTPLogRecord(logHandler.GetRecords())
	require.NotNil(t, httpLogRecord)

	requestID, ok := httpLogRecord.Attrs["request_id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, requestID)
}
