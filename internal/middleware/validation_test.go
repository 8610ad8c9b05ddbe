package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/tomdowns/cbatool/internal/errors"
	"github.com/tomdowns/cbatool/internal/shared/testutil"
)

func newValidationMiddleware(t *testing.T) *ValidationMiddleware {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false))
}

func TestValidateRequest(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		wantStatus  int
	}{
		{
			name:       "GET passes through",
			method:     "GET",
			wantStatus: http.StatusOK,
		},
		{
			name:        "valid JSON body",
			method:      "POST",
			body:        `{"file": "survey.xlsx", "targetDepth": 1.5}`,
			contentType: "application/json",
			wantStatus:  http.StatusOK,
		},
		{
			name:        "invalid JSON body",
			method:      "POST",
			body:        `{"file": "survey.xlsx",`,
			contentType: "application/json",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "multipart upload passes through",
			method:      "POST",
			body:        "--boundary\r\nContent-Disposition: form-data; name=\"file\"\r\n\r\nnot json\r\n--boundary--\r\n",
			contentType: "multipart/form-data; boundary=boundary",
			wantStatus:  http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newValidationMiddleware(t)
			handler := m.ValidateRequest(okHandler)

			var body *strings.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			} else {
				body = strings.NewReader("")
			}

			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, "/api/analyses", body)
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}

			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	t.Run("oversized body rejected", func(t *testing.T) {
		m := newValidationMiddleware(t)
		handler := m.ValidateRequest(okHandler)

		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/api/analyses", strings.NewReader("{}"))
		r.Header.Set("Content-Type", "application/json")
		r.ContentLength = 11 * 1024 * 1024

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("body stays readable after validation", func(t *testing.T) {
		m := newValidationMiddleware(t)

		var got string
		handler := m.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := make([]byte, 64)
			n, _ := r.Body.Read(buf)
			got = string(buf[:n])
			w.WriteHeader(http.StatusOK)
		}))

		body := `{"cableId": "EXC-01"}`
		w := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/api/cables", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, body, got)
	})
}

func TestValidateStruct(t *testing.T) {
	type analysisRequest struct {
		File        string  `json:"file" validate:"required,filename"`
		Sheet       string  `json:"sheet" validate:"omitempty,sheetname"`
		CableID     string  `json:"cableId" validate:"omitempty,cableid"`
		TargetDepth float64 `json:"targetDepth" validate:"omitempty,gt=0"`
	}

	m := newValidationMiddleware(t)

	t.Run("valid request", func(t *testing.T) {
		err := m.ValidateStruct(analysisRequest{
			File:        "survey.xlsx",
			Sheet:       "Data",
			CableID:     "EXC-01",
			TargetDepth: 1.5,
		})
		assert.NoError(t, err)
	})

	t.Run("collects field errors", func(t *testing.T) {
		err := m.ValidateStruct(analysisRequest{
			File:        "../etc/passwd",
			Sheet:       "Sheet[1]",
			CableID:     "lowercase-id",
			TargetDepth: -2,
		})
		require.Error(t, err)

		apiErr, ok := err.(*apierrors.APIError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := m.ValidateStruct(analysisRequest{})
		require.Error(t, err)
	})
}

func TestCustomValidators(t *testing.T) {
	m := newValidationMiddleware(t)

	type cableField struct {
		ID string `validate:"cableid"`
	}
	type sheetField struct {
		Name string `validate:"sheetname"`
	}
	type fileField struct {
		Name string `validate:"filename"`
	}

	t.Run("cableid", func(t *testing.T) {
		valid := []string{"EXC-01", "IAC-A1-A2", "EXP.02", "C1", "NORTH_ROUTE-3"}
		for _, id := range valid {
			assert.NoError(t, m.ValidateStruct(cableField{ID: id}), "expected %q to be valid", id)
		}

		invalid := []string{"", "lower-case", "HAS SPACE", "bad/slash", strings.Repeat("A", 65)}
		for _, id := range invalid {
			assert.Error(t, m.ValidateStruct(cableField{ID: id}), "expected %q to be invalid", id)
		}
	})

	t.Run("sheetname", func(t *testing.T) {
		valid := []string{"Data", "Survey Data", "DOB", "Sheet1"}
		for _, name := range valid {
			assert.NoError(t, m.ValidateStruct(sheetField{Name: name}), "expected %q to be valid", name)
		}

		invalid := []string{"", strings.Repeat("s", 32), "a:b", "a/b", "a[b]", "a*b", "a?b"}
		for _, name := range invalid {
			assert.Error(t, m.ValidateStruct(sheetField{Name: name}), "expected %q to be invalid", name)
		}
	})

	t.Run("filename", func(t *testing.T) {
		valid := []string{"survey.xlsx", "route_2024.csv", "depth-data.xlsx"}
		for _, name := range valid {
			assert.NoError(t, m.ValidateStruct(fileField{Name: name}), "expected %q to be valid", name)
		}

		invalid := []string{"", "../escape.xlsx", "dir/file.xlsx", `dir\file.xlsx`}
		for _, name := range invalid {
			assert.Error(t, m.ValidateStruct(fileField{Name: name}), "expected %q to be invalid", name)
		}
	})
}

func TestContentTypeValidator(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := ContentTypeValidator("application/json", "multipart/form-data")(okHandler)

	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{
			name:       "GET skips check",
			method:     "GET",
			wantStatus: http.StatusOK,
		},
		{
			name:        "json accepted",
			method:      "POST",
			contentType: "application/json; charset=utf-8",
			wantStatus:  http.StatusOK,
		},
		{
			name:        "multipart accepted",
			method:      "POST",
			contentType: "multipart/form-data; boundary=x",
			wantStatus:  http.StatusOK,
		},
		{
			name:       "missing content type rejected",
			method:     "POST",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "unsupported type rejected",
			method:      "POST",
			contentType: "text/xml",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, "/api/cables", strings.NewReader("{}"))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}

			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestQueryParamValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	t.Run("ValidateInt", func(t *testing.T) {
		tests := []struct {
			name      string
			query     string
			wantValue int
			wantOK    bool
		}{
			{name: "missing uses default", query: "", wantValue: 50, wantOK: true},
			{name: "valid value", query: "limit=25", wantValue: 25, wantOK: true},
			{name: "not an integer", query: "limit=abc", wantValue: 0, wantOK: false},
			{name: "out of range", query: "limit=5000", wantValue: 0, wantOK: false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := httptest.NewRecorder()
				r := httptest.NewRequest("GET", "/api/cables?"+tt.query, nil)

				got, ok := v.ValidateInt(w, r, "limit", 1, 500, 50)

				assert.Equal(t, tt.wantOK, ok)
				if tt.wantOK {
					assert.Equal(t, tt.wantValue, got)
				} else {
					assert.Equal(t, http.StatusBadRequest, w.Code)
				}
			})
		}
	})

	t.Run("ValidateEnum", func(t *testing.T) {
		allowed := []string{"High", "Medium", "Low"}

		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/analyses?severity=Medium", nil)
		got, ok := v.ValidateEnum(w, r, "severity", allowed, "")
		assert.True(t, ok)
		assert.Equal(t, "Medium", got)

		w = httptest.NewRecorder()
		r = httptest.NewRequest("GET", "/api/analyses?severity=critical", nil)
		_, ok = v.ValidateEnum(w, r, "severity", allowed, "")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = httptest.NewRecorder()
		r = httptest.NewRequest("GET", "/api/analyses", nil)
		got, ok = v.ValidateEnum(w, r, "severity", allowed, "High")
		assert.True(t, ok)
		assert.Equal(t, "High", got)
	})
}
