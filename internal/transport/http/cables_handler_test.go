package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomdowns/cbatool/internal/registry"
)

func newCablesRouter(t *testing.T, persistFile string) (chi.Router, *registry.Registry) {
	t.Helper()
	reg := registry.New(discardLogger())
	h := NewCablesHandler(reg, persistFile, discardLogger())
	r := chi.NewRouter()
	r.Mount("/api/cables", h.Routes())
	return r, reg
}

func seedCables(t *testing.T, reg *registry.Registry) {
	t.Helper()
	require.NoError(t, reg.Add(registry.Cable{ID: "EXC-01", Status: registry.StatusInstalled}))
	require.NoError(t, reg.Add(registry.Cable{ID: "IAC-04", Status: registry.StatusBurialComplete}))
	require.NoError(t, reg.Add(registry.Cable{ID: "IAC-05"}))
}

func TestListCables(t *testing.T) {
	router, reg := newCablesRouter(t, "")
	seedCables(t, reg)

	req := httptest.NewRequest(http.MethodGet, "/api/cables", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got CableList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Count)
	assert.ElementsMatch(t, []string{registry.TypeExport, registry.TypeInterArray}, got.Types)
}

func TestListCablesFiltered(t *testing.T) {
	router, reg := newCablesRouter(t, "")
	seedCables(t, reg)

	req := httptest.NewRequest(http.MethodGet, "/api/cables?type=IAC&status=burial+complete", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got CableList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 1, got.Count)
	assert.Equal(t, "IAC-04", got.Cables[0].ID)
}

func TestAddCableInfersType(t *testing.T) {
	router, reg := newCablesRouter(t, "")

	body := `{"cable_id": "EXC-12", "metadata": {"route": "north spur"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/cables", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got registry.Cable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "EXC-12", got.ID)
	assert.Equal(t, registry.TypeExport, got.Type)
	assert.Equal(t, registry.StatusNotInstalled, got.Status)
	assert.Equal(t, "north spur", got.Metadata["route"])

	_, ok := reg.Get("EXC-12")
	assert.True(t, ok)
}

func TestAddCableDuplicateConflicts(t *testing.T) {
	router, reg := newCablesRouter(t, "")
	seedCables(t, reg)

	body := `{"cable_id": "EXC-01"}`
	req := httptest.NewRequest(http.MethodPost, "/api/cables", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "/errors/conflict", problem["type"])
}

func TestAddCableValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing id", `{"type": "EXC"}`},
		{"blank id", `{"cable_id": "   "}`},
		{"bad type", `{"cable_id": "EXC-01", "type": "ROV"}`},
		{"bad status", `{"cable_id": "EXC-01", "status": "floating"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newCablesRouter(t, "")
			req := httptest.NewRequest(http.MethodPost, "/api/cables", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAddCablePersistsToCSV(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cables.csv")
	router, _ := newCablesRouter(t, file)

	body := `{"cable_id": "IAC-09", "status": "installed"}`
	req := httptest.NewRequest(http.MethodPost, "/api/cables", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "IAC-09")

	// The written file round-trips through the CSV loader.
	reloaded := registry.New(discardLogger())
	require.NoError(t, reloaded.LoadCSV(file))
	cable, ok := reloaded.Get("IAC-09")
	require.True(t, ok)
	assert.Equal(t, registry.StatusInstalled, cable.Status)
}

func TestGetCable(t *testing.T) {
	router, reg := newCablesRouter(t, "")
	seedCables(t, reg)

	req := httptest.NewRequest(http.MethodGet, "/api/cables/EXC-01", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got registry.Cable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "EXC-01", got.ID)
	assert.Equal(t, registry.StatusInstalled, got.Status)
}

func TestGetCableNotFound(t *testing.T) {
	router, _ := newCablesRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/cables/EXC-99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateCableStatus(t *testing.T) {
	router, reg := newCablesRouter(t, "")
	seedCables(t, reg)

	body := `{"status": "burial in progress"}`
	req := httptest.NewRequest(http.MethodPut, "/api/cables/EXC-01/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	cable, ok := reg.Get("EXC-01")
	require.True(t, ok)
	assert.Equal(t, registry.StatusBurialInProgress, cable.Status)
}

func TestUpdateCableStatusUnknownCable(t *testing.T) {
	router, _ := newCablesRouter(t, "")

	body := `{"status": "installed"}`
	req := httptest.NewRequest(http.MethodPut, "/api/cables/ghost/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateCableStatusInvalidStatus(t *testing.T) {
	router, reg := newCablesRouter(t, "")
	seedCables(t, reg)

	body := `{"status": "floating"}`
	req := httptest.NewRequest(http.MethodPut, "/api/cables/EXC-01/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	cable, _ := reg.Get("EXC-01")
	assert.Equal(t, registry.StatusInstalled, cable.Status)
}
