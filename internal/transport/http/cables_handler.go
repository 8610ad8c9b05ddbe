package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/tomdowns/cbatool/internal/errors"
	"github.com/tomdowns/cbatool/internal/infrastructure"
	"github.com/tomdowns/cbatool/internal/registry"
)

// CablesHandler serves the cable registry.
type CablesHandler struct {
	registry *registry.Registry
	file     string
	logger   *slog.Logger

	// mu serializes CSV writes; the registry itself is already
	// goroutine safe.
	mu sync.Mutex
}

// NewCablesHandler creates a new cables handler. When file is
// non-empty every mutation is persisted back to that CSV.
func NewCablesHandler(reg *registry.Registry, file string, logger *slog.Logger) *CablesHandler {
	if reg == nil {
		panic("registry cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CablesHandler{
		registry: reg,
		file:     file,
		logger:   logger.With(slog.String("handler", "cables")),
	}
}

// Routes returns the cable registry route tree.
func (h *CablesHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListCables)
	r.Post("/", h.AddCable)
	r.Get("/{id}", h.GetCable)
	r.Put("/{id}/status", h.UpdateCableStatus)

	return r
}

// CableRequest is the JSON body of POST /api/cables.
type CableRequest struct {
	ID       string         `json:"cable_id"`
	Type     string         `json:"type,omitempty"`
	Status   string         `json:"status,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Bind implements render.Binder.
func (c *CableRequest) Bind(r *http.Request) error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("cable_id is required")
	}
	if c.Type != "" && !registry.ValidType(c.Type) {
		return fmt.Errorf("invalid cable type %q", c.Type)
	}
	if c.Status != "" && !registry.ValidStatus(c.Status) {
		return fmt.Errorf("invalid cable status %q", c.Status)
	}
	return nil
}

// CableStatusRequest is the JSON body of PUT /api/cables/{id}/status.
type CableStatusRequest struct {
	Status string `json:"status"`
}

// Bind implements render.Binder.
func (c *CableStatusRequest) Bind(r *http.Request) error {
	if c.Status == "" {
		return fmt.Errorf("status is required")
	}
	if !registry.ValidStatus(c.Status) {
		return fmt.Errorf("invalid cable status %q", c.Status)
	}
	return nil
}

// CableList wraps registry entries for GET /api/cables.
type CableList struct {
	Cables   []registry.Cable `json:"cables"`
	Count    int              `json:"count"`
	Types    []string         `json:"types"`
	Statuses []string         `json:"statuses"`
}

// ListCables handles GET /api/cables. The type and status query
// parameters filter the listing; empty values match everything.
func (h *CablesHandler) ListCables(w http.ResponseWriter, r *http.Request) {
	cableType := r.URL.Query().Get("type")
	status := r.URL.Query().Get("status")

	cables := h.registry.Cables(cableType, status)
	if cables == nil {
		cables = []registry.Cable{}
	}

	render.JSON(w, r, &CableList{
		Cables:   cables,
		Count:    len(cables),
		Types:    h.registry.Types(),
		Statuses: h.registry.Statuses(),
	})
}

// AddCable handles POST /api/cables.
func (h *CablesHandler) AddCable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := &CableRequest{}
	if err := render.Bind(r, data); err != nil {
		h.renderProblem(w, r, http.StatusBadRequest, "/errors/validation", "Validation Error", err.Error())
		return
	}

	cable := registry.Cable{
		ID:       strings.TrimSpace(data.ID),
		Type:     data.Type,
		Status:   data.Status,
		Metadata: data.Metadata,
	}
	if err := h.registry.Add(cable); err != nil {
		// Bind already rejected empty IDs, so the only Add failure
		// left is a duplicate identifier.
		h.renderProblem(w, r, http.StatusConflict, "/errors/conflict", "Conflict", err.Error())
		return
	}
	h.persist(ctx)

	added, _ := h.registry.Get(cable.ID)
	h.logger.InfoContext(ctx, "cable registered",
		slog.String("cable_id", added.ID),
		slog.String("type", added.Type),
		slog.String("status", added.Status))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, added)
}

// GetCable handles GET /api/cables/{id}.
func (h *CablesHandler) GetCable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cable, ok := h.registry.Get(id)
	if !ok {
		h.renderProblem(w, r, http.StatusNotFound, "/errors/not-found", "Not Found",
			fmt.Sprintf("cable %q is not registered", id))
		return
	}
	render.JSON(w, r, cable)
}

// UpdateCableStatus handles PUT /api/cables/{id}/status.
func (h *CablesHandler) UpdateCableStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	data := &CableStatusRequest{}
	if err := render.Bind(r, data); err != nil {
		h.renderProblem(w, r, http.StatusBadRequest, "/errors/validation", "Validation Error", err.Error())
		return
	}

	if err := h.registry.UpdateStatus(id, data.Status); err != nil {
		// Bind already rejected invalid statuses, so the only failure
		// left is an unknown cable.
		h.renderProblem(w, r, http.StatusNotFound, "/errors/not-found", "Not Found", err.Error())
		return
	}
	h.persist(ctx)

	updated, _ := h.registry.Get(id)
	render.JSON(w, r, updated)
}

// persist rewrites the registry CSV when a backing file is configured.
// Persistence failures are logged, not returned; the in-memory
// registry stays authoritative.
func (h *CablesHandler) persist(ctx context.Context) {
	if h.file == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.registry.SaveCSV(h.file); err != nil {
		h.logger.ErrorContext(ctx, "failed to persist cable registry",
			slog.String("file", h.file),
			slog.String("error", err.Error()))
	}
}

func (h *CablesHandler) renderProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	problem := apierrors.NewProblemDetails(status, problemType, title, detail, r.URL.Path).
		WithExtension("trace_id", infrastructure.TraceIDFromContext(r.Context()))
	render.Render(w, r, problem)
}
