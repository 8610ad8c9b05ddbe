package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tomdowns/cbatool/internal/config"
	apierrors "github.com/tomdowns/cbatool/internal/errors"
	"github.com/tomdowns/cbatool/internal/infrastructure"
)

// ProfilesHandler serves the analysis profiles stored in the profiles
// directory.
type ProfilesHandler struct {
	dir    string
	logger *slog.Logger
}

// NewProfilesHandler creates a new profiles handler reading from dir.
func NewProfilesHandler(dir string, logger *slog.Logger) *ProfilesHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ProfilesHandler{
		dir:    dir,
		logger: logger.With(slog.String("handler", "profiles")),
	}
}

// Routes returns the profiles route tree.
func (h *ProfilesHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListProfiles)
	r.Get("/{name}", h.GetProfile)

	return r
}

// ProfileList wraps directory entries for GET /api/profiles.
type ProfileList struct {
	Profiles []config.ProfileInfo `json:"profiles"`
	Count    int                  `json:"count"`
}

// ListProfiles handles GET /api/profiles.
func (h *ProfilesHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := config.ListProfiles(h.dir)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list analysis profiles",
			slog.String("dir", h.dir),
			slog.String("error", err.Error()))
		h.renderProblem(w, r, http.StatusInternalServerError, "/errors/internal", "Internal Server Error",
			"unable to read the profiles directory")
		return
	}
	if profiles == nil {
		profiles = []config.ProfileInfo{}
	}

	render.JSON(w, r, &ProfileList{Profiles: profiles, Count: len(profiles)})
}

// GetProfile handles GET /api/profiles/{name}. The name is a file name
// inside the profiles directory; the .json extension is optional.
func (h *ProfilesHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	// Names never escape the profiles directory.
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		h.renderProblem(w, r, http.StatusBadRequest, "/errors/validation", "Validation Error",
			fmt.Sprintf("invalid profile name %q", name))
		return
	}

	profile, err := config.LoadProfile(filepath.Join(h.dir, name))
	if err != nil {
		h.renderProblem(w, r, http.StatusNotFound, "/errors/not-found", "Not Found",
			fmt.Sprintf("profile %q is not available", name))
		return
	}
	render.JSON(w, r, profile)
}

func (h *ProfilesHandler) renderProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	problem := apierrors.NewProblemDetails(status, problemType, title, detail, r.URL.Path).
		WithExtension("trace_id", infrastructure.TraceIDFromContext(r.Context()))
	render.Render(w, r, problem)
}
