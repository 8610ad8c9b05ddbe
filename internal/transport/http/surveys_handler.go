package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/tomdowns/cbatool/internal/errors"
	"github.com/tomdowns/cbatool/internal/files"
	"github.com/tomdowns/cbatool/internal/infrastructure"
)

// uploadsDir is where multipart submissions land inside the data
// directory.
const uploadsDir = "uploads"

// SurveysHandler lists the survey files available for analysis: the
// data directory plus everything uploaded through the analyses API.
type SurveysHandler struct {
	discovery *files.Discovery
	logger    *slog.Logger
}

// NewSurveysHandler creates a surveys handler over dataDir.
func NewSurveysHandler(dataDir string, logger *slog.Logger) *SurveysHandler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("handler", "surveys"))

	// Create the uploads directory up front so listings never fail on
	// a fresh installation.
	if err := files.NewManager(dataDir).EnsureDirectory(uploadsDir); err != nil {
		logger.Warn("failed to create uploads directory",
			slog.String("dir", dataDir),
			slog.String("error", err.Error()))
	}

	return &SurveysHandler{
		discovery: files.NewDiscovery(dataDir),
		logger:    logger,
	}
}

// Routes returns the surveys route tree.
func (h *SurveysHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListSurveys)
	r.Get("/{name}", h.GetSurvey)

	return r
}

// SurveyFile describes one discoverable survey file.
type SurveyFile struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

// SurveyList wraps discovered files for GET /api/surveys.
type SurveyList struct {
	Surveys []SurveyFile `json:"surveys"`
	Count   int          `json:"count"`
}

// ListSurveys handles GET /api/surveys, newest files first.
func (h *SurveysHandler) ListSurveys(w http.ResponseWriter, r *http.Request) {
	found, err := h.findAll()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list survey files",
			slog.String("error", err.Error()))
		h.renderProblem(w, r, http.StatusInternalServerError, "/errors/internal", "Internal Server Error",
			"unable to read the survey data directory")
		return
	}

	surveys := make([]SurveyFile, 0, len(found))
	for i := len(found) - 1; i >= 0; i-- {
		surveys = append(surveys, SurveyFile{
			Name:     found[i].Name,
			Path:     found[i].Path,
			Size:     found[i].Size,
			Modified: found[i].ModTime,
		})
	}
	render.JSON(w, r, &SurveyList{Surveys: surveys, Count: len(surveys)})
}

// GetSurvey handles GET /api/surveys/{name}. The response carries the
// file's content fingerprint so clients can verify an upload landed
// intact.
func (h *SurveysHandler) GetSurvey(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	// Names never escape the data directory.
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		h.renderProblem(w, r, http.StatusBadRequest, "/errors/validation", "Validation Error",
			fmt.Sprintf("invalid survey name %q", name))
		return
	}

	found, err := h.findAll()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list survey files",
			slog.String("error", err.Error()))
		h.renderProblem(w, r, http.StatusInternalServerError, "/errors/internal", "Internal Server Error",
			"unable to read the survey data directory")
		return
	}

	for i := len(found) - 1; i >= 0; i-- {
		if found[i].Name != name {
			continue
		}
		survey := SurveyFile{
			Name:     found[i].Name,
			Path:     found[i].Path,
			Size:     found[i].Size,
			Modified: found[i].ModTime,
		}
		if fp, err := files.Fingerprint(found[i].Path); err == nil {
			survey.Fingerprint = fp
		}
		render.JSON(w, r, survey)
		return
	}

	h.renderProblem(w, r, http.StatusNotFound, "/errors/not-found", "Not Found",
		fmt.Sprintf("survey %q is not available", name))
}

// findAll merges the data directory and its uploads subdirectory,
// oldest first. A missing uploads directory is not an error.
func (h *SurveysHandler) findAll() ([]files.FileInfo, error) {
	found, err := h.discovery.FindSurveyFiles("")
	if err != nil {
		return nil, err
	}
	uploads, err := h.discovery.FindSurveyFiles(uploadsDir)
	if err == nil {
		found = append(found, uploads...)
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].ModTime.Before(found[j].ModTime)
	})
	return found, nil
}

func (h *SurveysHandler) renderProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	problem := apierrors.NewProblemDetails(status, problemType, title, detail, r.URL.Path).
		WithExtension("trace_id", infrastructure.TraceIDFromContext(r.Context()))
	render.Render(w, r, problem)
}
