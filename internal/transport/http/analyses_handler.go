package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tomdowns/cbatool/internal/config"
	"github.com/tomdowns/cbatool/internal/dataset"
	apierrors "github.com/tomdowns/cbatool/internal/errors"
	"github.com/tomdowns/cbatool/internal/infrastructure"
	"github.com/tomdowns/cbatool/internal/middleware"
	"github.com/tomdowns/cbatool/internal/operations"
	"github.com/tomdowns/cbatool/internal/report"
	"github.com/tomdowns/cbatool/internal/validation"
)

// maxUploadMemory bounds the in-memory portion of a multipart survey
// upload; larger parts spill to temp files.
const maxUploadMemory = 32 << 20

// AnalysesHandler handles analysis lifecycle requests.
type AnalysesHandler struct {
	service   AnalysisService
	config    *config.Config
	validator *validation.FileValidator
	logger    *slog.Logger
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(service AnalysisService, cfg *config.Config, logger *slog.Logger) *AnalysesHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AnalysesHandler{
		service:   service,
		config:    cfg,
		validator: validation.NewFileValidator(logger),
		logger:    logger.With(slog.String("handler", "analyses")),
	}
}

// Routes returns the analysis route tree.
func (h *AnalysesHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Timeout(60*time.Second, h.logger))

	// Only submissions are rate limited; polling endpoints stay cheap
	// enough to leave open.
	if h.config.Server.RateLimit.Enabled {
		limiter := middleware.NewClientRateLimiter(h.config.Server.RateLimit.RPS, h.config.Server.RateLimit.Burst, h.logger)
		r.With(limiter.Handler).Post("/", h.StartAnalysis)
	} else {
		r.Post("/", h.StartAnalysis)
	}
	r.Get("/", h.ListAnalyses)
	r.Get("/{id}", h.GetAnalysis)
	r.Get("/{id}/summary", h.GetSummary)
	r.Post("/{id}/cancel", h.CancelAnalysis)

	return r
}

// AnalysisRequest is the JSON body of POST /api/analyses. Every field
// is optional except file; absent fields keep the configured defaults.
// The depth, position and ranges sections merge field-by-field onto
// the defaults, so a client can override a single threshold without
// restating the rest.
type AnalysisRequest struct {
	Cable            string              `json:"cable,omitempty"`
	File             string              `json:"file,omitempty"`
	Sheet            string              `json:"sheet,omitempty"`
	MaxRows          int                 `json:"max_rows,omitempty"`
	Schema           *dataset.Schema     `json:"schema,omitempty"`
	Depth            json.RawMessage     `json:"depth,omitempty"`
	Position         json.RawMessage     `json:"position,omitempty"`
	Ranges           json.RawMessage     `json:"ranges,omitempty"`
	OutputDir        string              `json:"output_dir,omitempty"`
	Format           string              `json:"format,omitempty"`
	Charts           *bool               `json:"charts,omitempty"`
	IncludeAnomalies *bool               `json:"include_anomalies,omitempty"`
	SegmentOverlays  *bool               `json:"segment_overlays,omitempty"`
	Snapshots        *bool               `json:"snapshots,omitempty"`
	Project          *report.ProjectInfo `json:"project,omitempty"`
}

// Bind implements render.Binder.
func (a *AnalysisRequest) Bind(r *http.Request) error {
	if a.File == "" {
		return fmt.Errorf("file is required")
	}
	if a.Format != "" {
		if _, err := report.ParseFormat(a.Format); err != nil {
			return err
		}
	}
	return nil
}

// apply overlays the body onto a request seeded with the configured
// defaults.
func (a *AnalysisRequest) apply(req *operations.Request) error {
	if a.Cable != "" {
		req.Cable = a.Cable
	}
	if a.File != "" {
		req.File = a.File
	}
	if a.Sheet != "" {
		req.Sheet = a.Sheet
	}
	if a.MaxRows > 0 {
		req.MaxRows = a.MaxRows
	}
	if a.Schema != nil {
		req.Schema = *a.Schema
	}
	if len(a.Depth) > 0 {
		if err := json.Unmarshal(a.Depth, &req.Depth); err != nil {
			return fmt.Errorf("depth parameters: %w", err)
		}
	}
	if len(a.Position) > 0 {
		if err := json.Unmarshal(a.Position, &req.Position); err != nil {
			return fmt.Errorf("position parameters: %w", err)
		}
	}
	// Viewing ranges follow the depth target unless the client
	// overrides it explicitly in the ranges section.
	req.Ranges.TargetDepth = req.Depth.TargetDepth
	if len(a.Ranges) > 0 {
		if err := json.Unmarshal(a.Ranges, &req.Ranges); err != nil {
			return fmt.Errorf("ranges parameters: %w", err)
		}
	}
	if a.OutputDir != "" {
		req.OutputDir = a.OutputDir
	}
	if a.Format != "" {
		f, err := report.ParseFormat(a.Format)
		if err != nil {
			return err
		}
		req.Format = f
	}
	if a.Charts != nil {
		req.Charts = *a.Charts
	}
	if a.IncludeAnomalies != nil {
		req.IncludeAnomalies = *a.IncludeAnomalies
	}
	if a.SegmentOverlays != nil {
		req.SegmentOverlays = *a.SegmentOverlays
	}
	if a.Snapshots != nil {
		req.Snapshots = *a.Snapshots
	}
	if a.Project != nil {
		req.Project = *a.Project
	}
	return nil
}

// AnalysisAccepted is the 202 envelope returned when an analysis is
// queued.
type AnalysisAccepted struct {
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
	Href        string `json:"href"`
}

// AnalysisList wraps operation snapshots for GET /api/analyses.
type AnalysisList struct {
	Analyses []*operations.Snapshot `json:"analyses"`
	Count    int                    `json:"count"`
}

// StartAnalysis handles POST /api/analyses. The body is either a JSON
// document naming a server-side survey file, or a multipart form with
// a "file" part and an optional "request" part carrying the same JSON.
func (h *AnalysesHandler) StartAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("analyses-handler")

	ctx, span := tracer.Start(ctx, "analyses_handler.start_analysis",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/analyses"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	req := operations.NewRequest(h.config)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := h.bindMultipart(r, &req); err != nil {
			span.RecordError(err)
			h.renderValidationProblem(w, r, err)
			return
		}
	} else {
		data := &AnalysisRequest{}
		if err := render.Bind(r, data); err != nil {
			span.RecordError(err)
			h.renderValidationProblem(w, r, err)
			return
		}
		if err := data.apply(&req); err != nil {
			span.RecordError(err)
			h.renderValidationProblem(w, r, err)
			return
		}
		// Server-side paths are checked up front so a typo comes back
		// as a 400 instead of a failed operation.
		if err := h.validator.ValidateSurveyFile(req.File); err != nil {
			span.RecordError(err)
			h.renderValidationProblem(w, r, err)
			return
		}
	}

	id, err := h.service.Start(ctx, req)
	if err != nil {
		span.RecordError(err)
		h.handleError(w, r, err)
		return
	}

	span.SetAttributes(attribute.String("operation.id", id))
	h.logger.InfoContext(ctx, "analysis accepted",
		slog.String("operation_id", id),
		slog.String("file", req.File),
		slog.String("cable", req.Cable),
		slog.String("request_id", reqID))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, &AnalysisAccepted{
		OperationID: id,
		Status:      string(operations.StatusPending),
		Href:        "/api/analyses/" + id,
	})
}

// bindMultipart stores the uploaded survey file under the data
// directory and overlays any request metadata onto req.
func (h *AnalysesHandler) bindMultipart(r *http.Request, req *operations.Request) error {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return fmt.Errorf("parse multipart form: %w", err)
	}

	if meta := r.FormValue("request"); meta != "" {
		data := &AnalysisRequest{}
		if err := json.Unmarshal([]byte(meta), data); err != nil {
			return fmt.Errorf("request part: %w", err)
		}
		if data.Format != "" {
			if _, err := report.ParseFormat(data.Format); err != nil {
				return err
			}
		}
		if err := data.apply(req); err != nil {
			return err
		}
	}
	if cable := r.FormValue("cable"); cable != "" {
		req.Cable = cable
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return fmt.Errorf("file part is required: %w", err)
	}
	defer file.Close()

	name := validation.SanitizeFilename(header.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	supported := false
	for _, allowed := range validation.SurveyExtensions {
		if ext == allowed {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported survey file type %q, want one of %s",
			ext, strings.Join(validation.SurveyExtensions, ", "))
	}

	dir := filepath.Join(h.config.GetDataDir(), uploadsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}
	dst := filepath.Join(dir, uuid.New().String()[:8]+"_"+name)
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		os.Remove(dst)
		return fmt.Errorf("store upload: %w", err)
	}

	// The stored upload wins over any file named in the request part.
	req.File = dst

	h.logger.Info("survey upload stored",
		slog.String("file", dst),
		slog.String("original", header.Filename),
		slog.Int64("size", header.Size))
	return nil
}

// ListAnalyses handles GET /api/analyses.
func (h *AnalysesHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	snaps := h.service.List()
	if snaps == nil {
		snaps = []*operations.Snapshot{}
	}
	render.JSON(w, r, &AnalysisList{Analyses: snaps, Count: len(snaps)})
}

// GetAnalysis handles GET /api/analyses/{id}.
func (h *AnalysesHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := h.service.Get(id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// GetSummary handles GET /api/analyses/{id}/summary. Results are only
// available once the operation has reached a terminal status; a
// still-running operation answers 409.
func (h *AnalysesHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.service.Results(id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// CancelAnalysis handles POST /api/analyses/{id}/cancel.
func (h *AnalysesHandler) CancelAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	tracer := otel.Tracer("analyses-handler")

	ctx, span := tracer.Start(ctx, "analyses_handler.cancel_analysis",
		trace.WithAttributes(attribute.String("operation.id", id)),
	)
	defer span.End()

	if err := h.service.Cancel(id); err != nil {
		span.RecordError(err)
		h.handleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "analysis cancellation requested",
		slog.String("operation_id", id))

	render.JSON(w, r, map[string]string{
		"operation_id": id,
		"status":       "cancelling",
	})
}

// renderValidationProblem answers a 400 problem document for a request
// that never reached the manager.
func (h *AnalysesHandler) renderValidationProblem(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, "invalid analysis request",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetReqID(ctx)))

	problem := apierrors.NewProblemDetails(
		http.StatusBadRequest,
		"/errors/validation",
		"Validation Error",
		err.Error(),
		r.URL.Path,
	).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx))
	render.Render(w, r, problem)
}

// handleError translates manager errors into problem documents.
func (h *AnalysesHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	traceID := infrastructure.TraceIDFromContext(ctx)

	h.logger.ErrorContext(ctx, "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method))

	status := http.StatusInternalServerError
	problemType := "/errors/internal-server-error"
	title := "Internal Server Error"

	switch {
	case errors.Is(err, operations.ErrOperationNotFound):
		status, problemType, title = http.StatusNotFound, "/errors/not-found", "Not Found"
	case errors.Is(err, operations.ErrOperationRunning):
		status, problemType, title = http.StatusConflict, "/errors/conflict", "Operation Still Running"
	case errors.Is(err, operations.ErrOperationNotRunning):
		status, problemType, title = http.StatusConflict, "/errors/conflict", "Operation Not Running"
	case errors.Is(err, context.DeadlineExceeded):
		status, problemType, title = http.StatusGatewayTimeout, "/errors/timeout", "Request Timeout"
	default:
		switch operations.GetErrorType(err) {
		case operations.ErrorTypeValidation:
			status, problemType, title = http.StatusBadRequest, "/errors/validation", "Validation Error"
		case operations.ErrorTypeNotFound:
			status, problemType, title = http.StatusNotFound, "/errors/not-found", "Not Found"
		case operations.ErrorTypeInvalidState, operations.ErrorTypeCancellation:
			status, problemType, title = http.StatusConflict, "/errors/conflict", "Conflict"
		}
	}

	problem := apierrors.NewProblemDetails(status, problemType, title, err.Error(), r.URL.Path).
		WithExtension("trace_id", traceID)
	render.Render(w, r, problem)
}
