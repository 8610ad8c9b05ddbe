package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/tomdowns/cbatool/internal/config"
	"github.com/tomdowns/cbatool/internal/infrastructure"
	customMiddleware "github.com/tomdowns/cbatool/internal/middleware"
	"github.com/tomdowns/cbatool/internal/operations"
	"github.com/tomdowns/cbatool/internal/registry"
	"github.com/tomdowns/cbatool/internal/services"
	handlers "github.com/tomdowns/cbatool/internal/transport/http"
	"github.com/tomdowns/cbatool/internal/viz"
	ws "github.com/tomdowns/cbatool/internal/websocket"
)

// Application is the composed server: configuration, observability, the
// websocket hub, the operations manager, the cable registry and the HTTP
// surface that exposes them.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	Hub      *ws.Hub
	Manager  *operations.Manager
	Registry *registry.Registry
	Health   *services.HealthService

	Router chi.Router
	Server *http.Server
}

// NewApplication builds the application from the ambient configuration
// (environment variables and the default config file locations).
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig builds the application from an already loaded
// configuration. The CLIs use this to honor an explicit -config flag.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", cfg.Server.Port))

	// Materialize the built-in analysis profiles so operators can copy
	// and edit them. Failure is not fatal; analyses fall back to the
	// configured defaults.
	if err := config.WriteBuiltinProfiles(cfg.GetProfilesDir()); err != nil {
		logger.Warn("failed to write builtin analysis profiles",
			slog.String("dir", cfg.GetProfilesDir()),
			slog.String("error", err.Error()))
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices wires the hub, the operations manager, the cable
// registry and the health service in dependency order.
func (a *Application) initializeServices() error {
	wsOpts := ws.DefaultOptions()
	if a.Config.WebSocket.PingPeriod > 0 {
		wsOpts.PingPeriod = a.Config.WebSocket.PingPeriod
	}
	if a.Config.WebSocket.PongWait > 0 {
		wsOpts.PongWait = a.Config.WebSocket.PongWait
	}
	a.Hub = ws.NewHubWithOptions(a.Logger, wsOpts)

	meter := a.OTelProviders.Meter
	if meter == nil {
		meter = otel.Meter(infrastructure.MeterName)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to create business metrics: %w", err)
	}

	a.Manager = operations.NewManager(a.Logger,
		operations.WithPublisher(ws.NewOperationPublisher(a.Hub)),
		operations.WithMetrics(metrics),
		operations.WithTimeout(a.Config.Server.OperationTimeout),
		operations.WithSnapshotter(viz.NewSnapshotter(a.Logger)),
	)

	a.Registry = a.loadRegistry()
	a.Health = services.NewHealthService(a.Config, a.Manager, a.Hub, a.Logger)

	return nil
}

// loadRegistry prefers the persisted CSV over the configured groups: the
// CSV carries status transitions made through the API across restarts.
func (a *Application) loadRegistry() *registry.Registry {
	file := a.Config.GetRegistryFile()
	if file != "" {
		if _, err := os.Stat(file); err == nil {
			reg := registry.New(a.Logger)
			if err := reg.LoadCSV(file); err != nil {
				a.Logger.Error("failed to load cable registry",
					slog.String("file", file),
					slog.String("error", err.Error()))
			} else {
				a.Logger.Info("cable registry loaded",
					slog.String("file", file),
					slog.Int("cables", len(reg.Cables("", ""))))
				return reg
			}
		}
	}

	groups := make([]registry.Group, 0, len(a.Config.Registry.Groups))
	for _, g := range a.Config.Registry.Groups {
		groups = append(groups, registry.Group{Type: g.Type, Identifiers: g.Identifiers})
	}
	return registry.FromGroups(groups, a.Logger)
}

// setupRouter configures the HTTP router with all routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Only middleware that leaves the ResponseWriter unwrapped may run
	// before the websocket upgrade.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// The websocket route must be registered before the main group: the
	// wrappers below break connection hijacking.
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc("/ws", a.handleWebSocket)

	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
			r.Use(customMiddleware.BusinessMetricsMiddleware(otelMiddleware.Metrics()))
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)
		r.Use(customMiddleware.CORS(a.corsConfig()))

		a.setupAPIRoutes(r)
	})

	// Prometheus scrapes skip the middleware chain.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures the API endpoints.
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			healthHandler := handlers.NewHealthHandler(a.Health, a.Logger)
			r.Mount("/health", healthHandler.Routes())

			cablesHandler := handlers.NewCablesHandler(a.Registry, a.Config.GetRegistryFile(), a.Logger)
			r.Mount("/cables", cablesHandler.Routes())

			profilesHandler := handlers.NewProfilesHandler(a.Config.GetProfilesDir(), a.Logger)
			r.Mount("/profiles", profilesHandler.Routes())

			surveysHandler := handlers.NewSurveysHandler(a.Config.GetDataDir(), a.Logger)
			r.Mount("/surveys", surveysHandler.Routes())
		})

		// The analyses routes carry their own timeout and rate limit.
		analysesHandler := handlers.NewAnalysesHandler(a.Manager, a.Config, a.Logger)
		r.Mount("/analyses", analysesHandler.Routes())
	})
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins:   a.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

// originAllowed reports whether a websocket upgrade from origin may
// proceed. Same-origin requests arrive without an Origin header.
func (a *Application) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	if a.Config.Logging.Development {
		return true
	}
	for _, allowed := range a.Config.Server.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// createServer creates the HTTP server.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start launches the hub and the HTTP listener. A listener failure other
// than a clean close cancels the supplied context so the caller can shut
// down the rest of the application.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting server",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)),
		slog.String("log_level", a.Config.Logging.Level))

	a.Hub.Start()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.Hub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return infrastructure.CloseLogFile()
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
	}

	// Detach shutdown from the cancelled run context so draining still
	// gets its full timeout.
	return a.Stop(context.Background())
}

// handleWebSocket upgrades the connection and hands it to the hub.
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}

	ctx := infrastructure.WithTraceID(r.Context(), reqID)
	a.Logger.InfoContext(ctx, "websocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if a.originAllowed(origin) {
				return true
			}
			a.Logger.WarnContext(ctx, "websocket origin rejected",
				slog.String("origin", origin),
				slog.Any("allowed_origins", a.Config.Server.AllowedOrigins))
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			a.Logger.ErrorContext(ctx, "websocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already wrote the failure response.
		return
	}

	a.Logger.InfoContext(ctx, "websocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	ws.ServeWSWithTrace(a.Hub, conn, reqID)
}
