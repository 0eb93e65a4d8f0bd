package api

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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nrfconnect/auto-pts/internal/pts"
	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
	"github.com/nrfconnect/auto-pts/internal/runner"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Bridge is the part of ptscontrol.Control the API exposes.
type Bridge interface {
	CreateWorkspace(ctx context.Context, bdAddr, ptsFilePath, workspaceName, workspacePath string) error
	OpenWorkspace(ctx context.Context, workspacePath string) error
	Projects(ctx context.Context) ([]ptscontrol.ProjectInfo, error)
	TestCases(ctx context.Context, project string) ([]ptscontrol.TestCaseInfo, error)
	TestCasesFromTSSFile(ctx context.Context, project string) ([]string, error)
	UpdatePics(ctx context.Context, project, entry string, value bool) error
	UpdatePixitParam(ctx context.Context, project, param, value string) error
	StopTestCase(ctx context.Context, project, testCase string) error
	EnableMaximumLogging(ctx context.Context, enable bool) error
	SetCallTimeout(ctx context.Context, timeout time.Duration) error
	SaveTestHistoryLog(ctx context.Context, save bool) error
	BDAddr(ctx context.Context) (string, error)
	Version(ctx context.Context) (uint32, error)
	Running() bool
}

// Server wraps the chi router and application dependencies.
type Server struct {
	router   *chi.Mux
	control  Bridge
	runner   *runner.Runner
	registry *pts.Registry
	engine   string
	logger   *slog.Logger
	addr     string
}

// NewServer creates and configures a new HTTP server. engine names the
// registry driver the bridge was opened with.
func NewServer(addr string, control Bridge, run *runner.Runner, reg *pts.Registry, engine string, logger *slog.Logger) *Server {
	srv := &Server{
		router:   chi.NewRouter(),
		control:  control,
		runner:   run,
		registry: reg,
		engine:   engine,
		logger:   logger,
		addr:     addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Get("/v1/engine", s.handleGetEngine)
	s.router.Put("/v1/settings", s.handleUpdateSettings)
	s.router.Get("/v1/stats", s.handleGetStats)

	s.router.Post("/v1/workspace", s.handleCreateWorkspace)
	s.router.Post("/v1/workspace/open", s.handleOpenWorkspace)

	s.router.Route("/v1/projects", func(r chi.Router) {
		r.Get("/", s.handleListProjects)
		r.Get("/{project}/testcases", s.handleListTestCases)
		r.Get("/{project}/tss", s.handleListTSS)
		r.Put("/{project}/pics/{entry}", s.handleUpdatePics)
		r.Put("/{project}/pixit/{param}", s.handleUpdatePixit)
		r.Post("/{project}/testcases/*", s.handleTestCaseAction)
	})

	s.router.Route("/v1/runs", func(r chi.Router) {
		r.Post("/", s.handleCreateRun)
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
		r.Get("/{id}/logs", s.handleStreamLogs)
		r.Get("/{id}/logs/history", s.handleGetLogHistory)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
