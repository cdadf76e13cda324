// Package httpapi exposes the orchestration and catalog sync endpoints over
// HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ContractsOrchestrator/internal/usecase"
)

// Version is reported on every orchestrator response.
const Version = "ai-orchestrator:v1.0"

// Orchestrator handles one chat message.
type Orchestrator interface {
	Handle(ctx context.Context, req usecase.Request) (usecase.Response, error)
}

// CatalogSyncer pulls one catalog page into the contracts table.
type CatalogSyncer interface {
	Run(ctx context.Context, req usecase.SyncRequest) (usecase.SyncResult, error)
}

// Deps wires the use cases behind the routes. A nil Sync disables the
// catalog endpoints.
type Deps struct {
	Orchestrator Orchestrator
	Sync         CatalogSyncer
	Logger       *slog.Logger
}

// Server is the HTTP surface of the service.
type Server struct {
	orchestrator Orchestrator
	sync         CatalogSyncer
	logger       *slog.Logger
	engine       *gin.Engine
}

// NewServer builds the router.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{orchestrator: deps.Orchestrator, sync: deps.Sync, logger: logger}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/healthz", s.health)

	orch := cors(orchestratorHeaders, orchestratorMethods)
	for _, path := range []string{"/functions/v1/ai-orchestrator", "/orchestrate"} {
		r.OPTIONS(path, orch, func(c *gin.Context) { c.Status(http.StatusOK) })
		r.POST(path, orch, s.orchestrate)
	}

	catalog := cors(catalogHeaders, catalogMethods)
	for _, path := range []string{"/functions/v1/samgov-contracts", "/catalog/sync"} {
		r.OPTIONS(path, catalog, func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		r.POST(path, catalog, s.syncCatalog)
	}
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve blocks while handling HTTP. Cancel ctx to shut down; in-flight
// requests get grace to finish.
func (s *Server) Serve(ctx context.Context, listener net.Listener, grace time.Duration) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()

	s.logger.Info("http server listening", "addr", listener.Addr().String())
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": Version})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
