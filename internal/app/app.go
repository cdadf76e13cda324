package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"ContractsOrchestrator/internal/audit"
	"ContractsOrchestrator/internal/config"
	"ContractsOrchestrator/internal/infrastructure/catalog"
	"ContractsOrchestrator/internal/infrastructure/docstore"
	"ContractsOrchestrator/internal/infrastructure/llm"
	"ContractsOrchestrator/internal/infrastructure/scheduler"
	"ContractsOrchestrator/internal/infrastructure/storage"
	"ContractsOrchestrator/internal/logging"
	"ContractsOrchestrator/internal/ports"
	"ContractsOrchestrator/internal/tools"
	"ContractsOrchestrator/internal/transport/httpapi"
	"ContractsOrchestrator/internal/usecase"
)

const auditWriteTimeout = 5 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db        *sql.DB
	recorder  *audit.Recorder
	sync      *usecase.CatalogSync
	scheduler *usecase.Scheduler
	server    *httpapi.Server
}

// Option customizes New.
type Option func(*options)

type options struct {
	model      ports.ModelGateway
	httpClient *http.Client
}

// WithModel replaces the configured inference backend.
func WithModel(m ports.ModelGateway) Option {
	return func(o *options) { o.model = m }
}

// WithHTTPClient is used for document downloads and the document store.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New opens the database and builds every adapter. Backends without
// credentials are left out and their tools report not configured.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts ...Option) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithWriter(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	repo := storage.NewSQLRepository(db, cfg.Database.Driver)

	model := o.model
	if model == nil {
		gw, err := llm.New(cfg.Model)
		if err != nil {
			baseLogger.Warn("model gateway disabled", "provider", cfg.Model.Provider, "error", err)
		} else {
			model = gw
		}
	}

	var documents ports.DocumentStore
	if store, err := docstore.NewSupabaseStore(cfg.Storage, o.httpClient); err != nil {
		baseLogger.Warn("document store disabled", "error", err)
	} else {
		documents = store
	}

	fetchClient := o.httpClient
	if fetchClient == nil && cfg.Storage.FetchTimeout > 0 {
		fetchClient = &http.Client{Timeout: time.Duration(cfg.Storage.FetchTimeout) * time.Second}
	}
	fetcher := docstore.NewHTTPFetcher(fetchClient, cfg.Storage.MaxFetchBytes)

	var catalogClient ports.Catalog
	if client, err := catalog.NewSAMClient(cfg.Catalog, nil); err != nil {
		baseLogger.Warn("catalog client disabled", "error", err)
	} else {
		catalogClient = client
	}

	pipeline := usecase.NewAnalysisPipeline(usecase.AnalysisDeps{
		Analyses:     repo,
		Documents:    documents,
		Fetcher:      fetcher,
		PrivateDocs:  cfg.Storage.Private,
		SignedURLTTL: time.Duration(cfg.Storage.SignedURLTTL) * time.Second,
		Logger:       baseLogger.With("component", "analysis"),
	})
	registry := tools.NewDefaultRegistry(tools.Services{
		Analyzer:  pipeline,
		Extractor: usecase.NewExtractor(baseLogger.With("component", "extraction")),
		Documents: usecase.NewDocumentLister(repo, documents, baseLogger.With("component", "documents")),
	})

	recorder := audit.NewRecorder(repo, auditWriteTimeout, baseLogger.With("component", "audit"))
	orchestrator := usecase.NewOrchestrator(model, registry, recorder, baseLogger.With("component", "orchestrator"))

	a := &Application{cfg: cfg, logger: baseLogger, db: db, recorder: recorder}

	var syncer httpapi.CatalogSyncer
	if catalogClient != nil {
		a.sync = usecase.NewCatalogSync(catalogClient, repo, baseLogger.With("component", "catalog"))
		syncer = a.sync
		if cfg.Sync.Enabled {
			a.scheduler = usecase.NewScheduler(
				scheduler.NewIntervalScheduler(cfg.Sync.Every()),
				a.sync,
				scheduledRequest(cfg.Sync),
				baseLogger.With("component", "scheduler"),
			)
		}
	}

	a.server = httpapi.NewServer(httpapi.Deps{
		Orchestrator: orchestrator,
		Sync:         syncer,
		Logger:       baseLogger.With("component", "http"),
	})
	return a, nil
}

func scheduledRequest(cfg config.SyncConfig) usecase.SyncRequest {
	req := usecase.SyncRequest{Keywords: cfg.Keywords, NAICS: cfg.NAICS, State: cfg.State}
	if cfg.Limit > 0 {
		limit := cfg.Limit
		req.Limit = &limit
	}
	return req
}

// Handler exposes the HTTP router.
func (a *Application) Handler() http.Handler {
	return a.server.Handler()
}

// Run serves HTTP and, when enabled, the periodic catalog sync until ctx is
// cancelled.
func (a *Application) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Server.Addr, err)
	}

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			_ = listener.Close()
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	return a.server.Serve(ctx, listener, a.cfg.Server.ShutdownGrace())
}

// SyncOnce runs a single catalog sync.
func (a *Application) SyncOnce(ctx context.Context, req usecase.SyncRequest) (usecase.SyncResult, error) {
	if a.sync == nil {
		return usecase.SyncResult{}, errors.New("catalog sync is not configured: set SAM_API_KEY")
	}
	return a.sync.Run(ctx, req)
}

// Close stops the scheduler, drains pending audit writes and closes the
// database.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	if err := a.recorder.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain audit: %w", err))
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
