package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	entitycache "ctibridge/internal/cache/entity"
	"ctibridge/internal/gateway/config"
	"ctibridge/internal/gateway/handler/rpc"
	"ctibridge/internal/gateway/repository/audit"
	"ctibridge/internal/gateway/server"
	"ctibridge/internal/gateway/service/observables"
	"ctibridge/internal/mcp"
	"ctibridge/internal/metrics"
	"ctibridge/internal/opencti"
)

const shutdownTimeout = 5 * time.Second

// Version is reported to MCP clients during initialize.
var Version = "dev"

type App struct {
	cfg      *config.Config
	logger   *log.Logger
	metrics  *metrics.Metrics
	registry *mcp.Registry
	mcp      *mcp.Server
	server   *server.Server
	db       *sql.DB
}

// Option overrides a dependency, mostly for tests.
type Option func(*options)

type options struct {
	transport opencti.Transport
	journal   audit.Store
}

// WithTransport replaces the HTTP transport to OpenCTI. Middlewares are
// still applied on top of it.
func WithTransport(t opencti.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithJournal replaces the audit store chosen from the config.
func WithJournal(store audit.Store) Option {
	return func(o *options) { o.journal = store }
}

func New(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger, metrics: metrics.New()}

	// OpenCTI access
	inner := o.transport
	if inner == nil {
		inner = opencti.NewHTTPTransport(cfg.OpenCTI.BaseURL, cfg.OpenCTI.Token, cfg.OpenCTI.VerifySSL)
	}
	// The timeout wraps the limiter so queueing counts against OPENCTI_TIMEOUT.
	transport := opencti.Wrap(inner,
		opencti.WithLogging(logger),
		opencti.WithTracing(nil),
		opencti.WithObserver(a.metrics),
		opencti.WithTimeout(cfg.OpenCTI.Timeout),
		opencti.WithRateLimit(cfg.OpenCTI.RPS, cfg.OpenCTI.Burst),
	)
	client := opencti.NewClient(transport)

	// Stores
	journal := o.journal
	if journal == nil {
		var err error
		journal, err = a.openJournal(ctx)
		if err != nil {
			return nil, err
		}
	}

	// Services
	svcOpts := []observables.Option{
		observables.WithConnectorID(cfg.OpenCTI.EnrichmentConnectorID),
		observables.WithJournal(journal),
		observables.WithOutcomes(a.metrics),
		observables.WithLogger(logger),
	}
	if cfg.Gateway.SingleFlight {
		svcOpts = append(svcOpts, observables.WithSingleFlight())
	}
	svc, err := observables.New(client, client, svcOpts...)
	if err != nil {
		a.closeDB()
		return nil, fmt.Errorf("failed to build observable gateway: %w", err)
	}

	// Tools
	a.registry = mcp.NewRegistry()
	a.registry.SetObserver(a.metrics)
	err = mcp.RegisterDefaultTools(a.registry, mcp.Host{
		OpenCTI:     client,
		Observables: svc,
		Entities: entitycache.New(entitycache.Config{
			MaxEntries: cfg.Gateway.EntityCacheMax,
			TTL:        cfg.Gateway.EntityCacheTTL,
		}),
		Journal: journal,
	})
	if err != nil {
		a.closeDB()
		return nil, err
	}
	a.mcp = mcp.NewServer(a.registry,
		mcp.WithServerInfo("ctibridge", Version),
		mcp.WithServerLogger(logger),
	)

	// Routing & Server
	if cfg.HTTPAddr != "" {
		tools := rpc.NewToolHandler(a.registry, logger)
		a.server = server.New(cfg.HTTPAddr, server.NewRouter(tools, a.metrics.Handler()), logger)
	}

	if !svc.EnrichmentEnabled() {
		logger.Printf("enrichment disabled: no connector id configured")
	}
	return a, nil
}

func (a *App) openJournal(ctx context.Context) (audit.Store, error) {
	if a.cfg.AuditDSN == "" {
		a.logger.Printf("audit store: in-memory")
		return audit.NewMemoryStore(0), nil
	}
	db, err := audit.OpenPostgres(ctx, a.cfg.AuditDSN)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.logger.Printf("audit store: postgres")
	return audit.NewPostgresStore(db), nil
}

// Registry exposes the tool registry.
func (a *App) Registry() *mcp.Registry { return a.registry }

// Run serves MCP over in/out (skipped when in is nil) and, when configured,
// HTTP. It returns after the first surface stops or ctx is done, then shuts
// everything down. A blocked stdin read is abandoned rather than awaited.
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if in == nil && a.server == nil {
		return fmt.Errorf("nothing to serve: stdio disabled and no HTTP address configured")
	}
	errc := make(chan error, 2)
	if in != nil {
		go func() {
			err := a.mcp.Run(ctx, in, out)
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			errc <- err
		}()
	}
	if a.server != nil {
		go func() { errc <- a.server.Start() }()
	}

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if serr := a.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	a.closeDB()
	return err
}

func (a *App) closeDB() {
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
}
