package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/auth"
	"github.com/huanth/bi-a-manager/internal/platform/config"
	"github.com/huanth/bi-a-manager/internal/platform/events"
	"github.com/huanth/bi-a-manager/internal/platform/idempotency"
	"github.com/huanth/bi-a-manager/internal/platform/observability"
	"github.com/huanth/bi-a-manager/internal/repositories"
	"github.com/huanth/bi-a-manager/internal/repositories/docstore"
	"github.com/huanth/bi-a-manager/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Tables      services.TableSessionService
	Settlements services.SettlementCommitter
	Orders      services.OrderService
	Revenue     services.RevenueService
	Auth        services.AuthService
	Exports     services.ExportService
	System      services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Location     *time.Location
	Logger       *zap.Logger
	Repositories repositories.Registry
	Events       *events.Bus
	Idempotency  idempotency.Store
	Tokens       *auth.TokenIssuer
	Services     Services
}

// Option customises container construction.
type Option func(*options)

type options struct {
	backend docstore.Backend
	clock   func() time.Time
	build   services.BuildInfo
}

// WithDocumentBackend bypasses backend selection. Tests use it with an in-memory document.
func WithDocumentBackend(backend docstore.Backend) Option {
	return func(o *options) {
		o.backend = backend
	}
}

// WithClock overrides the clock shared by every service.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithBuildInfo sets the metadata reported by health endpoints.
func WithBuildInfo(version string, startedAt time.Time) Option {
	return func(o *options) {
		o.build.Version = version
		o.build.StartedAt = startedAt
	}
}

// NewContainer constructs the runtime dependencies from cfg.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.build.Environment = cfg.Environment
	if o.build.StartedAt.IsZero() {
		o.build.StartedAt = o.clock()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("venue time zone %q: %w", cfg.Venue.TimeZone, err)
	}

	in := &infra{cfg: cfg, clock: o.clock, logger: logger}
	c, err := build(ctx, in, o, loc, logger)
	if err != nil {
		closeAll(ctx, in.closers, logger)
		return nil, err
	}
	return c, nil
}

func build(ctx context.Context, in *infra, o options, loc *time.Location, logger *zap.Logger) (*Container, error) {
	cfg := in.cfg

	backend := o.backend
	if backend == nil {
		var err error
		if backend, err = in.documentBackend(ctx); err != nil {
			return nil, fmt.Errorf("document store: %w", err)
		}
	}
	repo, err := docstore.NewRepository(backend)
	if err != nil {
		return nil, err
	}
	registry := newDocumentRegistry(repo)

	storeCheck := func(ctx context.Context) error {
		if pinger, ok := backend.(docstore.Pinger); ok {
			return pinger.Ping(ctx)
		}
		_, err := repo.LoadTables(ctx)
		return err
	}
	in.checks = append([]repositories.DependencyCheck{{Name: "document_store", Check: storeCheck}}, in.checks...)

	keys, err := in.idempotencyStore()
	if err != nil {
		return nil, fmt.Errorf("idempotency store: %w", err)
	}

	bus := events.NewBus(
		events.WithClock(o.clock),
		events.WithLogger(observability.EventLogger(logger, "events")),
		events.WithSinkQueue(cfg.Events.SinkQueue, cfg.Events.DeliverTimeout),
	)
	if err := in.attachSinks(ctx, bus); err != nil {
		return nil, err
	}
	bus.OnSettlementCommitted(func(ctx context.Context, revenue domain.RevenueRecord) {
		logger.Info("settlement committed",
			zap.String("settlementID", revenue.SettlementID),
			zap.Int64("tableID", revenue.TableID),
			zap.Int64("amount", int64(revenue.Amount)),
			zap.String("createdBy", revenue.CreatedBy),
		)
	})

	exporter, err := in.exporter(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("exporter: %w", err)
	}

	tokens, err := tokenIssuer(cfg, o.clock, logger)
	if err != nil {
		return nil, err
	}

	health, err := repositories.NewDependencyHealthRepository(in.checks,
		repositories.WithDependencyClock(o.clock),
		repositories.WithBuildInfo(o.build.Version, o.build.Environment, o.build.StartedAt),
	)
	if err != nil {
		return nil, err
	}
	registry.setHealth(health)
	for _, fn := range in.closers {
		registry.onClose(fn)
	}
	in.closers = nil

	input := servicesInput{
		registry: registry,
		keys:     keys,
		bus:      bus,
		tokens:   tokens,
		loc:      loc,
		clock:    o.clock,
		build:    o.build,
		ttl:      cfg.Idempotency.TTL,
		logger:   logger,
	}
	if exporter != nil {
		input.exporter = exporter
	}
	svc, err := buildServices(input)
	if err != nil {
		_ = registry.Close(ctx)
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Location:     loc,
		Logger:       logger,
		Repositories: registry,
		Events:       bus,
		Idempotency:  keys,
		Tokens:       tokens,
		Services:     svc,
	}, nil
}

type servicesInput struct {
	registry repositories.Registry
	keys     idempotency.Store
	bus      *events.Bus
	exporter services.SnapshotExporter
	tokens   services.TokenIssuer
	loc      *time.Location
	clock    func() time.Time
	build    services.BuildInfo
	ttl      time.Duration
	logger   *zap.Logger
}

func buildServices(in servicesInput) (Services, error) {
	var svc Services
	reg := in.registry

	committer, err := services.NewSettlementService(services.SettlementServiceDeps{
		Tables:         reg.Tables(),
		Orders:         reg.Orders(),
		Revenue:        reg.Revenue(),
		Idempotency:    in.keys,
		IdempotencyTTL: in.ttl,
		Events:         in.bus,
		Metrics:        observability.DefaultSettlementMetrics(),
		Location:       in.loc,
		Clock:          in.clock,
		Logger:         observability.EventLogger(in.logger, "settlements"),
	})
	if err != nil {
		return svc, err
	}
	svc.Settlements = committer

	if svc.Tables, err = services.NewTableSessionService(services.TableSessionServiceDeps{
		Tables:    reg.Tables(),
		Orders:    reg.Orders(),
		Committer: committer,
		Biller:    services.NewSessionBiller(in.loc),
		Events:    in.bus,
		Clock:     in.clock,
		Logger:    observability.EventLogger(in.logger, "tables"),
	}); err != nil {
		return svc, err
	}

	if svc.Orders, err = services.NewOrderService(services.OrderServiceDeps{
		Orders: reg.Orders(),
		Tables: reg.Tables(),
		Events: in.bus,
		Clock:  in.clock,
		Logger: observability.EventLogger(in.logger, "orders"),
	}); err != nil {
		return svc, err
	}

	if svc.Revenue, err = services.NewRevenueService(services.RevenueServiceDeps{
		Revenue:  reg.Revenue(),
		Location: in.loc,
		Clock:    in.clock,
	}); err != nil {
		return svc, err
	}

	if svc.Auth, err = services.NewAuthService(services.AuthServiceDeps{
		Users:  reg.Users(),
		Tokens: in.tokens,
		Logger: observability.EventLogger(in.logger, "auth"),
	}); err != nil {
		return svc, err
	}

	if svc.Exports, err = services.NewExportService(services.ExportServiceDeps{
		Snapshots: reg.Snapshots(),
		Exporter:  in.exporter,
		Logger:    observability.EventLogger(in.logger, "exports"),
	}); err != nil {
		return svc, err
	}

	if svc.System, err = services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Tables:           reg.Tables(),
		Clock:            in.clock,
		Build:            in.build,
	}); err != nil {
		return svc, err
	}

	return svc, nil
}

// tokenIssuer signs staff tokens. A local environment without a configured secret gets an
// ephemeral one, so tokens do not survive a restart.
func tokenIssuer(cfg config.Config, clock func() time.Time, logger *zap.Logger) (*auth.TokenIssuer, error) {
	secret := cfg.Auth.TokenSecret
	if secret == "" && cfg.Environment == "local" {
		secret = ulid.Make().String() + ulid.Make().String()
		logger.Warn("AUTH_TOKEN_SECRET not set; using an ephemeral signing key")
	}
	return auth.NewTokenIssuer(secret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
		auth.WithTokenClock(clock),
	)
}

// Close releases repository clients and event transports.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func closeAll(ctx context.Context, closers []func(context.Context) error, logger *zap.Logger) {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("release partially wired dependencies", zap.Error(err))
	}
}
