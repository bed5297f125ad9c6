package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/huanth/bi-a-manager/internal/di"
	"github.com/huanth/bi-a-manager/internal/handlers"
	"github.com/huanth/bi-a-manager/internal/platform/config"
	"github.com/huanth/bi-a-manager/internal/platform/idempotency"
	"github.com/huanth/bi-a-manager/internal/platform/observability"
	"github.com/huanth/bi-a-manager/internal/platform/secrets"
	"github.com/huanth/bi-a-manager/internal/services"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Fprintln(os.Stdout, config.Usage())
		return
	}

	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer baseLogger.Sync() //nolint:errcheck
	logger := baseLogger.Named("api")

	secretOpts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(os.Getenv("SECRETS_PROJECT_ID")),
	}
	if path, ok := os.LookupEnv("SECRETS_FALLBACK_FILE"); ok {
		secretOpts = append(secretOpts, secrets.WithFallbackFile(path))
	}
	fetcher, err := secrets.NewFetcher(ctx, secretOpts...)
	if err != nil {
		logger.Fatal("secret fetcher unavailable", zap.Error(err))
	}
	defer closeLogged(logger, "secret fetcher", fetcher.Close)

	cfg, err := config.Load(ctx,
		config.WithEnvFile(os.Getenv("API_ENV_FILE")),
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.ResolveSecret)),
	)
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("problems", invalid.Problems()))
		}
		logger.Fatal("configuration could not be loaded", zap.Error(err))
	}
	logger = logger.With(zap.String("env", cfg.Environment), zap.String("venue", cfg.Venue.Name))

	container, err := di.NewContainer(ctx, cfg, logger,
		di.WithBuildInfo(buildVersion(), startedAt),
	)
	if err != nil {
		logger.Fatal("failed to wire dependencies", zap.Error(err))
	}
	defer closeLogged(logger, "container", func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return container.Close(closeCtx)
	})

	stopCleanup := startIdempotencyCleanup(container.Idempotency, cfg.Idempotency, logger.Named("idempotency"))
	defer stopCleanup()

	svc := container.Services
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthSystemService(svc.System),
			handlers.WithHealthBuildInfo(services.BuildInfo{
				Version:     buildVersion(),
				Environment: cfg.Environment,
				StartedAt:   startedAt,
			}),
		)),
		handlers.WithTokenVerifier(container.Tokens),
		handlers.WithAuthRoutes(handlers.NewAuthHandlers(svc.Auth).Routes),
		handlers.WithTableRoutes(handlers.NewTableHandlers(svc.Tables).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(svc.Orders).Routes),
		handlers.WithRevenueRoutes(handlers.NewRevenueHandlers(svc.Revenue, container.Location).Routes),
		handlers.WithAdminRoutes(handlers.NewAdminHandlers(svc.Exports).Routes),
	)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("billiards api listening", zap.String("addr", srv.Addr), zap.String("store", cfg.Store.Backend))
	if err := serve(sigCtx, srv, 15*time.Second); err != nil {
		logger.Error("http server stopped abnormally", zap.Error(err))
	}
}

// serve runs srv until ctx is cancelled, then drains in-flight requests for up to grace.
func serve(ctx context.Context, srv *http.Server, grace time.Duration) error {
	listenErr := make(chan error, 1)
	go func() { listenErr <- srv.ListenAndServe() }()

	select {
	case err := <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	return nil
}

// startIdempotencyCleanup periodically drops expired settlement keys. The returned func stops
// the loop and waits for an in-flight sweep.
func startIdempotencyCleanup(store idempotency.Store, cfg config.IdempotencyConfig, logger *zap.Logger) func() {
	if store == nil || cfg.CleanupInterval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(cfg.CleanupInterval)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ticker.C:
				runCtx, runCancel := context.WithTimeout(ctx, time.Minute)
				removed, err := store.CleanupExpired(runCtx, time.Now().UTC(), cfg.CleanupBatchSize)
				runCancel()
				if err != nil {
					logger.Error("idempotency cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Info("idempotency cleanup removed records", zap.Int("count", removed))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		cancel()
		wg.Wait()
	}
}

func closeLogged(logger *zap.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("close "+what, zap.Error(err))
	}
}

func buildVersion() string {
	if version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION")); version != "" {
		return version
	}
	return "dev"
}
