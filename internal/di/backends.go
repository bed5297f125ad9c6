package di

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/huanth/bi-a-manager/internal/platform/config"
	"github.com/huanth/bi-a-manager/internal/platform/events"
	pfirestore "github.com/huanth/bi-a-manager/internal/platform/firestore"
	"github.com/huanth/bi-a-manager/internal/platform/idempotency"
	"github.com/huanth/bi-a-manager/internal/platform/jobs"
	"github.com/huanth/bi-a-manager/internal/platform/storage"
	"github.com/huanth/bi-a-manager/internal/repositories"
	"github.com/huanth/bi-a-manager/internal/repositories/docstore"
	firestorerepo "github.com/huanth/bi-a-manager/internal/repositories/firestore"
	"github.com/huanth/bi-a-manager/internal/repositories/postgres"
)

// infra accumulates clients created while wiring so they can be closed together and probed
// by readiness checks.
type infra struct {
	cfg    config.Config
	clock  func() time.Time
	logger *zap.Logger

	providerOnce sync.Once
	provider     *pfirestore.Provider

	checks  []repositories.DependencyCheck
	closers []func(context.Context) error
}

func (in *infra) firestoreProvider() *pfirestore.Provider {
	in.providerOnce.Do(func() {
		in.provider = pfirestore.NewProvider(in.cfg.Firestore)
		in.onClose(in.provider.Close)
	})
	return in.provider
}

func (in *infra) onClose(fn func(context.Context) error) {
	in.closers = append(in.closers, fn)
}

func (in *infra) check(name string, optional bool, fn func(context.Context) error) {
	in.checks = append(in.checks, repositories.DependencyCheck{
		Name:     name,
		Optional: optional,
		Check:    fn,
	})
}

// documentBackend opens the configured venue document store.
func (in *infra) documentBackend(ctx context.Context) (docstore.Backend, error) {
	store := in.cfg.Store
	switch store.Backend {
	case config.StoreBackendMemory:
		if store.SeedFile == "" {
			return docstore.NewMemoryBackend(), nil
		}
		raw, err := os.ReadFile(store.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("read store seed file: %w", err)
		}
		return docstore.NewMemoryBackendFromJSON(raw)
	case config.StoreBackendHTTP:
		opts := []docstore.HTTPOption{docstore.WithFetchAttempts(store.FetchAttempts)}
		if store.APIKey != "" {
			opts = append(opts, docstore.WithHeader(store.APIKeyHeader, store.APIKey))
		}
		return docstore.NewHTTPBackend(store.URL, opts...)
	case config.StoreBackendFirestore:
		return firestorerepo.NewDocumentBackend(in.firestoreProvider(), in.cfg.Firestore.Collection, in.clock)
	case config.StoreBackendPostgres:
		backend, err := postgres.Open(ctx, in.cfg.Postgres.DSN, in.cfg.Postgres.DocumentName)
		if err != nil {
			return nil, err
		}
		in.onClose(func(context.Context) error {
			backend.Close()
			return nil
		})
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", store.Backend)
	}
}

// idempotencyStore selects where settlement keys are reserved.
func (in *infra) idempotencyStore() (idempotency.Store, error) {
	switch in.cfg.Idempotency.Backend {
	case "", config.StoreBackendMemory:
		return idempotency.NewMemoryStore(), nil
	case config.StoreBackendFirestore:
		fs := in.cfg.Firestore
		store, err := idempotency.NewFirestoreStore(in.firestoreProvider(),
			idempotency.WithCollection(fs.IdempotencyCollection),
			idempotency.WithTxOptions(
				pfirestore.WithTxAttempts(fs.TxAttempts),
				pfirestore.WithTxTimeout(fs.TxTimeout),
			),
		)
		if err != nil {
			return nil, err
		}
		in.check("idempotency", true, store.Ping)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported idempotency backend %q", in.cfg.Idempotency.Backend)
	}
}

// attachSinks forwards bus events to the configured external transports.
func (in *infra) attachSinks(ctx context.Context, bus *events.Bus) error {
	ev := in.cfg.Events
	if ev.PubSubTopic != "" {
		project := ev.PubSubProjectID
		if project == "" {
			project = in.cfg.Firestore.ProjectID
		}
		client, err := pubsub.NewClient(ctx, project)
		if err != nil {
			return fmt.Errorf("pubsub client: %w", err)
		}
		publisher, err := jobs.NewPubSubPublisher(client.Topic(ev.PubSubTopic))
		if err != nil {
			_ = client.Close()
			return err
		}
		stopForward := bus.Forward("pubsub", publisher)
		in.onClose(func(context.Context) error {
			stopForward()
			publisher.Stop()
			return client.Close()
		})
		in.logger.Info("forwarding events to pubsub", zap.String("topic", ev.PubSubTopic))
	}
	if ev.AMQPURL != "" {
		publisher, err := jobs.DialAMQP(ev.AMQPURL, ev.AMQPExchange)
		if err != nil {
			return fmt.Errorf("amqp publisher: %w", err)
		}
		stopForward := bus.Forward("amqp", publisher)
		in.check("amqp", true, publisher.Ping)
		in.onClose(func(context.Context) error {
			stopForward()
			return publisher.Close()
		})
		in.logger.Info("forwarding events to amqp", zap.String("exchange", ev.AMQPExchange))
	}
	return nil
}

// exporter returns nil when no exports bucket is configured.
func (in *infra) exporter(ctx context.Context, loc *time.Location) (*storage.Exporter, error) {
	bucket := in.cfg.Storage.ExportsBucket
	if bucket == "" {
		return nil, nil
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	store, err := storage.NewGCSObjectStore(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	in.onClose(func(context.Context) error { return store.Close() })
	in.check("exports", true, func(ctx context.Context) error { return store.Ping(ctx, bucket) })
	return storage.NewExporter(store, bucket, in.cfg.Storage.ExportPrefix,
		storage.WithExportClock(in.clock),
		storage.WithExportLocation(loc),
	)
}
