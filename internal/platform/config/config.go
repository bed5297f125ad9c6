package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultEnvFile = ".env"

// Store backends understood by the container.
const (
	StoreBackendHTTP      = "http"
	StoreBackendFirestore = "firestore"
	StoreBackendPostgres  = "postgres"
	StoreBackendMemory    = "memory"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string `env:"API_ENV" env-default:"local" env-description:"deployment environment name"`

	Server      ServerConfig
	Venue       VenueConfig
	Store       StoreConfig
	Firestore   FirestoreConfig
	Postgres    PostgresConfig
	Storage     StorageConfig
	Events      EventsConfig
	Auth        AuthConfig
	Idempotency IdempotencyConfig
	Secrets     SecretsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string        `env:"API_SERVER_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `env:"API_SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `env:"API_SERVER_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout  time.Duration `env:"API_SERVER_IDLE_TIMEOUT" env-default:"120s"`
}

// VenueConfig describes the single venue served by this process.
type VenueConfig struct {
	Name     string `env:"VENUE_NAME" env-default:"Bi-a Club"`
	TimeZone string `env:"VENUE_TIMEZONE" env-default:"Asia/Ho_Chi_Minh"`
}

// StoreConfig selects and configures the venue document backend.
type StoreConfig struct {
	Backend       string `env:"STORE_BACKEND" env-default:"http"`
	URL           string `env:"STORE_URL"`
	APIKey        string `env:"STORE_API_KEY"`
	APIKeyHeader  string `env:"STORE_API_KEY_HEADER" env-default:"X-API-Key"`
	FetchAttempts int    `env:"STORE_FETCH_ATTEMPTS" env-default:"3"`
	SeedFile      string `env:"STORE_SEED_FILE"`
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID             string        `env:"FIRESTORE_PROJECT_ID"`
	EmulatorHost          string        `env:"FIRESTORE_EMULATOR_HOST"`
	Collection            string        `env:"FIRESTORE_DOCUMENT_COLLECTION" env-default:"venue_documents"`
	IdempotencyCollection string        `env:"FIRESTORE_IDEMPOTENCY_COLLECTION" env-default:"settlement_keys"`
	TxAttempts            int           `env:"FIRESTORE_TX_ATTEMPTS" env-default:"5"`
	TxTimeout             time.Duration `env:"FIRESTORE_TX_TIMEOUT" env-default:"15s"`
}

// PostgresConfig configures the jsonb document backend.
type PostgresConfig struct {
	DSN          string `env:"POSTGRES_DSN"`
	DocumentName string `env:"POSTGRES_DOCUMENT_NAME" env-default:"venue"`
}

// StorageConfig lists bucket names used by the application.
type StorageConfig struct {
	ExportsBucket string `env:"API_STORAGE_EXPORTS_BUCKET"`
	ExportPrefix  string `env:"API_STORAGE_EXPORT_PREFIX" env-default:"exports/"`
}

// EventsConfig configures external fan-out of venue notifications. Each sink is enabled by
// setting its topic or URL.
type EventsConfig struct {
	PubSubProjectID string `env:"EVENTS_PUBSUB_PROJECT_ID"`
	PubSubTopic     string `env:"EVENTS_PUBSUB_TOPIC"`
	AMQPURL         string `env:"EVENTS_AMQP_URL"`
	AMQPExchange    string `env:"EVENTS_AMQP_EXCHANGE" env-default:"billiards.events"`
	SinkQueue       int           `env:"EVENTS_SINK_QUEUE" env-default:"256"`
	DeliverTimeout  time.Duration `env:"EVENTS_DELIVER_TIMEOUT" env-default:"10s"`
}

// AuthConfig configures staff bearer tokens.
type AuthConfig struct {
	TokenSecret string        `env:"AUTH_TOKEN_SECRET"`
	TokenTTL    time.Duration `env:"AUTH_TOKEN_TTL" env-default:"12h"`
	Issuer      string        `env:"AUTH_TOKEN_ISSUER" env-default:"bi-a-manager"`
}

// IdempotencyConfig controls settlement de-duplication.
type IdempotencyConfig struct {
	Backend          string        `env:"IDEMPOTENCY_BACKEND" env-default:"memory"`
	TTL              time.Duration `env:"IDEMPOTENCY_TTL" env-default:"24h"`
	CleanupInterval  time.Duration `env:"IDEMPOTENCY_CLEANUP_INTERVAL" env-default:"1h"`
	CleanupBatchSize int           `env:"IDEMPOTENCY_CLEANUP_BATCH_SIZE" env-default:"200"`
}

// SecretsConfig configures resolution of secret:// references.
type SecretsConfig struct {
	ProjectID    string `env:"SECRETS_PROJECT_ID"`
	FallbackFile string `env:"SECRETS_FALLBACK_FILE" env-default:".secrets.local"`
}

// Location loads the venue time zone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Venue.TimeZone)
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret implements SecretResolver.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists configuration problems found after loading.
type ValidationError struct {
	problems []string
}

func (e *ValidationError) Error() string {
	return "config: invalid configuration: " + strings.Join(e.problems, "; ")
}

// Problems returns a copy of the individual problems.
func (e *ValidationError) Problems() []string {
	return append([]string(nil), e.problems...)
}

// SecretError reports a reference that could not be resolved.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("config: resolve %s: %v", e.Ref, e.Err)
}

// Unwrap returns the resolver error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile string
	secrets SecretResolver
}

// WithEnvFile reads variables from path before the process environment. An empty path
// disables the file; a missing file is ignored.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithSecretResolver sets the resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secrets = resolver
	}
}

// Load reads configuration from the optional .env file and the environment, resolves
// secret references and validates the result.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{envFile: defaultEnvFile}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	var cfg Config
	if err := read(options.envFile, &cfg); err != nil {
		return Config{}, err
	}

	for _, field := range secretFields(&cfg) {
		resolved, err := resolveSecret(ctx, *field, options.secrets)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func read(envFile string, cfg *Config) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := cleanenv.ReadConfig(envFile, cfg); err != nil {
				return fmt.Errorf("config: read %s: %w", envFile, err)
			}
			return nil
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("config: read environment: %w", err)
	}
	return nil
}

// Usage renders the documented environment variables.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}

func secretFields(cfg *Config) []*string {
	return []*string{
		&cfg.Store.APIKey,
		&cfg.Store.URL,
		&cfg.Postgres.DSN,
		&cfg.Events.AMQPURL,
		&cfg.Auth.TokenSecret,
	}
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validate(cfg Config) error {
	var problems []string

	if strings.TrimSpace(cfg.Server.Port) == "" {
		problems = append(problems, "API_SERVER_PORT is required")
	}
	if _, err := time.LoadLocation(cfg.Venue.TimeZone); err != nil {
		problems = append(problems, fmt.Sprintf("VENUE_TIMEZONE %q is not a known zone", cfg.Venue.TimeZone))
	}

	switch cfg.Store.Backend {
	case StoreBackendHTTP:
		if strings.TrimSpace(cfg.Store.URL) == "" {
			problems = append(problems, "STORE_URL is required for the http store")
		}
	case StoreBackendFirestore:
		if strings.TrimSpace(cfg.Firestore.ProjectID) == "" && os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
			problems = append(problems, "FIRESTORE_PROJECT_ID is required for the firestore store")
		}
	case StoreBackendPostgres:
		if strings.TrimSpace(cfg.Postgres.DSN) == "" {
			problems = append(problems, "POSTGRES_DSN is required for the postgres store")
		}
	case StoreBackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("STORE_BACKEND %q is not supported", cfg.Store.Backend))
	}

	switch cfg.Idempotency.Backend {
	case StoreBackendMemory:
	case StoreBackendFirestore:
		if strings.TrimSpace(cfg.Firestore.ProjectID) == "" && os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
			problems = append(problems, "FIRESTORE_PROJECT_ID is required for firestore idempotency")
		}
	default:
		problems = append(problems, fmt.Sprintf("IDEMPOTENCY_BACKEND %q is not supported", cfg.Idempotency.Backend))
	}
	if cfg.Idempotency.TTL <= 0 {
		problems = append(problems, "IDEMPOTENCY_TTL must be positive")
	}

	if cfg.Auth.TokenTTL <= 0 {
		problems = append(problems, "AUTH_TOKEN_TTL must be positive")
	}
	if cfg.Environment != "local" && len(cfg.Auth.TokenSecret) < 32 {
		problems = append(problems, "AUTH_TOKEN_SECRET must be at least 32 bytes outside local")
	}

	if len(problems) > 0 {
		return &ValidationError{problems: problems}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}
