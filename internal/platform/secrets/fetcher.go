// Package secrets resolves secret:// configuration references through Secret Manager with a
// local dotenv-style file as fallback.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves references and caches each resolved version for the life of the process.
// Secret Manager is tried first when a project is set; the local file answers when Secret
// Manager is not configured or refuses for credential or availability reasons. A secret
// that Secret Manager reports missing is an error and never falls back.
type Fetcher struct {
	remote     secretManagerClient
	ownsRemote bool
	project    string
	local      *localFile
	logger     *zap.Logger

	mu    sync.RWMutex
	cache map[Ref]string
}

type settings struct {
	logger     *zap.Logger
	project    string
	fallback   string
	client     secretManagerClient
	clientOpts []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*settings)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithProject sets the project that owns the secrets.
func WithProject(projectID string) Option {
	return func(s *settings) { s.project = strings.TrimSpace(projectID) }
}

// WithFallbackFile overrides the local fallback file, .secrets.local by default. An empty
// path disables the fallback.
func WithFallbackFile(path string) Option {
	return func(s *settings) { s.fallback = path }
}

// WithSecretManagerClient injects a client.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(s *settings) { s.client = client }
}

// WithClientOptions forwards options to the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *settings) { s.clientOpts = append(s.clientOpts, opts...) }
}

// NewFetcher builds a Fetcher. A Secret Manager client that cannot be created is logged and
// the fetcher runs on the fallback file alone.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	s := settings{fallback: ".secrets.local"}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	f := &Fetcher{
		remote:  s.client,
		project: s.project,
		local:   &localFile{path: strings.TrimSpace(s.fallback), logger: s.logger},
		logger:  s.logger,
		cache:   make(map[Ref]string),
	}
	if f.remote == nil && f.project != "" {
		client, err := secretManagerClientFactory(ctx, s.clientOpts...)
		if err != nil {
			s.logger.Warn("secret manager unavailable; resolving from fallback file", zap.Error(err))
		} else {
			f.remote, f.ownsRemote = client, true
		}
	}
	return f, nil
}

// Close releases the Secret Manager client if the fetcher created it.
func (f *Fetcher) Close() error {
	if !f.ownsRemote {
		return nil
	}
	return f.remote.Close()
}

// ResolveSecret satisfies config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f.Resolve(ctx, ref)
}

// Resolve returns the value behind a secret:// reference.
func (f *Fetcher) Resolve(ctx context.Context, raw string) (string, error) {
	ref, err := ParseRef(raw)
	if err != nil {
		return "", err
	}
	f.mu.RLock()
	value, ok := f.cache[ref]
	f.mu.RUnlock()
	if ok {
		return value, nil
	}

	value, err = f.lookup(ctx, ref)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.cache[ref] = value
	f.mu.Unlock()
	return value, nil
}

func (f *Fetcher) lookup(ctx context.Context, ref Ref) (string, error) {
	if f.remote != nil && f.project != "" {
		value, err := f.access(ctx, ref)
		if err == nil {
			return value, nil
		}
		if !shouldFallBack(err) {
			return "", fmt.Errorf("secrets: fetch %s: %w", ref.Name, err)
		}
		f.logger.Debug("secret manager refused; trying fallback file", zap.Stringer("ref", ref), zap.Error(err))
	}
	if value, ok := f.local.get(ref.Name); ok {
		return value, nil
	}
	return "", fmt.Errorf("secrets: no value for %s", ref.Name)
}

func (f *Fetcher) access(ctx context.Context, ref Ref) (string, error) {
	resp, err := f.remote.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: ref.Resource(f.project)})
	if err != nil {
		return "", err
	}
	payload := resp.GetPayload()
	if payload == nil {
		return "", fmt.Errorf("empty payload for %s", ref.Resource(f.project))
	}
	return string(payload.GetData()), nil
}

// shouldFallBack reports whether a Secret Manager failure means "not reachable from here"
// rather than "no such secret".
func shouldFallBack(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}

// localFile is the name=value fallback, read once on first use.
type localFile struct {
	path   string
	logger *zap.Logger

	once   sync.Once
	values map[string]string
}

func (l *localFile) get(name string) (string, bool) {
	l.once.Do(func() {
		if l.path == "" {
			return
		}
		values, err := godotenv.Read(l.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			l.logger.Warn("fallback secrets file unreadable", zap.String("path", l.path), zap.Error(err))
		default:
			l.values = values
		}
	})
	value, ok := l.values[name]
	return value, ok
}
