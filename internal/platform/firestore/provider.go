package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/huanth/bi-a-manager/internal/platform/config"
)

// ErrProviderClosed is returned by Client after Close.
var ErrProviderClosed = errors.New("firestore: provider is closed")

// Provider owns the Firestore client shared by the document backend and the settlement key
// store. The client is dialled on first use; a failed dial is retried by the next caller.
type Provider struct {
	cfg  config.FirestoreConfig
	dial time.Duration

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

// NewProvider returns a Provider for cfg. No connection is made until Client is called.
func NewProvider(cfg config.FirestoreConfig) *Provider {
	return &Provider{cfg: cfg, dial: 10 * time.Second}
}

// Client returns the shared client, dialling it on first use.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrProviderClosed
	case p.client != nil:
		return p.client, nil
	}

	project, opts, err := clientSettings(p.cfg)
	if err != nil {
		return nil, err
	}
	dialCtx, cancel := context.WithTimeout(ctx, p.dial)
	defer cancel()
	client, err := firestore.NewClient(dialCtx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: dial project %s: %w", project, err)
	}
	p.client = client
	return client, nil
}

// clientSettings resolves the project and, for the emulator, plaintext unauthenticated
// transport. Environment variables fill what cfg leaves empty.
func clientSettings(cfg config.FirestoreConfig) (string, []option.ClientOption, error) {
	project := firstSet(cfg.ProjectID, os.Getenv("GOOGLE_CLOUD_PROJECT"))
	if project == "" {
		return "", nil, errors.New("firestore: project id is required")
	}
	host := firstSet(cfg.EmulatorHost, os.Getenv("FIRESTORE_EMULATOR_HOST"))
	if host == "" {
		return project, nil, nil
	}
	return project, []option.ClientOption{
		option.WithEndpoint(host),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}, nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Collection returns a reference to name on the shared client.
func (p *Provider) Collection(ctx context.Context, name string) (*firestore.CollectionRef, error) {
	if strings.TrimSpace(name) == "" {
		return nil, WrapError("collection", errors.New("collection name is required"))
	}
	client, err := p.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(name), nil
}

// Ping reads a sentinel document to confirm connectivity. A missing document counts as healthy.
func (p *Provider) Ping(ctx context.Context) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection("_health").Doc("ping").Get(ctx)
	if IsNotFound(err) {
		return nil
	}
	return WrapError("ping", err)
}

// Close releases the underlying Firestore client. The Provider cannot be reused afterwards.
func (p *Provider) Close(context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
