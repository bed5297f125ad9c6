package di

import (
	"context"
	"errors"
	"sync"

	"github.com/huanth/bi-a-manager/internal/repositories"
	"github.com/huanth/bi-a-manager/internal/repositories/docstore"
)

// documentRegistry serves every typed view from one venue document repository.
type documentRegistry struct {
	repo   *docstore.Repository
	health repositories.HealthRepository

	mu      sync.Mutex
	closers []func(context.Context) error
	closed  bool
}

var _ repositories.Registry = (*documentRegistry)(nil)

func newDocumentRegistry(repo *docstore.Repository) *documentRegistry {
	return &documentRegistry{repo: repo}
}

func (r *documentRegistry) Tables() repositories.TableRepository       { return r.repo }
func (r *documentRegistry) Orders() repositories.OrderRepository       { return r.repo }
func (r *documentRegistry) Revenue() repositories.RevenueRepository    { return r.repo }
func (r *documentRegistry) Users() repositories.UserRepository         { return r.repo }
func (r *documentRegistry) Snapshots() repositories.SnapshotRepository { return r.repo }
func (r *documentRegistry) Health() repositories.HealthRepository      { return r.health }

func (r *documentRegistry) setHealth(health repositories.HealthRepository) {
	r.health = health
}

// onClose registers cleanup for a client owned by the registry. Closers run in reverse order.
func (r *documentRegistry) onClose(fn func(context.Context) error) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, fn)
}

// Close is idempotent.
func (r *documentRegistry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
