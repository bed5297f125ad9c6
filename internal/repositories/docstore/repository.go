package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/repositories"
)

// Repository exposes typed views over the venue document. Every write is a read-modify-write
// of the whole document. Writes from this process are serialised; writes from other
// processes are last-writer-wins.
type Repository struct {
	backend Backend
	mu      sync.Mutex
}

var (
	_ repositories.TableRepository    = (*Repository)(nil)
	_ repositories.OrderRepository    = (*Repository)(nil)
	_ repositories.RevenueRepository  = (*Repository)(nil)
	_ repositories.UserRepository     = (*Repository)(nil)
	_ repositories.SnapshotRepository = (*Repository)(nil)
)

// NewRepository wraps backend.
func NewRepository(backend Backend) (*Repository, error) {
	if backend == nil {
		return nil, errors.New("docstore: backend is required")
	}
	return &Repository{backend: backend}, nil
}

// Backend returns the underlying document backend.
func (r *Repository) Backend() Backend { return r.backend }

// LoadTables implements repositories.TableRepository.
func (r *Repository) LoadTables(ctx context.Context) ([]domain.Table, error) {
	return load[domain.Table](ctx, r, KeyTables)
}

// SaveTables implements repositories.TableRepository.
func (r *Repository) SaveTables(ctx context.Context, tables []domain.Table) error {
	return r.put(ctx, KeyTables, tables)
}

// LoadOrders implements repositories.OrderRepository.
func (r *Repository) LoadOrders(ctx context.Context) ([]domain.Order, error) {
	return load[domain.Order](ctx, r, KeyOrders)
}

// SaveOrders implements repositories.OrderRepository.
func (r *Repository) SaveOrders(ctx context.Context, orders []domain.Order) error {
	return r.put(ctx, KeyOrders, orders)
}

// LoadRevenue implements repositories.RevenueRepository.
func (r *Repository) LoadRevenue(ctx context.Context) ([]domain.RevenueRecord, error) {
	return load[domain.RevenueRecord](ctx, r, KeyRevenue)
}

// AppendRevenue implements repositories.RevenueRepository.
func (r *Repository) AppendRevenue(ctx context.Context, record domain.RevenueRecord) error {
	return r.mutate(ctx, func(doc Document) error {
		existing, err := decode[domain.RevenueRecord](doc, KeyRevenue)
		if err != nil {
			return err
		}
		return encode(doc, KeyRevenue, append(existing, record))
	})
}

// LoadUsers implements repositories.UserRepository.
func (r *Repository) LoadUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return load[domain.UserAccount](ctx, r, KeyUsers)
}

// Snapshot implements repositories.SnapshotRepository.
func (r *Repository) Snapshot(ctx context.Context) ([]byte, error) {
	doc, err := r.backend.Fetch(ctx)
	if err != nil {
		return nil, wrap("docstore.snapshot", err)
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, wrap("docstore.snapshot", err)
	}
	return out, nil
}

func load[T any](ctx context.Context, r *Repository, key string) ([]T, error) {
	doc, err := r.backend.Fetch(ctx)
	if err != nil {
		return nil, wrap("docstore.load "+key, err)
	}
	return decode[T](doc, key)
}

func (r *Repository) put(ctx context.Context, key string, value any) error {
	return r.mutate(ctx, func(doc Document) error {
		return encode(doc, key, value)
	})
}

func (r *Repository) mutate(ctx context.Context, apply func(Document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.backend.Fetch(ctx)
	if err != nil {
		return wrap("docstore.fetch", err)
	}
	if doc == nil {
		doc = Document{}
	}
	if err := apply(doc); err != nil {
		return err
	}
	if err := r.backend.Replace(ctx, doc); err != nil {
		return wrap("docstore.replace", err)
	}
	return nil
}

func decode[T any](doc Document, key string) ([]T, error) {
	raw, ok := doc[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, wrap("docstore.decode", fmt.Errorf("%s: %w", key, err))
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func encode(doc Document, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return wrap("docstore.encode", fmt.Errorf("%s: %w", key, err))
	}
	doc[key] = raw
	return nil
}
