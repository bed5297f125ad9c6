package repositories

import (
	"context"

	domain "github.com/huanth/bi-a-manager/internal/domain"
)

// Registry exposes typed views over the venue document and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Tables() TableRepository
	Orders() OrderRepository
	Revenue() RevenueRepository
	Users() UserRepository
	Snapshots() SnapshotRepository
	Health() HealthRepository
}

// RepositoryError is implemented by backend errors so services can map them to API
// responses without knowing which store produced them.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// TableRepository reads and replaces the table list. Saves replace the whole list; there is
// no optimistic concurrency token, so concurrent writers are last-writer-wins.
type TableRepository interface {
	LoadTables(ctx context.Context) ([]domain.Table, error)
	SaveTables(ctx context.Context, tables []domain.Table) error
}

// OrderRepository reads and replaces the order list.
type OrderRepository interface {
	LoadOrders(ctx context.Context) ([]domain.Order, error)
	SaveOrders(ctx context.Context, orders []domain.Order) error
}

// RevenueRepository is the append-only revenue ledger.
type RevenueRepository interface {
	LoadRevenue(ctx context.Context) ([]domain.RevenueRecord, error)
	AppendRevenue(ctx context.Context, record domain.RevenueRecord) error
}

// UserRepository reads staff accounts.
type UserRepository interface {
	LoadUsers(ctx context.Context) ([]domain.UserAccount, error)
}

// SnapshotRepository returns the raw venue document for export.
type SnapshotRepository interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// HealthRepository probes the store and optional sinks for /readyz.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
