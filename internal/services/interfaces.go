package services

import (
	"context"
	"time"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/events"
	"github.com/huanth/bi-a-manager/internal/platform/storage"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Table              = domain.Table
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	RevenueRecord      = domain.RevenueRecord
	Settlement         = domain.Settlement
	CommitResult       = domain.CommitResult
	TablePreview       = domain.TablePreview
	RevenuePeriod      = domain.RevenuePeriod
	RevenueSummary     = domain.RevenueSummary
	StaffSession       = domain.StaffSession
	SystemHealthReport = domain.SystemHealthReport
)

// TableSessionService drives the table lifecycle: vacant, occupied, settled and maintenance.
type TableSessionService interface {
	ListTables(ctx context.Context) ([]Table, error)
	GetTable(ctx context.Context, tableID int64) (Table, error)
	Preview(ctx context.Context, tableID int64) (TablePreview, error)
	Start(ctx context.Context, cmd StartSessionCommand) (Table, error)
	EndSession(ctx context.Context, tableID int64) (Settlement, error)
	PendingSettlement(ctx context.Context, tableID int64) (Settlement, error)
	ConfirmSettlement(ctx context.Context, tableID int64, actor domain.Actor) (CommitResult, error)
	CancelSettlement(ctx context.Context, tableID int64) error
	BeginMaintenance(ctx context.Context, tableID int64) (Table, error)
	EndMaintenance(ctx context.Context, tableID int64) (Table, error)
}

// SettlementCommitter is the only writer of table revenue.
type SettlementCommitter interface {
	Commit(ctx context.Context, cmd CommitSettlementCommand) (CommitResult, error)
}

// OrderService manages food and drink orders up to, but not including, settlement.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	AdvanceOrder(ctx context.Context, cmd AdvanceOrderCommand) (Order, error)
	CancelOrder(ctx context.Context, orderID int64, actor domain.Actor) (Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
}

// RevenueService reads the revenue ledger bucketed by venue-local days.
type RevenueService interface {
	List(ctx context.Context, filter RevenueFilter) ([]RevenueRecord, error)
	DailyTotals(ctx context.Context, day time.Time) (RevenuePeriod, error)
	LastSevenDays(ctx context.Context) ([]RevenuePeriod, error)
	MonthToDate(ctx context.Context) (RevenuePeriod, error)
	Summary(ctx context.Context) (RevenueSummary, error)
}

// AuthService authenticates staff against the venue user list.
type AuthService interface {
	Login(ctx context.Context, cmd LoginCommand) (StaffSession, error)
}

// ExportService writes venue document snapshots to object storage.
type ExportService interface {
	Export(ctx context.Context, actor domain.Actor) (storage.ExportResult, error)
}

// SystemService aggregates utility endpoints such as health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// EventPublisher emits venue notifications. Publishing never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) events.Event
}

// CommitRecorder records settlement commit outcomes.
type CommitRecorder interface {
	RecordCommit(ctx context.Context, outcome string, total int64)
}

// TokenIssuer signs staff sessions.
type TokenIssuer interface {
	Issue(actor domain.Actor) (StaffSession, error)
}

// SnapshotExporter persists a raw document snapshot.
type SnapshotExporter interface {
	Export(ctx context.Context, snapshot []byte, actor string) (storage.ExportResult, error)
}

// Command and DTO definitions ------------------------------------------------

type StartSessionCommand struct {
	TableID int64
	Player  string
	Actor   domain.Actor
}

type CommitSettlementCommand struct {
	Settlement Settlement
	Actor      domain.Actor
}

type PlaceOrderItem struct {
	MenuItemID   int64
	MenuItemName string
	Quantity     int
	Price        domain.Money
	Note         string
}

type PlaceOrderCommand struct {
	TableID int64
	Items   []PlaceOrderItem
	Note    string
	Actor   domain.Actor
}

type AdvanceOrderCommand struct {
	OrderID int64
	Status  domain.OrderStatus
	Actor   domain.Actor
}

type OrderFilter struct {
	TableID  int64
	Statuses []domain.OrderStatus
}

type RevenueFilter struct {
	From    time.Time
	To      time.Time
	TableID int64
}

type LoginCommand struct {
	Username string
	Password string
}
