package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/events"
	"github.com/huanth/bi-a-manager/internal/repositories"
)

const (
	sessionEventStarted     = "session.started"
	sessionEventEnded       = "session.ended"
	sessionEventCancelled   = "session.settlement.cancelled"
	sessionEventMaintenance = "session.maintenance"
)

// TableSessionServiceDeps bundles collaborators required to construct the table session service.
type TableSessionServiceDeps struct {
	Tables    repositories.TableRepository
	Orders    repositories.OrderRepository
	Committer SettlementCommitter
	Biller    SessionBiller
	Events    EventPublisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type tableSessionService struct {
	tables    repositories.TableRepository
	orders    repositories.OrderRepository
	committer SettlementCommitter
	biller    SessionBiller
	events    EventPublisher
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)

	mu      sync.Mutex
	pending map[int64]Settlement
}

var _ TableSessionService = (*tableSessionService)(nil)

// NewTableSessionService wires the table state machine. Settlements produced by EndSession
// are held in memory until confirmed or cancelled.
func NewTableSessionService(deps TableSessionServiceDeps) (TableSessionService, error) {
	if deps.Tables == nil {
		return nil, errors.New("table session service: table repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("table session service: order repository is required")
	}
	if deps.Committer == nil {
		return nil, errors.New("table session service: settlement committer is required")
	}

	biller := deps.Biller
	if biller.location == nil {
		biller = NewSessionBiller(nil)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &tableSessionService{
		tables:    deps.Tables,
		orders:    deps.Orders,
		committer: deps.Committer,
		biller:    biller,
		events:    deps.Events,
		clock:     clock,
		logger:    logger,
		pending:   make(map[int64]Settlement),
	}, nil
}

func (s *tableSessionService) ListTables(ctx context.Context) ([]Table, error) {
	tables, err := s.tables.LoadTables(ctx)
	if err != nil {
		return nil, storeError("load tables", err)
	}
	return tables, nil
}

func (s *tableSessionService) GetTable(ctx context.Context, tableID int64) (Table, error) {
	_, _, table, err := s.loadTable(ctx, tableID)
	return table, err
}

// Preview reports the rate in force and the running table charge of an occupied table.
func (s *tableSessionService) Preview(ctx context.Context, tableID int64) (TablePreview, error) {
	_, _, table, err := s.loadTable(ctx, tableID)
	if err != nil {
		return TablePreview{}, err
	}
	if !table.IsOccupied() {
		return TablePreview{}, fmt.Errorf("%w: table %d is %s", ErrSessionInvalidState, table.ID, table.Status)
	}
	start, err := sessionStart(table)
	if err != nil {
		return TablePreview{}, err
	}

	now := s.clock().In(s.biller.Location())
	anchored := s.biller.AnchorStart(start, now, now)
	tariff := table.Tariff()
	rate, label, _ := RateAt(tariff, domain.TimeOfDayAt(now))
	bill := s.biller.BillSpan(tariff, anchored, now)

	return TablePreview{
		Table:          table,
		CurrentRate:    rate,
		CurrentLabel:   label,
		ElapsedMinutes: int(now.Sub(anchored) / time.Minute),
		RunningTotal:   bill.Total,
		ObservedAt:     now,
	}, nil
}

// Start opens a session on a vacant table at the current wall-clock minute.
func (s *tableSessionService) Start(ctx context.Context, cmd StartSessionCommand) (Table, error) {
	if cmd.TableID <= 0 {
		return Table{}, fmt.Errorf("%w: table id is required", ErrSessionInvalidInput)
	}
	tables, idx, table, err := s.loadTable(ctx, cmd.TableID)
	if err != nil {
		return Table{}, err
	}
	if !table.IsVacant() {
		return Table{}, fmt.Errorf("%w: table %d is %s", ErrSessionInvalidState, table.ID, table.Status)
	}

	now := s.clock().In(s.biller.Location())
	table.Status = domain.TableStatusPlaying
	table.StartTime = domain.TimeOfDayAt(now).String()
	table.CurrentPlayer = sanitizeText(cmd.Player, maxPlayerLength)
	table.Duration = 0
	tables[idx] = table
	if err := s.tables.SaveTables(ctx, tables); err != nil {
		return Table{}, storeError("save tables", err)
	}

	s.dropPending(table.ID)
	s.publish(ctx, events.Event{Name: events.TablesChanged, Actor: cmd.Actor.Name(), TableID: table.ID})
	s.logger(ctx, sessionEventStarted, map[string]any{"tableId": table.ID, "startTime": table.StartTime})
	return table, nil
}

// EndSession prices the open session and holds the proposed settlement for confirmation.
// The table stays occupied until the settlement is committed.
func (s *tableSessionService) EndSession(ctx context.Context, tableID int64) (Settlement, error) {
	_, _, table, err := s.loadTable(ctx, tableID)
	if err != nil {
		return Settlement{}, err
	}
	if !table.IsOccupied() {
		return Settlement{}, fmt.Errorf("%w: table %d is %s", ErrSessionInvalidState, table.ID, table.Status)
	}
	start, err := sessionStart(table)
	if err != nil {
		return Settlement{}, err
	}

	orders, err := s.orders.LoadOrders(ctx)
	if err != nil {
		return Settlement{}, storeError("load orders", err)
	}

	now := s.clock().In(s.biller.Location())
	anchored := s.biller.AnchorStart(start, now, now)
	bill := s.biller.BillSpan(table.Tariff(), anchored, now)
	selected, orderTotal := OrdersForSession(orders, table.ID, anchored, now)

	settlement := Settlement{
		Key:          SettlementKey(table.ID, anchored),
		TableID:      table.ID,
		TableName:    table.Name,
		SessionStart: anchored,
		SessionEnd:   now,
		TableBill:    bill,
		Orders:       selected,
		OrderIDs:     orderIDs(selected),
		OrderTotal:   orderTotal,
		Total:        bill.Total + orderTotal,
	}

	s.mu.Lock()
	s.pending[table.ID] = settlement
	s.mu.Unlock()

	s.logger(ctx, sessionEventEnded, map[string]any{
		"tableId":      table.ID,
		"settlementId": settlement.Key,
		"tableAmount":  int64(bill.Total),
		"orderAmount":  int64(orderTotal),
	})
	return settlement, nil
}

func (s *tableSessionService) PendingSettlement(_ context.Context, tableID int64) (Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settlement, ok := s.pending[tableID]
	if !ok {
		return Settlement{}, fmt.Errorf("%w: table %d", ErrSettlementNotFound, tableID)
	}
	return settlement, nil
}

// ConfirmSettlement commits the held settlement. On failure the settlement stays held so the
// caller can retry with the same key.
func (s *tableSessionService) ConfirmSettlement(ctx context.Context, tableID int64, actor domain.Actor) (CommitResult, error) {
	settlement, err := s.PendingSettlement(ctx, tableID)
	if err != nil {
		return CommitResult{}, err
	}
	result, err := s.committer.Commit(ctx, CommitSettlementCommand{Settlement: settlement, Actor: actor})
	if err != nil {
		if errors.Is(err, ErrSessionInvalidState) || errors.Is(err, ErrSessionNotFound) {
			s.dropPending(tableID)
		}
		return CommitResult{}, err
	}
	s.dropPending(tableID)
	return result, nil
}

func (s *tableSessionService) CancelSettlement(ctx context.Context, tableID int64) error {
	s.mu.Lock()
	_, ok := s.pending[tableID]
	delete(s.pending, tableID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: table %d", ErrSettlementNotFound, tableID)
	}
	s.logger(ctx, sessionEventCancelled, map[string]any{"tableId": tableID})
	return nil
}

func (s *tableSessionService) BeginMaintenance(ctx context.Context, tableID int64) (Table, error) {
	return s.transition(ctx, tableID, domain.TableStatusEmpty, domain.TableStatusMaintenance)
}

func (s *tableSessionService) EndMaintenance(ctx context.Context, tableID int64) (Table, error) {
	return s.transition(ctx, tableID, domain.TableStatusMaintenance, domain.TableStatusEmpty)
}

func (s *tableSessionService) transition(ctx context.Context, tableID int64, from, to domain.TableStatus) (Table, error) {
	tables, idx, table, err := s.loadTable(ctx, tableID)
	if err != nil {
		return Table{}, err
	}
	if table.Status != from {
		return Table{}, fmt.Errorf("%w: table %d is %s, want %s", ErrSessionInvalidState, table.ID, table.Status, from)
	}
	table.Status = to
	tables[idx] = table
	if err := s.tables.SaveTables(ctx, tables); err != nil {
		return Table{}, storeError("save tables", err)
	}
	s.publish(ctx, events.Event{Name: events.TablesChanged, TableID: table.ID})
	s.logger(ctx, sessionEventMaintenance, map[string]any{"tableId": table.ID, "status": string(to)})
	return table, nil
}

func (s *tableSessionService) loadTable(ctx context.Context, tableID int64) ([]domain.Table, int, domain.Table, error) {
	tables, err := s.tables.LoadTables(ctx)
	if err != nil {
		return nil, -1, domain.Table{}, storeError("load tables", err)
	}
	idx := slices.IndexFunc(tables, func(t domain.Table) bool { return t.ID == tableID })
	if idx < 0 {
		return nil, -1, domain.Table{}, fmt.Errorf("%w: table %d", ErrSessionNotFound, tableID)
	}
	return tables, idx, tables[idx], nil
}

func (s *tableSessionService) dropPending(tableID int64) {
	s.mu.Lock()
	delete(s.pending, tableID)
	s.mu.Unlock()
}

func (s *tableSessionService) publish(ctx context.Context, event events.Event) {
	if s.events != nil {
		s.events.Publish(ctx, event)
	}
}

func sessionStart(table domain.Table) (domain.TimeOfDay, error) {
	start, ok, err := table.SessionStart()
	if err != nil {
		return domain.TimeOfDay{}, fmt.Errorf("%w: table %d start time %q: %w", ErrSessionInconsistent, table.ID, table.StartTime, err)
	}
	if !ok {
		return domain.TimeOfDay{}, fmt.Errorf("%w: table %d is occupied without a start time", ErrSessionInconsistent, table.ID)
	}
	return start, nil
}
