package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/events"
	"github.com/huanth/bi-a-manager/internal/platform/idempotency"
	"github.com/huanth/bi-a-manager/internal/platform/observability"
	"github.com/huanth/bi-a-manager/internal/repositories"
)

const (
	settlementEventCommitted      = "settlement.committed"
	settlementEventReplayed       = "settlement.replayed"
	settlementEventRestoreFailed  = "settlement.table_restore.failed"
	settlementEventOrdersFailed   = "settlement.orders.failed"
	settlementEventReserveFailed  = "settlement.idempotency.failed"
	settlementEventReleaseFailed  = "settlement.release.failed"
	settlementEventCompleteFailed = "settlement.complete.failed"

	commitOutcomeCommitted = "committed"
	commitOutcomeReplayed  = "replayed"
	commitOutcomeFailed    = "failed"

	warningOrdersNotSettled = "orders_not_settled"

	// commitLease bounds how long an abandoned in-flight commit blocks its key.
	commitLease = 2 * time.Minute
)

var notePrinter = message.NewPrinter(language.Vietnamese)

// SettlementServiceDeps bundles collaborators required to construct the settlement committer.
type SettlementServiceDeps struct {
	Tables         repositories.TableRepository
	Orders         repositories.OrderRepository
	Revenue        repositories.RevenueRepository
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
	Events         EventPublisher
	Metrics        CommitRecorder
	Location       *time.Location
	Clock          func() time.Time
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type settlementService struct {
	tables   repositories.TableRepository
	orders   repositories.OrderRepository
	revenue  repositories.RevenueRepository
	keys     idempotency.Store
	keyTTL   time.Duration
	events   EventPublisher
	metrics  CommitRecorder
	location *time.Location
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

var _ SettlementCommitter = (*settlementService)(nil)

// NewSettlementService wires dependencies into the settlement committer. The idempotency
// store is optional; without it only the revenue ledger guards against repeated commits.
func NewSettlementService(deps SettlementServiceDeps) (SettlementCommitter, error) {
	if deps.Tables == nil {
		return nil, errors.New("settlement service: table repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("settlement service: order repository is required")
	}
	if deps.Revenue == nil {
		return nil, errors.New("settlement service: revenue repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	ttl := deps.IdempotencyTTL
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}

	return &settlementService{
		tables:   deps.Tables,
		orders:   deps.Orders,
		revenue:  deps.Revenue,
		keys:     deps.Idempotency,
		keyTTL:   ttl,
		events:   deps.Events,
		metrics:  deps.Metrics,
		location: location,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Commit records the settlement as one revenue entry, frees the table and completes the
// consumed orders. A settlement whose key is already in the ledger is replayed unchanged.
func (s *settlementService) Commit(ctx context.Context, cmd CommitSettlementCommand) (CommitResult, error) {
	settlement := cmd.Settlement
	key := strings.TrimSpace(settlement.Key)
	if key == "" {
		return CommitResult{}, fmt.Errorf("%w: settlement key is required", ErrSessionInvalidInput)
	}
	if settlement.TableID <= 0 {
		return CommitResult{}, fmt.Errorf("%w: table id is required", ErrSessionInvalidInput)
	}
	if settlement.TableBill.Total < 0 || settlement.OrderTotal < 0 {
		return CommitResult{}, fmt.Errorf("%w: amounts must not be negative", ErrSessionInvalidInput)
	}
	settlement.Key = key
	settlement.Total = settlement.TableBill.Total + settlement.OrderTotal

	ctx, span := observability.StartSpan(ctx, "settlement.commit",
		attribute.Int64("table.id", settlement.TableID),
		attribute.String("settlement.key", key),
	)
	defer span.End()

	ledger, err := s.revenue.LoadRevenue(ctx)
	if err != nil {
		s.recordOutcome(ctx, commitOutcomeFailed, 0)
		return CommitResult{}, storeError("load revenue", err)
	}
	if existing, ok := findSettlement(ledger, key); ok {
		return s.replay(ctx, CommitResult{Revenue: existing, Settled: slices.Clone(existing.OrderIDs)}), nil
	}

	fingerprint := settlementFingerprint(settlement)
	if s.keys != nil {
		reservation, err := s.keys.Reserve(ctx, key, fingerprint, s.clock(), commitLease)
		switch {
		case errors.Is(err, idempotency.ErrFingerprintMismatch):
			s.recordOutcome(ctx, commitOutcomeFailed, 0)
			return CommitResult{}, fmt.Errorf("%w: settlement %s was committed with different amounts", ErrSettlementConflict, key)
		case err != nil:
			s.logger(ctx, settlementEventReserveFailed, map[string]any{"settlementId": key, "error": err.Error()})
			s.recordOutcome(ctx, commitOutcomeFailed, 0)
			return CommitResult{}, fmt.Errorf("%w: reserve settlement key: %w", ErrStoreUnavailable, err)
		}
		switch reservation.State {
		case idempotency.ReservationStatePending:
			s.recordOutcome(ctx, commitOutcomeFailed, 0)
			return CommitResult{}, fmt.Errorf("%w: settlement %s is already being committed", ErrSettlementConflict, key)
		case idempotency.ReservationStateCompleted:
			var stored CommitResult
			if err := json.Unmarshal(reservation.Record.Result, &stored); err == nil {
				return s.replay(ctx, stored), nil
			}
			s.recordOutcome(ctx, commitOutcomeFailed, 0)
			return CommitResult{}, fmt.Errorf("%w: settlement %s has an unreadable stored result", ErrSettlementConflict, key)
		}
	}

	result, err := s.commit(ctx, settlement, cmd.Actor)
	if err != nil {
		s.release(ctx, key, fingerprint)
		s.recordOutcome(ctx, commitOutcomeFailed, 0)
		return CommitResult{}, err
	}

	if s.keys != nil {
		payload, _ := json.Marshal(result)
		if err := s.keys.Complete(ctx, key, fingerprint, payload, s.clock(), s.keyTTL); err != nil {
			s.logger(ctx, settlementEventCompleteFailed, map[string]any{"settlementId": key, "error": err.Error()})
		}
	}

	s.publish(ctx, settlement, result, cmd.Actor)
	s.recordOutcome(ctx, commitOutcomeCommitted, int64(result.Revenue.Amount))
	s.logger(ctx, settlementEventCommitted, map[string]any{
		"settlementId": key,
		"tableId":      settlement.TableID,
		"amount":       int64(result.Revenue.Amount),
		"orders":       len(result.Settled),
		"warnings":     len(result.Warnings),
	})
	return result, nil
}

// commit performs the writes in order: table, revenue, orders. Nothing is written to the
// ledger unless the table write succeeded.
func (s *settlementService) commit(ctx context.Context, settlement Settlement, actor domain.Actor) (CommitResult, error) {
	tables, err := s.tables.LoadTables(ctx)
	if err != nil {
		return CommitResult{}, storeError("load tables", err)
	}
	idx := slices.IndexFunc(tables, func(t domain.Table) bool { return t.ID == settlement.TableID })
	if idx < 0 {
		return CommitResult{}, fmt.Errorf("%w: table %d", ErrSessionNotFound, settlement.TableID)
	}
	table := tables[idx]
	if !table.IsOccupied() {
		return CommitResult{}, fmt.Errorf("%w: table %d is %s", ErrSessionInvalidState, table.ID, table.Status)
	}
	if err := s.matchSession(table, settlement); err != nil {
		return CommitResult{}, err
	}

	previous := slices.Clone(tables)
	tables[idx] = vacate(table)
	if err := s.tables.SaveTables(ctx, tables); err != nil {
		return CommitResult{}, storeError("save tables", err)
	}

	ledger, err := s.revenue.LoadRevenue(ctx)
	if err != nil {
		s.restoreTables(ctx, previous, settlement.Key)
		return CommitResult{}, storeError("load revenue", err)
	}

	now := s.clock()
	tableName := firstNonEmpty(settlement.TableName, table.Name)
	record := domain.RevenueRecord{
		ID:           domain.NextID(now, revenueIDs(ledger)...),
		Type:         domain.RevenueTypeTable,
		TableID:      table.ID,
		TableName:    tableName,
		Amount:       settlement.Total,
		TableAmount:  settlement.TableBill.Total,
		OrderAmount:  settlement.OrderTotal,
		OrderIDs:     slices.Clone(settlement.OrderIDs),
		SettlementID: settlement.Key,
		CreatedAt:    now,
		CreatedBy:    actor.Name(),
		Note:         settlementNote(tableName, settlement.TableBill.Total, settlement.OrderTotal),
	}
	if err := s.revenue.AppendRevenue(ctx, record); err != nil {
		s.restoreTables(ctx, previous, settlement.Key)
		return CommitResult{}, storeError("append revenue", err)
	}

	result := CommitResult{Revenue: record, Settled: []int64{}}
	settled, err := s.settleOrders(ctx, settlement.OrderIDs, now)
	if err != nil {
		// Revenue is recorded. Orders left open here will be summed again by the table's
		// next session unless staff cancel them.
		s.logger(ctx, settlementEventOrdersFailed, map[string]any{
			"settlementId": settlement.Key,
			"orderIds":     settlement.OrderIDs,
			"error":        err.Error(),
		})
		result.Warnings = append(result.Warnings, warningOrdersNotSettled)
		return result, nil
	}
	result.Settled = settled
	return result, nil
}

// matchSession rejects a settlement computed for an earlier session of the same table.
func (s *settlementService) matchSession(table domain.Table, settlement Settlement) error {
	start, ok, err := table.SessionStart()
	if err != nil || !ok {
		return fmt.Errorf("%w: table %d has no valid start time", ErrSessionInconsistent, table.ID)
	}
	if settlement.SessionStart.IsZero() {
		return nil
	}
	if domain.TimeOfDayAt(settlement.SessionStart.In(s.location)) != start {
		return fmt.Errorf("%w: table %d started a new session at %s", ErrSettlementConflict, table.ID, start)
	}
	return nil
}

func (s *settlementService) settleOrders(ctx context.Context, ids []int64, now time.Time) ([]int64, error) {
	settled := []int64{}
	if len(ids) == 0 {
		return settled, nil
	}
	orders, err := s.orders.LoadOrders(ctx)
	if err != nil {
		return nil, err
	}
	completedAt := now
	for i := range orders {
		if !slices.Contains(ids, orders[i].ID) || !orders[i].Status.IsOpen() {
			continue
		}
		orders[i].Status = domain.OrderStatusCompleted
		orders[i].CompletedAt = &completedAt
		settled = append(settled, orders[i].ID)
	}
	if len(settled) == 0 {
		return settled, nil
	}
	if err := s.orders.SaveOrders(ctx, orders); err != nil {
		return nil, err
	}
	return settled, nil
}

func (s *settlementService) restoreTables(ctx context.Context, tables []domain.Table, key string) {
	if err := s.tables.SaveTables(ctx, tables); err != nil {
		s.logger(ctx, settlementEventRestoreFailed, map[string]any{"settlementId": key, "error": err.Error()})
	}
}

func (s *settlementService) release(ctx context.Context, key, fingerprint string) {
	if s.keys == nil {
		return
	}
	if err := s.keys.Release(ctx, key, fingerprint); err != nil {
		s.logger(ctx, settlementEventReleaseFailed, map[string]any{"settlementId": key, "error": err.Error()})
	}
}

func (s *settlementService) replay(ctx context.Context, result CommitResult) CommitResult {
	result.Replayed = true
	result.Warnings = nil
	s.recordOutcome(ctx, commitOutcomeReplayed, int64(result.Revenue.Amount))
	s.logger(ctx, settlementEventReplayed, map[string]any{
		"settlementId": result.Revenue.SettlementID,
		"revenueId":    result.Revenue.ID,
	})
	return result
}

func (s *settlementService) publish(ctx context.Context, settlement Settlement, result CommitResult, actor domain.Actor) {
	if s.events == nil {
		return
	}
	revenue := result.Revenue
	s.events.Publish(ctx, events.Event{Name: events.TablesChanged, Actor: actor.Name(), TableID: settlement.TableID})
	if len(result.Settled) > 0 {
		s.events.Publish(ctx, events.Event{Name: events.OrdersChanged, Actor: actor.Name(), TableID: settlement.TableID, OrderIDs: result.Settled})
	}
	s.events.Publish(ctx, events.Event{Name: events.RevenueChanged, Actor: actor.Name(), TableID: settlement.TableID})
	s.events.Publish(ctx, events.Event{
		Name:     events.SettlementCompleted,
		Actor:    actor.Name(),
		TableID:  settlement.TableID,
		OrderIDs: result.Settled,
		Revenue:  &revenue,
	})
}

func (s *settlementService) recordOutcome(ctx context.Context, outcome string, total int64) {
	if s.metrics != nil {
		s.metrics.RecordCommit(ctx, outcome, total)
	}
}

// SettlementKey identifies one session of a table: the table id and the anchored start.
func SettlementKey(tableID int64, sessionStart time.Time) string {
	return fmt.Sprintf("tbl-%d-%d", tableID, sessionStart.Unix())
}

func settlementFingerprint(settlement Settlement) string {
	ids := slices.Clone(settlement.OrderIDs)
	slices.Sort(ids)
	parts := make([]string, 0, len(ids)+4)
	parts = append(parts,
		settlement.Key,
		strconv.FormatInt(settlement.TableID, 10),
		strconv.FormatInt(int64(settlement.TableBill.Total), 10),
		strconv.FormatInt(int64(settlement.OrderTotal), 10),
	)
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return idempotency.Fingerprint(parts...)
}

func settlementNote(tableName string, tableAmount, orderAmount domain.Money) string {
	return notePrinter.Sprintf("Thanh toán bàn %s (%dđ chơi bàn + %dđ đơn hàng)", tableName, int64(tableAmount), int64(orderAmount))
}

func findSettlement(ledger []domain.RevenueRecord, key string) (domain.RevenueRecord, bool) {
	for _, record := range ledger {
		if record.SettlementID == key {
			return record, true
		}
	}
	return domain.RevenueRecord{}, false
}

func revenueIDs(ledger []domain.RevenueRecord) []int64 {
	ids := make([]int64, 0, len(ledger))
	for _, record := range ledger {
		ids = append(ids, record.ID)
	}
	return ids
}

func vacate(table domain.Table) domain.Table {
	table.Status = domain.TableStatusEmpty
	table.StartTime = ""
	table.CurrentPlayer = ""
	table.Duration = 0
	return table
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
