package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/events"
)

type sessionFixture struct {
	venue    *venueStub
	sessions TableSessionService
	events   *recordingPublisher
	now      *time.Time
}

func newSessionFixture(t *testing.T, venue *venueStub, now time.Time) sessionFixture {
	t.Helper()
	fx := sessionFixture{venue: venue, events: &recordingPublisher{}, now: &now}
	clock := func() time.Time { return *fx.now }

	committer, err := NewSettlementService(SettlementServiceDeps{
		Tables:   venue,
		Orders:   venue,
		Revenue:  venue,
		Events:   fx.events,
		Location: time.UTC,
		Clock:    clock,
	})
	require.NoError(t, err)

	sessions, err := NewTableSessionService(TableSessionServiceDeps{
		Tables:    venue,
		Orders:    venue,
		Committer: committer,
		Biller:    NewSessionBiller(time.UTC),
		Events:    fx.events,
		Clock:     clock,
	})
	require.NoError(t, err)
	fx.sessions = sessions
	return fx
}

func TestTableSessionStartOccupiesVacantTable(t *testing.T) {
	venue := occupiedVenue()
	fx := newSessionFixture(t, venue, time.Date(2025, time.March, 1, 19, 5, 42, 0, time.UTC))

	table, err := fx.sessions.Start(context.Background(), StartSessionCommand{TableID: 2, Player: "  <b>Chị Lan</b> ", Actor: cashier})
	require.NoError(t, err)

	assert.Equal(t, domain.TableStatusPlaying, table.Status)
	assert.Equal(t, "19:05", table.StartTime)
	assert.Equal(t, "Chị Lan", table.CurrentPlayer)
	assert.Equal(t, table, venue.table(2))
	assert.Equal(t, []events.Name{events.TablesChanged}, fx.events.names())

	_, err = fx.sessions.Start(context.Background(), StartSessionCommand{TableID: 2})
	require.ErrorIs(t, err, ErrSessionInvalidState)

	_, err = fx.sessions.Start(context.Background(), StartSessionCommand{TableID: 99})
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = fx.sessions.Start(context.Background(), StartSessionCommand{})
	require.ErrorIs(t, err, ErrSessionInvalidInput)
}

func TestTableSessionEndProducesSettlementAndKeepsTableOccupied(t *testing.T) {
	venue := occupiedVenue()
	venue.tables[0].TimePrices = []domain.TimePrice{{ID: 1, StartTime: "22:00", EndTime: "02:00", PricePerHour: 80000, Label: "Tối"}}
	fx := newSessionFixture(t, venue, commitNow)

	settlement, err := fx.sessions.EndSession(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "tbl-1-1740859200", settlement.Key)
	assert.True(t, settlement.SessionStart.Equal(sessionStartedAt))
	assert.True(t, settlement.SessionEnd.Equal(commitNow))
	// 20:00-22:00 at the default 60000 and 22:00-22:30 at 80000.
	require.Len(t, settlement.TableBill.Lines, 2)
	assert.Equal(t, domain.Money(160000), settlement.TableBill.Total)
	assert.Equal(t, []int64{11, 12}, settlement.OrderIDs)
	assert.Equal(t, domain.Money(50000), settlement.OrderTotal)
	assert.Equal(t, domain.Money(210000), settlement.Total)

	assert.Equal(t, domain.TableStatusPlaying, venue.table(1).Status)
	pending, err := fx.sessions.PendingSettlement(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, settlement.Key, pending.Key)
}

func TestTableSessionConfirmSettlementVacatesTable(t *testing.T) {
	venue := occupiedVenue()
	fx := newSessionFixture(t, venue, commitNow)
	ctx := context.Background()

	_, err := fx.sessions.EndSession(ctx, 1)
	require.NoError(t, err)

	result, err := fx.sessions.ConfirmSettlement(ctx, 1, cashier)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(200000), result.Revenue.Amount)
	assert.Equal(t, domain.TableStatusEmpty, venue.table(1).Status)
	assert.Len(t, venue.revenue, 1)

	_, err = fx.sessions.PendingSettlement(ctx, 1)
	require.ErrorIs(t, err, ErrSettlementNotFound)
	_, err = fx.sessions.ConfirmSettlement(ctx, 1, cashier)
	require.ErrorIs(t, err, ErrSettlementNotFound)
	assert.Len(t, venue.revenue, 1)
}

func TestTableSessionConfirmFailureKeepsSettlement(t *testing.T) {
	venue := occupiedVenue()
	fx := newSessionFixture(t, venue, commitNow)
	ctx := context.Background()

	_, err := fx.sessions.EndSession(ctx, 1)
	require.NoError(t, err)

	venue.saveTablesErr = unavailableError{}
	_, err = fx.sessions.ConfirmSettlement(ctx, 1, cashier)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = fx.sessions.PendingSettlement(ctx, 1)
	require.NoError(t, err)

	venue.saveTablesErr = nil
	_, err = fx.sessions.ConfirmSettlement(ctx, 1, cashier)
	require.NoError(t, err)
	assert.Len(t, venue.revenue, 1)
}

func TestTableSessionCancelSettlementLeavesTableOccupied(t *testing.T) {
	venue := occupiedVenue()
	fx := newSessionFixture(t, venue, commitNow)
	ctx := context.Background()

	_, err := fx.sessions.EndSession(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, fx.sessions.CancelSettlement(ctx, 1))

	assert.Equal(t, domain.TableStatusPlaying, venue.table(1).Status)
	assert.Empty(t, venue.revenue)
	require.ErrorIs(t, fx.sessions.CancelSettlement(ctx, 1), ErrSettlementNotFound)
}

func TestTableSessionEndRequiresOccupiedTable(t *testing.T) {
	venue := occupiedVenue()
	venue.tables = append(venue.tables, domain.Table{ID: 3, Name: "Bàn 3", Status: domain.TableStatusPlaying})
	fx := newSessionFixture(t, venue, commitNow)

	_, err := fx.sessions.EndSession(context.Background(), 2)
	require.ErrorIs(t, err, ErrSessionInvalidState)

	_, err = fx.sessions.EndSession(context.Background(), 3)
	require.ErrorIs(t, err, ErrSessionInconsistent)

	_, err = fx.sessions.Preview(context.Background(), 3)
	require.ErrorIs(t, err, ErrSessionInconsistent)
}

func TestTableSessionMaintenanceTransitions(t *testing.T) {
	venue := occupiedVenue()
	fx := newSessionFixture(t, venue, commitNow)
	ctx := context.Background()

	table, err := fx.sessions.BeginMaintenance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.TableStatusMaintenance, table.Status)

	_, err = fx.sessions.Start(ctx, StartSessionCommand{TableID: 2})
	require.ErrorIs(t, err, ErrSessionInvalidState)
	_, err = fx.sessions.BeginMaintenance(ctx, 2)
	require.ErrorIs(t, err, ErrSessionInvalidState)

	table, err = fx.sessions.EndMaintenance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.TableStatusEmpty, table.Status)

	_, err = fx.sessions.BeginMaintenance(ctx, 1)
	require.ErrorIs(t, err, ErrSessionInvalidState)
}

func TestTableSessionPreview(t *testing.T) {
	venue := occupiedVenue()
	venue.tables[0].TimePrices = []domain.TimePrice{{ID: 1, StartTime: "22:00", EndTime: "02:00", PricePerHour: 80000, Label: "Tối"}}
	fx := newSessionFixture(t, venue, commitNow)

	preview, err := fx.sessions.Preview(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(80000), preview.CurrentRate)
	assert.Equal(t, "Tối", preview.CurrentLabel)
	assert.Equal(t, 150, preview.ElapsedMinutes)
	assert.Equal(t, domain.Money(160000), preview.RunningTotal)

	_, err = fx.sessions.Preview(context.Background(), 2)
	require.ErrorIs(t, err, ErrSessionInvalidState)
}

func TestTableSessionSurfacesStoreOutage(t *testing.T) {
	venue := occupiedVenue()
	venue.loadErr = unavailableError{}
	fx := newSessionFixture(t, venue, commitNow)

	_, err := fx.sessions.ListTables(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = fx.sessions.GetTable(context.Background(), 1)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}
