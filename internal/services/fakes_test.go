package services

import (
	"context"
	"slices"
	"sync"
	"time"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/events"
)

// venueStub is an in-memory venue document with injectable write failures.
type venueStub struct {
	mu      sync.Mutex
	tables  []domain.Table
	orders  []domain.Order
	revenue []domain.RevenueRecord
	users   []domain.UserAccount

	loadErr          error
	saveTablesErr    error
	appendRevenueErr error
	saveOrdersErr    error

	saveTablesCalls int
}

func (v *venueStub) LoadTables(context.Context) ([]domain.Table, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loadErr != nil {
		return nil, v.loadErr
	}
	return slices.Clone(v.tables), nil
}

func (v *venueStub) SaveTables(_ context.Context, tables []domain.Table) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.saveTablesCalls++
	if v.saveTablesErr != nil {
		return v.saveTablesErr
	}
	v.tables = slices.Clone(tables)
	return nil
}

func (v *venueStub) LoadOrders(context.Context) ([]domain.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loadErr != nil {
		return nil, v.loadErr
	}
	return slices.Clone(v.orders), nil
}

func (v *venueStub) SaveOrders(_ context.Context, orders []domain.Order) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.saveOrdersErr != nil {
		return v.saveOrdersErr
	}
	v.orders = slices.Clone(orders)
	return nil
}

func (v *venueStub) LoadRevenue(context.Context) ([]domain.RevenueRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loadErr != nil {
		return nil, v.loadErr
	}
	return slices.Clone(v.revenue), nil
}

func (v *venueStub) AppendRevenue(_ context.Context, record domain.RevenueRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.appendRevenueErr != nil {
		return v.appendRevenueErr
	}
	v.revenue = append(v.revenue, record)
	return nil
}

func (v *venueStub) LoadUsers(context.Context) ([]domain.UserAccount, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loadErr != nil {
		return nil, v.loadErr
	}
	return slices.Clone(v.users), nil
}

func (v *venueStub) table(id int64) domain.Table {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.tables {
		if t.ID == id {
			return t
		}
	}
	return domain.Table{}
}

func (v *venueStub) order(id int64) domain.Order {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, o := range v.orders {
		if o.ID == id {
			return o
		}
	}
	return domain.Order{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return event
}

func (p *recordingPublisher) names() []events.Name {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Name, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}

type recordingMetrics struct {
	outcomes []string
	totals   []int64
}

func (m *recordingMetrics) RecordCommit(_ context.Context, outcome string, total int64) {
	m.outcomes = append(m.outcomes, outcome)
	m.totals = append(m.totals, total)
}

// unavailableError mimics a docstore outage.
type unavailableError struct{}

func (unavailableError) Error() string       { return "store unreachable" }
func (unavailableError) IsNotFound() bool    { return false }
func (unavailableError) IsConflict() bool    { return false }
func (unavailableError) IsUnavailable() bool { return true }

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustTimeOfDay(value string) domain.TimeOfDay {
	tod, err := domain.ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return tod
}

func window(start, end string, rate domain.Money, label string) domain.PricingWindow {
	return domain.PricingWindow{
		StartOfDay: mustTimeOfDay(start),
		EndOfDay:   mustTimeOfDay(end),
		HourlyRate: rate,
		Label:      label,
	}
}
