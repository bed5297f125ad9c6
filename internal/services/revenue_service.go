package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/repositories"
)

const (
	dayLabelLayout   = "2006-01-02"
	monthLabelLayout = "2006-01"
)

// RevenueServiceDeps bundles collaborators required to construct the revenue service.
type RevenueServiceDeps struct {
	Revenue  repositories.RevenueRepository
	Location *time.Location
	Clock    func() time.Time
}

type revenueService struct {
	revenue  repositories.RevenueRepository
	location *time.Location
	clock    func() time.Time
}

var _ RevenueService = (*revenueService)(nil)

// NewRevenueService returns a read-only view over the revenue ledger. Days are cut at
// midnight in location.
func NewRevenueService(deps RevenueServiceDeps) (RevenueService, error) {
	if deps.Revenue == nil {
		return nil, errors.New("revenue service: revenue repository is required")
	}
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &revenueService{revenue: deps.Revenue, location: location, clock: clock}, nil
}

// List returns ledger entries created in [From, To), newest first. Zero bounds are open.
func (s *revenueService) List(ctx context.Context, filter RevenueFilter) ([]RevenueRecord, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
		return nil, fmt.Errorf("%w: to must be after from", ErrRevenueInvalidRange)
	}
	ledger, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RevenueRecord, 0, len(ledger))
	for _, record := range ledger {
		if filter.TableID > 0 && record.TableID != filter.TableID {
			continue
		}
		if !filter.From.IsZero() && record.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !record.CreatedAt.Before(filter.To) {
			continue
		}
		out = append(out, record)
	}
	slices.SortStableFunc(out, func(a, b RevenueRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *revenueService) DailyTotals(ctx context.Context, day time.Time) (RevenuePeriod, error) {
	ledger, err := s.load(ctx)
	if err != nil {
		return RevenuePeriod{}, err
	}
	return s.day(ledger, day), nil
}

func (s *revenueService) LastSevenDays(ctx context.Context) ([]RevenuePeriod, error) {
	ledger, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return s.lastSevenDays(ledger, s.clock()), nil
}

func (s *revenueService) MonthToDate(ctx context.Context) (RevenuePeriod, error) {
	ledger, err := s.load(ctx)
	if err != nil {
		return RevenuePeriod{}, err
	}
	return s.monthToDate(ledger, s.clock()), nil
}

// Summary computes the dashboard figures from a single ledger read.
func (s *revenueService) Summary(ctx context.Context) (RevenueSummary, error) {
	ledger, err := s.load(ctx)
	if err != nil {
		return RevenueSummary{}, err
	}
	now := s.clock()
	return RevenueSummary{
		Today:         s.day(ledger, now),
		LastSevenDays: s.lastSevenDays(ledger, now),
		MonthToDate:   s.monthToDate(ledger, now),
	}, nil
}

func (s *revenueService) load(ctx context.Context) ([]RevenueRecord, error) {
	ledger, err := s.revenue.LoadRevenue(ctx)
	if err != nil {
		return nil, storeError("load revenue", err)
	}
	return countable(ledger), nil
}

func (s *revenueService) day(ledger []RevenueRecord, at time.Time) RevenuePeriod {
	from := startOfDay(at.In(s.location))
	return sumPeriod(ledger, from.Format(dayLabelLayout), from, from.AddDate(0, 0, 1))
}

func (s *revenueService) lastSevenDays(ledger []RevenueRecord, now time.Time) []RevenuePeriod {
	today := startOfDay(now.In(s.location))
	periods := make([]RevenuePeriod, 0, 7)
	for offset := 6; offset >= 0; offset-- {
		periods = append(periods, s.day(ledger, today.AddDate(0, 0, -offset)))
	}
	return periods
}

func (s *revenueService) monthToDate(ledger []RevenueRecord, now time.Time) RevenuePeriod {
	local := now.In(s.location)
	from := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.location)
	return sumPeriod(ledger, from.Format(monthLabelLayout), from, startOfDay(local).AddDate(0, 0, 1))
}

func sumPeriod(ledger []RevenueRecord, label string, from, to time.Time) RevenuePeriod {
	period := RevenuePeriod{Label: label, From: from, To: to}
	for _, record := range ledger {
		if record.CreatedAt.Before(from) || !record.CreatedAt.Before(to) {
			continue
		}
		period.Total += record.Amount
		switch record.Type {
		case domain.RevenueTypeOrder:
			period.OrderTotal += record.Amount
		case domain.RevenueTypeTable:
			if record.TableAmount == 0 && record.OrderAmount == 0 {
				// Older checkouts only stored the combined amount.
				period.TableTotal += record.Amount
			}
			period.TableTotal += record.TableAmount
			period.OrderTotal += record.OrderAmount
			period.Settlements++
		}
	}
	return period
}

// countable drops legacy per-order entries for orders that were also settled through a
// table checkout, so the same money is never summed twice.
func countable(ledger []RevenueRecord) []RevenueRecord {
	settled := make(map[int64]struct{})
	for _, record := range ledger {
		if record.Type == domain.RevenueTypeOrder {
			continue
		}
		for _, id := range record.OrderIDs {
			settled[id] = struct{}{}
		}
	}
	out := make([]RevenueRecord, 0, len(ledger))
	for _, record := range ledger {
		if record.Type == domain.RevenueTypeOrder && record.OrderID > 0 {
			if _, dup := settled[record.OrderID]; dup {
				continue
			}
		}
		out = append(out, record)
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
