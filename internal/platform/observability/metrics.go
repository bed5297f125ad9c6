package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/huanth/bi-a-manager/settlements"

// SettlementMetrics records committed settlements. Instruments come from the global meter
// provider, which is a no-op until an exporter is installed.
type SettlementMetrics struct {
	commits metric.Int64Counter
	amount  metric.Int64Histogram
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *SettlementMetrics
)

// NewSettlementMetrics creates the instruments on provider.
func NewSettlementMetrics(provider metric.MeterProvider) (*SettlementMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)
	commits, err := meter.Int64Counter("settlement.commits",
		metric.WithDescription("Settlement commit attempts by outcome"))
	if err != nil {
		return nil, err
	}
	amount, err := meter.Int64Histogram("settlement.amount",
		metric.WithDescription("Committed settlement totals"),
		metric.WithUnit("{VND}"))
	if err != nil {
		return nil, err
	}
	return &SettlementMetrics{commits: commits, amount: amount}, nil
}

// DefaultSettlementMetrics returns instruments on the global provider. It never returns nil.
func DefaultSettlementMetrics() *SettlementMetrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewSettlementMetrics(nil)
		if err != nil {
			m = &SettlementMetrics{}
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordCommit counts one commit attempt. outcome is "committed", "replayed" or "failed";
// total is only recorded for committed settlements.
func (m *SettlementMetrics) RecordCommit(ctx context.Context, outcome string, total int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.commits != nil {
		m.commits.Add(ctx, 1, attrs)
	}
	if m.amount != nil && outcome == "committed" {
		m.amount.Record(ctx, total)
	}
}
