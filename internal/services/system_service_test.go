package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/huanth/bi-a-manager/internal/domain"
)

type healthRepoFunc func(context.Context) (domain.SystemHealthReport, error)

func (f healthRepoFunc) Collect(ctx context.Context) (domain.SystemHealthReport, error) { return f(ctx) }

func fixedReport(report domain.SystemHealthReport) healthRepoFunc {
	return func(context.Context) (domain.SystemHealthReport, error) { return report, nil }
}

func TestSystemServiceFillsMissingMetadata(t *testing.T) {
	opened := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	now := opened.Add(3 * time.Hour)

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: fixedReport(domain.SystemHealthReport{}),
		Clock:            func() time.Time { return now },
		Build:            BuildInfo{Version: "2025.03.1", Environment: "prod", StartedAt: opened},
	})
	require.NoError(t, err)

	report, err := svc.HealthReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusOK, report.Status)
	assert.Equal(t, "2025.03.1", report.Version)
	assert.Equal(t, "prod", report.Environment)
	assert.Equal(t, 3*time.Hour, report.Uptime)
	assert.Equal(t, now, report.GeneratedAt)
	assert.NotNil(t, report.Checks)
	assert.Nil(t, report.Floor)
}

func TestSystemServiceKeepsCollectedMetadata(t *testing.T) {
	collected := time.Date(2025, 3, 1, 16, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: fixedReport(domain.SystemHealthReport{
			Status:      domain.HealthStatusDegraded,
			Version:     "from-repo",
			Environment: "staging",
			Uptime:      time.Hour,
			GeneratedAt: collected,
		}),
		Build: BuildInfo{Version: "from-build", Environment: "local"},
	})
	require.NoError(t, err)

	report, err := svc.HealthReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusDegraded, report.Status)
	assert.Equal(t, "from-repo", report.Version)
	assert.Equal(t, "staging", report.Environment)
	assert.Equal(t, time.Hour, report.Uptime)
	assert.Equal(t, time.UTC, report.GeneratedAt.Location())
}

func TestSystemServiceDerivesWorstStatus(t *testing.T) {
	cases := []struct {
		name   string
		checks map[string]domain.SystemHealthCheck
		want   string
	}{
		{"no checks", nil, domain.HealthStatusOK},
		{"all ok", map[string]domain.SystemHealthCheck{"document_store": {Status: domain.HealthStatusOK}}, domain.HealthStatusOK},
		{"optional sink degraded", map[string]domain.SystemHealthCheck{
			"document_store": {Status: domain.HealthStatusOK},
			"amqp":           {Status: domain.HealthStatusDegraded},
		}, domain.HealthStatusDegraded},
		{"store down wins", map[string]domain.SystemHealthCheck{
			"amqp":           {Status: domain.HealthStatusDegraded},
			"document_store": {Status: domain.HealthStatusError},
		}, domain.HealthStatusError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := NewSystemService(SystemServiceDeps{HealthRepository: fixedReport(domain.SystemHealthReport{Checks: tc.checks})})
			require.NoError(t, err)
			report, err := svc.HealthReport(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, report.Status)
		})
	}
}

func TestSystemServiceErrors(t *testing.T) {
	_, err := NewSystemService(SystemServiceDeps{})
	assert.Error(t, err)

	boom := errors.New("collect failed")
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: healthRepoFunc(func(context.Context) (domain.SystemHealthReport, error) {
		return domain.SystemHealthReport{}, boom
	})})
	require.NoError(t, err)
	_, err = svc.HealthReport(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSystemServiceSummarizesFloor(t *testing.T) {
	repo := fixedReport(domain.SystemHealthReport{
		Checks: map[string]domain.SystemHealthCheck{
			"document_store": {Status: domain.HealthStatusOK},
		},
	})
	venue := &venueStub{tables: []domain.Table{
		{ID: 1, Status: domain.TableStatusPlaying},
		{ID: 2, Status: domain.TableStatusEmpty},
		{ID: 3, Status: domain.TableStatusMaintenance},
		{ID: 4, Status: domain.TableStatusPlaying},
	}}

	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo, Tables: venue})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}
	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	want := domain.FloorSummary{Tables: 4, Playing: 2, Empty: 1, Maintenance: 1}
	if report.Floor == nil || *report.Floor != want {
		t.Fatalf("expected floor %+v, got %+v", want, report.Floor)
	}

	venue.loadErr = errors.New("offline")
	report, err = svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport with unreadable tables: %v", err)
	}
	if report.Floor != nil {
		t.Fatalf("expected no floor summary when tables cannot be read, got %+v", report.Floor)
	}
}
