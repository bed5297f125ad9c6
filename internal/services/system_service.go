package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/repositories"
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps bundles collaborators required to construct a system service. Tables is
// optional; when set the readiness report carries a floor summary.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Tables           repositories.TableRepository
	Clock            func() time.Time
	Build            BuildInfo
}

type systemService struct {
	health repositories.HealthRepository
	tables repositories.TableRepository
	now    func() time.Time
	build  BuildInfo
}

var _ SystemService = (*systemService)(nil)

// NewSystemService builds the readiness reporter.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	svc := &systemService{
		health: deps.HealthRepository,
		tables: deps.Tables,
		now:    now,
		build:  deps.Build,
	}
	if svc.build.StartedAt.IsZero() {
		svc.build.StartedAt = now()
	}
	return svc, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	if ctx == nil {
		return SystemHealthReport{}, errors.New("system service: context is required")
	}

	report, err := s.health.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.now().UTC()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	} else {
		report.GeneratedAt = report.GeneratedAt.UTC()
	}
	if report.Version == "" {
		report.Version = s.build.Version
	}
	if report.Environment == "" {
		report.Environment = s.build.Environment
	}
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	if report.Checks == nil {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}
	if report.Status == "" {
		report.Status = worstStatus(report.Checks)
	}

	// The floor summary is informational; a failed read is already covered by the
	// document store check.
	if s.tables != nil && report.Checks["document_store"].Status != domain.HealthStatusError {
		if tables, err := s.tables.LoadTables(ctx); err == nil {
			report.Floor = summarizeFloor(tables)
		}
	}
	return report, nil
}

func summarizeFloor(tables []domain.Table) *domain.FloorSummary {
	floor := &domain.FloorSummary{Tables: len(tables)}
	for _, table := range tables {
		switch table.Status {
		case domain.TableStatusPlaying:
			floor.Playing++
		case domain.TableStatusMaintenance:
			floor.Maintenance++
		default:
			floor.Empty++
		}
	}
	return floor
}

func worstStatus(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		if check.Status == domain.HealthStatusError {
			return domain.HealthStatusError
		}
		if check.Status == domain.HealthStatusDegraded {
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
