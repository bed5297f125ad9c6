package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/huanth/bi-a-manager/internal/domain"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// DependencyCheck probes one downstream dependency (venue store, idempotency store, event
// sinks). Optional checks only ever degrade the report.
type DependencyCheck struct {
	Name     string
	Timeout  time.Duration
	Optional bool
	Check    func(context.Context) error
}

// DependencyHealthOption customises the dependency-backed health repository.
type DependencyHealthOption func(*probeSet)

// WithDependencyTimeout sets the timeout used by checks without their own.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(p *probeSet) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithDependencyClock injects a clock for tests.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(p *probeSet) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithBuildInfo stamps reports with the running version, environment and process start.
func WithBuildInfo(version, environment string, startedAt time.Time) DependencyHealthOption {
	return func(p *probeSet) {
		p.version = strings.TrimSpace(version)
		p.environment = strings.TrimSpace(environment)
		p.startedAt = startedAt
	}
}

// probeSet runs every registered check concurrently and folds the outcomes into one report.
type probeSet struct {
	probes  []DependencyCheck
	timeout time.Duration
	clock   func() time.Time

	version     string
	environment string
	startedAt   time.Time
}

var _ HealthRepository = (*probeSet)(nil)

// NewDependencyHealthRepository validates checks and returns a HealthRepository running them
// concurrently on every Collect. Names are trimmed and must be unique.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health repository: no dependency checks")
	}
	p := &probeSet{
		probes:  make([]DependencyCheck, 0, len(checks)),
		timeout: defaultProbeTimeout,
		clock:   time.Now,
	}
	names := make(map[string]bool, len(checks))
	for i, c := range checks {
		c.Name = strings.TrimSpace(c.Name)
		switch {
		case c.Name == "":
			return nil, fmt.Errorf("health repository: check #%d has no name", i)
		case c.Check == nil:
			return nil, fmt.Errorf("health repository: check %q has no probe", c.Name)
		case names[c.Name]:
			return nil, fmt.Errorf("health repository: check %q registered twice", c.Name)
		}
		names[c.Name] = true
		p.probes = append(p.probes, c)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *probeSet) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("health repository: nil context")
	}

	outcomes := make([]domain.SystemHealthCheck, len(p.probes))
	var wg sync.WaitGroup
	for i := range p.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = p.run(ctx, p.probes[i])
		}()
	}
	wg.Wait()

	generated := p.clock()
	report := domain.SystemHealthReport{
		Status:      domain.HealthStatusOK,
		Checks:      make(map[string]domain.SystemHealthCheck, len(p.probes)),
		Version:     p.version,
		Environment: p.environment,
		GeneratedAt: generated,
	}
	for i, probe := range p.probes {
		outcome := outcomes[i]
		report.Checks[probe.Name] = outcome
		report.Status = fold(report.Status, outcome.Status, probe.Optional)
	}
	if !p.startedAt.IsZero() {
		report.Uptime = generated.Sub(p.startedAt)
	}
	return report, nil
}

// fold merges one check into the running status. An optional dependency caps at degraded.
func fold(overall, check string, optional bool) string {
	if check == domain.HealthStatusOK || overall == domain.HealthStatusError {
		return overall
	}
	if check == domain.HealthStatusError && !optional {
		return domain.HealthStatusError
	}
	return domain.HealthStatusDegraded
}

func (p *probeSet) run(parent context.Context, probe DependencyCheck) domain.SystemHealthCheck {
	limit := probe.Timeout
	if limit <= 0 {
		limit = p.timeout
	}
	ctx, cancel := context.WithTimeout(parent, limit)
	defer cancel()

	began := p.clock()
	err := probe.Check(ctx)
	if err == nil {
		err = ctx.Err()
	}
	finished := p.clock()

	outcome := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   finished.Sub(began),
		CheckedAt: finished,
	}
	if err != nil {
		outcome.Error = err.Error()
		outcome.Status, outcome.Detail = classifyProbeError(err)
	}
	return outcome
}

// classifyProbeError separates an unreachable dependency (error) from one that answered
// with a failure (degraded).
func classifyProbeError(err error) (status, detail string) {
	var repoErr RepositoryError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.HealthStatusError, "timeout"
	case errors.Is(err, context.Canceled):
		return domain.HealthStatusError, "cancelled"
	case errors.As(err, &repoErr) && repoErr.IsUnavailable():
		return domain.HealthStatusError, "unavailable"
	}
	return domain.HealthStatusDegraded, err.Error()
}
