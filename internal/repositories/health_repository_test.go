package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/huanth/bi-a-manager/internal/domain"
)

type unavailableErr struct{}

func (unavailableErr) Error() string       { return "store down" }
func (unavailableErr) IsNotFound() bool    { return false }
func (unavailableErr) IsConflict() bool    { return false }
func (unavailableErr) IsUnavailable() bool { return true }

func fixedClock() func() time.Time {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestDependencyHealthRepositoryAllHealthy(t *testing.T) {
	started := time.Date(2025, time.March, 1, 11, 0, 0, 0, time.UTC)
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "venue_store", Check: func(ctx context.Context) error {
			select {
			case <-time.After(5 * time.Millisecond):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		{Name: "idempotency", Check: func(context.Context) error { return nil }},
	}, WithDependencyClock(fixedClock()), WithBuildInfo("v1.2.3", "local", started))
	require.NoError(t, err)

	report, err := repo.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.HealthStatusOK, report.Status)
	assert.Len(t, report.Checks, 2)
	assert.Equal(t, "v1.2.3", report.Version)
	assert.Equal(t, "local", report.Environment)
	assert.Equal(t, time.Hour, report.Uptime)
	for name, check := range report.Checks {
		assert.Equal(t, domain.HealthStatusOK, check.Status, name)
	}
}

func TestDependencyHealthRepositoryClassifiesFailures(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "venue_store", Check: func(context.Context) error { return unavailableErr{} }},
		{Name: "events", Check: func(context.Context) error { return errors.New("topic missing") }},
	}, WithDependencyClock(fixedClock()))
	require.NoError(t, err)

	report, err := repo.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.HealthStatusError, report.Status)
	assert.Equal(t, "unavailable", report.Checks["venue_store"].Detail)
	assert.Equal(t, domain.HealthStatusDegraded, report.Checks["events"].Status)
	assert.Equal(t, "topic missing", report.Checks["events"].Error)
}

func TestDependencyHealthRepositoryOptionalOnlyDegrades(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "venue_store", Check: func(context.Context) error { return nil }},
		{Name: "exports", Optional: true, Check: func(context.Context) error { return unavailableErr{} }},
	})
	require.NoError(t, err)

	report, err := repo.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusDegraded, report.Status)
	assert.Equal(t, domain.HealthStatusError, report.Checks["exports"].Status)
}

func TestDependencyHealthRepositoryTimeout(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "slow", Timeout: 10 * time.Millisecond, Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	})
	require.NoError(t, err)

	report, err := repo.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusError, report.Status)
	assert.Equal(t, "timeout", report.Checks["slow"].Detail)
}

func TestNewDependencyHealthRepositoryValidation(t *testing.T) {
	_, err := NewDependencyHealthRepository(nil)
	assert.Error(t, err)

	_, err = NewDependencyHealthRepository([]DependencyCheck{{Name: " ", Check: func(context.Context) error { return nil }}})
	assert.Error(t, err)

	_, err = NewDependencyHealthRepository([]DependencyCheck{{Name: "store"}})
	assert.Error(t, err)

	ok := func(context.Context) error { return nil }
	_, err = NewDependencyHealthRepository([]DependencyCheck{{Name: "store", Check: ok}, {Name: "store", Check: ok}})
	assert.Error(t, err)
}

func TestFoldStatus(t *testing.T) {
	cases := []struct {
		overall, check string
		optional       bool
		want           string
	}{
		{domain.HealthStatusOK, domain.HealthStatusOK, false, domain.HealthStatusOK},
		{domain.HealthStatusOK, domain.HealthStatusDegraded, false, domain.HealthStatusDegraded},
		{domain.HealthStatusOK, domain.HealthStatusError, true, domain.HealthStatusDegraded},
		{domain.HealthStatusDegraded, domain.HealthStatusError, false, domain.HealthStatusError},
		{domain.HealthStatusError, domain.HealthStatusDegraded, false, domain.HealthStatusError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, fold(tc.overall, tc.check, tc.optional), "%s+%s optional=%v", tc.overall, tc.check, tc.optional)
	}
}
