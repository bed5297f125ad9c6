package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domain "github.com/huanth/bi-a-manager/internal/domain"
)

func TestRateAtFallsBackToDefaultWithoutWindows(t *testing.T) {
	tariff := domain.TableTariff{DefaultHourlyRate: 120000}
	for minute := 0; minute < domain.MinutesPerDay; minute += 7 {
		at, err := domain.NewTimeOfDay(minute/60, minute%60)
		if err != nil {
			t.Fatalf("NewTimeOfDay: %v", err)
		}
		rate, label, ok := RateAt(tariff, at)
		assert.Equal(t, domain.Money(120000), rate, at.String())
		assert.Empty(t, label)
		assert.False(t, ok)
	}
}

func TestRateAtMatchesWindowAcrossMidnight(t *testing.T) {
	tariff := domain.TableTariff{
		DefaultHourlyRate: 80,
		Windows:           []domain.PricingWindow{window("22:00", "02:00", 50, "Night")},
	}

	cases := []struct {
		at    string
		rate  domain.Money
		label string
		ok    bool
	}{
		{at: "23:30", rate: 50, label: "Night", ok: true},
		{at: "01:00", rate: 50, label: "Night", ok: true},
		{at: "22:00", rate: 50, label: "Night", ok: true},
		{at: "00:00", rate: 50, label: "Night", ok: true},
		{at: "02:00", rate: 80},
		{at: "10:00", rate: 80},
		{at: "21:59", rate: 80},
	}
	for _, tc := range cases {
		t.Run(tc.at, func(t *testing.T) {
			rate, label, ok := RateAt(tariff, mustTimeOfDay(tc.at))
			assert.Equal(t, tc.rate, rate)
			assert.Equal(t, tc.label, label)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestRateAtFirstDeclaredWindowWins(t *testing.T) {
	tariff := domain.TableTariff{
		DefaultHourlyRate: 10,
		Windows: []domain.PricingWindow{
			window("08:00", "18:00", 100, "Day"),
			window("09:00", "10:00", 300, "Peak"),
		},
	}
	rate, label, ok := RateAt(tariff, mustTimeOfDay("09:30"))
	assert.True(t, ok)
	assert.Equal(t, domain.Money(100), rate)
	assert.Equal(t, "Day", label)

	tariff.Windows[0], tariff.Windows[1] = tariff.Windows[1], tariff.Windows[0]
	rate, label, _ = RateAt(tariff, mustTimeOfDay("09:30"))
	assert.Equal(t, domain.Money(300), rate)
	assert.Equal(t, "Peak", label)
}

func TestRateAtEqualStartAndEndCoversWholeDay(t *testing.T) {
	tariff := domain.TableTariff{
		DefaultHourlyRate: 10,
		Windows:           []domain.PricingWindow{window("06:00", "06:00", 70, "Flat")},
	}
	for _, at := range []string{"05:59", "06:00", "18:00", "00:00"} {
		rate, _, ok := RateAt(tariff, mustTimeOfDay(at))
		assert.True(t, ok, at)
		assert.Equal(t, domain.Money(70), rate, at)
	}
}

func TestMinutesToBoundary(t *testing.T) {
	tariff := domain.TableTariff{
		Windows: []domain.PricingWindow{
			window("08:00", "17:00", 100, "Day"),
			window("22:00", "02:00", 50, "Night"),
		},
	}
	assert.Equal(t, 30, minutesToBoundary(tariff, 0, mustTimeOfDay("16:30").Minutes()))
	assert.Equal(t, 60, minutesToBoundary(tariff, 1, mustTimeOfDay("01:00").Minutes()))
	assert.Equal(t, 240, minutesToBoundary(tariff, 1, mustTimeOfDay("22:00").Minutes()))
	// 17:00 has no window; the next one opens at 22:00.
	assert.Equal(t, 300, minutesToBoundary(tariff, -1, mustTimeOfDay("17:00").Minutes()))
	assert.Equal(t, 0, minutesToBoundary(domain.TableTariff{}, -1, 0))
}

func TestMinutesToBoundaryStopsAtEarlierDeclaredWindow(t *testing.T) {
	tariff := domain.TableTariff{
		Windows: []domain.PricingWindow{
			window("09:00", "10:00", 300, "Peak"),
			window("08:00", "17:00", 100, "Day"),
		},
	}
	// Day matches at 08:00 but Peak takes over at 09:00.
	assert.Equal(t, 60, minutesToBoundary(tariff, 1, mustTimeOfDay("08:00").Minutes()))
	// Once Peak has closed, only Day's own end remains ahead today.
	assert.Equal(t, 420, minutesToBoundary(tariff, 1, mustTimeOfDay("10:00").Minutes()))
	assert.Equal(t, 60, minutesToBoundary(tariff, 0, mustTimeOfDay("09:00").Minutes()))
}
