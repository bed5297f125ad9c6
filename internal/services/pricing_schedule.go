package services

import (
	domain "github.com/huanth/bi-a-manager/internal/domain"
)

// WindowAt returns the index of the first window in declared order that covers at, or -1
// when none does. A window whose end is at or before its start covers [start, end+24h).
func WindowAt(tariff domain.TableTariff, at domain.TimeOfDay) int {
	t := at.Minutes()
	for i, window := range tariff.Windows {
		if windowCovers(window, t) {
			return i
		}
	}
	return -1
}

// RateAt resolves the hourly rate and label in force at the given wall-clock time.
// ok is false when no window matched and the default rate applies.
func RateAt(tariff domain.TableTariff, at domain.TimeOfDay) (rate domain.Money, label string, ok bool) {
	idx := WindowAt(tariff, at)
	if idx < 0 {
		return tariff.DefaultHourlyRate, "", false
	}
	window := tariff.Windows[idx]
	return window.HourlyRate, window.Label, true
}

func windowCovers(window domain.PricingWindow, t int) bool {
	s, e := windowBounds(window)
	t = shiftIntoWindow(window, t)
	return s <= t && t < e
}

// windowBounds returns start and end in minutes, with the end pushed past midnight for
// windows that wrap.
func windowBounds(window domain.PricingWindow) (start, end int) {
	start = window.StartOfDay.Minutes()
	end = window.EndOfDay.Minutes()
	if end <= start {
		end += domain.MinutesPerDay
	}
	return start, end
}

// shiftIntoWindow moves t onto the next day when it falls in the after-midnight part of a
// wrapping window.
func shiftIntoWindow(window domain.PricingWindow, t int) int {
	if window.Wraps() && t < window.StartOfDay.Minutes() {
		return t + domain.MinutesPerDay
	}
	return t
}

// minutesToBoundary returns how many whole minutes after t the rate can next change.
// When window idx matches it is the nearer of that window's end and the next start of any
// window declared before it, since that window would take precedence once it opens.
// Otherwise it is the distance to the soonest window start. Zero means no window
// information exists.
func minutesToBoundary(tariff domain.TableTariff, idx, t int) int {
	candidates := tariff.Windows
	soonest := 0
	if idx >= 0 {
		window := tariff.Windows[idx]
		_, end := windowBounds(window)
		soonest = end - shiftIntoWindow(window, t)
		candidates = tariff.Windows[:idx]
	}
	for _, window := range candidates {
		if delta := minutesUntilStart(window, t); soonest == 0 || delta < soonest {
			soonest = delta
		}
	}
	return soonest
}

// minutesUntilStart is the distance from t to the window's next opening, in (0, 24h].
func minutesUntilStart(window domain.PricingWindow, t int) int {
	delta := ((window.StartOfDay.Minutes()-t)%domain.MinutesPerDay + domain.MinutesPerDay) % domain.MinutesPerDay
	if delta == 0 {
		return domain.MinutesPerDay
	}
	return delta
}
