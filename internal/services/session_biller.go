package services

import (
	"math"
	"time"

	domain "github.com/huanth/bi-a-manager/internal/domain"
)

// SessionBiller prices table sessions against wall-clock pricing windows in the venue's
// time zone. It performs no I/O.
type SessionBiller struct {
	location *time.Location
}

// NewSessionBiller returns a biller evaluating windows in location, UTC when nil.
func NewSessionBiller(location *time.Location) SessionBiller {
	if location == nil {
		location = time.UTC
	}
	return SessionBiller{location: location}
}

// Location returns the venue time zone.
func (b SessionBiller) Location() *time.Location {
	return b.location
}

// AnchorStart reconstructs the start instant of a session from its wall-clock start. The
// start is placed on now's date, or on the previous day when that would put it after end.
// Sessions longer than 24 hours cannot be represented.
func (b SessionBiller) AnchorStart(start domain.TimeOfDay, end, now time.Time) time.Time {
	today := now.In(b.location)
	anchored := start.On(today)
	if end.Before(anchored) {
		anchored = start.On(today.AddDate(0, 0, -1))
	}
	return anchored
}

// Bill prices a session that started at the wall-clock time start and ends at end.
func (b SessionBiller) Bill(tariff domain.TableTariff, start domain.TimeOfDay, end, now time.Time) domain.ItemizedBill {
	return b.BillSpan(tariff, b.AnchorStart(start, end, now), end)
}

// BillSpan prices [from, to). Each line amount is rounded to a whole currency unit and the
// total is the sum of the rounded lines.
func (b SessionBiller) BillSpan(tariff domain.TableTariff, from, to time.Time) domain.ItemizedBill {
	bill := domain.ItemizedBill{Lines: []domain.BillLine{}}
	if !to.After(from) {
		return bill
	}
	for _, seg := range b.segments(tariff, from, to) {
		seconds := seg.to.Sub(seg.from).Seconds()
		amount := domain.Money(math.Round(float64(seg.rate) * seconds / 3600))
		label := seg.label
		if !seg.matched {
			label = domain.UnlabeledPeriod
		}
		bill.Lines = append(bill.Lines, domain.BillLine{
			Label:  label,
			Hours:  math.Round(seconds/36) / 100,
			Rate:   seg.rate,
			Amount: amount,
			From:   seg.from,
			To:     seg.to,
		})
		bill.Total += amount
	}
	return bill
}

type billSegment struct {
	from    time.Time
	to      time.Time
	rate    domain.Money
	label   string
	matched bool
}

// segments walks [from, to) in contiguous pieces that each sit under a single rate. Adjacent
// pieces with the same rate and label are merged.
func (b SessionBiller) segments(tariff domain.TableTariff, from, to time.Time) []billSegment {
	var out []billSegment
	current := from.In(b.location)
	end := to.In(b.location)
	for current.Before(end) {
		idx := WindowAt(tariff, domain.TimeOfDayAt(current))
		seg := billSegment{from: current, rate: tariff.DefaultHourlyRate}
		if idx >= 0 {
			window := tariff.Windows[idx]
			seg.rate, seg.label, seg.matched = window.HourlyRate, window.Label, true
		}

		next := nextBoundary(tariff, idx, current)
		if next.After(end) {
			next = end
		}
		seg.to = next

		if n := len(out); n > 0 && out[n-1].matched == seg.matched && out[n-1].rate == seg.rate && out[n-1].label == seg.label {
			out[n-1].to = next
		} else {
			out = append(out, seg)
		}
		current = next
	}
	return out
}

func nextBoundary(tariff domain.TableTariff, idx int, current time.Time) time.Time {
	y, m, d := current.Date()
	t := current.Hour()*60 + current.Minute()
	var next time.Time
	if delta := minutesToBoundary(tariff, idx, t); delta > 0 {
		next = time.Date(y, m, d, 0, t+delta, 0, 0, current.Location())
	} else {
		next = time.Date(y, m, d, current.Hour()+1, 0, 0, 0, current.Location())
	}
	// Wall-clock arithmetic can stall across a DST gap.
	if !next.After(current) {
		next = current.Add(time.Minute)
	}
	return next
}
