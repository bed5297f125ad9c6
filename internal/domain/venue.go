package domain

import "time"

// TableStatus is the stored occupancy state of a billiard table.
type TableStatus string

const (
	// TableStatusEmpty marks a vacant table.
	TableStatusEmpty TableStatus = "empty"
	// TableStatusPlaying marks an occupied table with an open session.
	TableStatusPlaying TableStatus = "playing"
	// TableStatusMaintenance marks a table taken out of service.
	TableStatusMaintenance TableStatus = "maintenance"
)

// FallbackHourlyRate applies when a table has neither a default price nor a legacy hourly price.
const FallbackHourlyRate Money = 100000

// TimePrice is a stored pricing window. Start and end are "HH:mm" strings; end at or before
// start means the window crosses midnight.
type TimePrice struct {
	ID           int64  `json:"id"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	PricePerHour Money  `json:"pricePerHour"`
	Label        string `json:"label"`
}

// Table is a billiard table as stored in the venue document.
type Table struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	Status        TableStatus `json:"status"`
	DefaultPrice  Money       `json:"defaultPrice"`
	TimePrices    []TimePrice `json:"timePrices,omitempty"`
	PricePerHour  Money       `json:"pricePerHour,omitempty"`
	CurrentPlayer string      `json:"currentPlayer,omitempty"`
	StartTime     string      `json:"startTime,omitempty"`
	Duration      int         `json:"duration,omitempty"`
}

// IsVacant reports whether the table can start a session.
func (t Table) IsVacant() bool { return t.Status == TableStatusEmpty }

// IsOccupied reports whether the table has an open session.
func (t Table) IsOccupied() bool { return t.Status == TableStatusPlaying }

// SessionStart parses the wall-clock start of the open session. ok is false when the table
// is not occupied or carries no start time.
func (t Table) SessionStart() (start TimeOfDay, ok bool, err error) {
	if !t.IsOccupied() || t.StartTime == "" {
		return TimeOfDay{}, false, nil
	}
	start, err = ParseTimeOfDay(t.StartTime)
	if err != nil {
		return TimeOfDay{}, false, err
	}
	return start, true, nil
}

// DefaultRate resolves the hourly rate used when no window matches.
func (t Table) DefaultRate() Money {
	switch {
	case t.DefaultPrice > 0:
		return t.DefaultPrice
	case t.PricePerHour > 0:
		return t.PricePerHour
	default:
		return FallbackHourlyRate
	}
}

// Tariff compiles the stored pricing data into a TableTariff. Windows whose times cannot
// be parsed or whose rate is negative are skipped so that billing degrades to the default rate.
func (t Table) Tariff() TableTariff {
	tariff := TableTariff{DefaultHourlyRate: t.DefaultRate()}
	for _, tp := range t.TimePrices {
		start, err := ParseTimeOfDay(tp.StartTime)
		if err != nil {
			continue
		}
		end, err := ParseTimeOfDay(tp.EndTime)
		if err != nil {
			continue
		}
		if tp.PricePerHour < 0 {
			continue
		}
		tariff.Windows = append(tariff.Windows, PricingWindow{
			StartOfDay: start,
			EndOfDay:   end,
			HourlyRate: tp.PricePerHour,
			Label:      tp.Label,
		})
	}
	return tariff
}

// PricingWindow is a labelled time-of-day interval with an hourly rate.
type PricingWindow struct {
	StartOfDay TimeOfDay
	EndOfDay   TimeOfDay
	HourlyRate Money
	Label      string
}

// Wraps reports whether the window crosses midnight.
func (w PricingWindow) Wraps() bool {
	return w.EndOfDay.Minutes() <= w.StartOfDay.Minutes()
}

// TableTariff is the full pricing configuration of one table. Windows are evaluated in
// declared order and the first match wins.
type TableTariff struct {
	DefaultHourlyRate Money
	Windows           []PricingWindow
}

// UserRole is the access level of a staff account.
type UserRole string

const (
	// UserRoleOwner can administer the venue.
	UserRoleOwner UserRole = "owner"
	// UserRoleEmployee runs tables and orders.
	UserRoleEmployee UserRole = "employee"
)

// UserAccount is a staff login stored in the venue document.
type UserAccount struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Password  string   `json:"password"`
	Role      UserRole `json:"role"`
	FullName  string   `json:"fullName,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty"`
}

// Actor identifies the staff member performing an operation.
type Actor struct {
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

// Name returns the display value recorded in createdBy fields.
func (a Actor) Name() string {
	if a.Username == "" {
		return "unknown"
	}
	return a.Username
}

// StaffSession is an authenticated login.
type StaffSession struct {
	Actor     Actor     `json:"actor"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
