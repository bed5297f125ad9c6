package domain

import "time"

// UnlabeledPeriod is the line label used when no pricing window matched.
const UnlabeledPeriod = "Mặc định"

// BillLine is one priced sub-interval of a session.
type BillLine struct {
	Label  string    `json:"period"`
	Hours  float64   `json:"hours"`
	Rate   Money     `json:"price"`
	Amount Money     `json:"amount"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

// ItemizedBill is the table-time charge for a session. Total is the sum of the rounded line amounts.
type ItemizedBill struct {
	Lines []BillLine `json:"details"`
	Total Money      `json:"total"`
}

// Settlement is the proposed checkout for one session, held until it is confirmed or cancelled.
type Settlement struct {
	Key          string       `json:"settlementId"`
	TableID      int64        `json:"tableId"`
	TableName    string       `json:"tableName"`
	SessionStart time.Time    `json:"sessionStart"`
	SessionEnd   time.Time    `json:"sessionEnd"`
	TableBill    ItemizedBill `json:"tableBill"`
	Orders       []Order      `json:"orders"`
	OrderIDs     []int64      `json:"orderIds"`
	OrderTotal   Money        `json:"orderTotal"`
	Total        Money        `json:"total"`
}

// CommitResult reports the outcome of a settlement commit. Replayed is true when an earlier
// commit with the same key was found and returned unchanged. Warnings list persistence steps
// that failed after revenue had been recorded.
type CommitResult struct {
	Revenue  RevenueRecord `json:"revenue"`
	Settled  []int64       `json:"settledOrderIds"`
	Replayed bool          `json:"replayed"`
	Warnings []string      `json:"warnings,omitempty"`
}

// TablePreview is the live view of an occupied table.
type TablePreview struct {
	Table          Table     `json:"table"`
	CurrentRate    Money     `json:"currentRate"`
	CurrentLabel   string    `json:"currentLabel,omitempty"`
	ElapsedMinutes int       `json:"elapsedMinutes"`
	RunningTotal   Money     `json:"runningTotal"`
	ObservedAt     time.Time `json:"observedAt"`
}

// RevenuePeriod sums revenue between two instants, From inclusive and To exclusive.
type RevenuePeriod struct {
	Label       string    `json:"label"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	Total       Money     `json:"total"`
	TableTotal  Money     `json:"tableTotal"`
	OrderTotal  Money     `json:"orderTotal"`
	Settlements int       `json:"settlements"`
}

// RevenueSummary groups the dashboard figures.
type RevenueSummary struct {
	Today         RevenuePeriod   `json:"today"`
	LastSevenDays []RevenuePeriod `json:"lastSevenDays"`
	MonthToDate   RevenuePeriod   `json:"monthToDate"`
}
