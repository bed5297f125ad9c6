package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Money is an amount in the smallest unit of the venue currency. VND has no minor unit,
// so one Money is one dong.
type Money int64

// UnmarshalJSON accepts integral and fractional JSON numbers; fractions round half away from zero.
// Older documents carry prices written by a floating point client.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("domain: money must be a number: %w", err)
	}
	if v, err := number.Int64(); err == nil {
		*m = Money(v)
		return nil
	}
	f, err := number.Float64()
	if err != nil {
		return fmt.Errorf("domain: money must be a number: %w", err)
	}
	*m = Money(math.Round(f))
	return nil
}
