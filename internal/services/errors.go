package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/huanth/bi-a-manager/internal/repositories"
)

var (
	// ErrSessionInvalidInput signals the caller provided invalid data.
	ErrSessionInvalidInput = errors.New("session: invalid input")
	// ErrSessionNotFound indicates the table could not be located.
	ErrSessionNotFound = errors.New("session: table not found")
	// ErrSessionInvalidState indicates the table is not in a state that allows the transition.
	ErrSessionInvalidState = errors.New("session: invalid state transition")
	// ErrSessionInconsistent indicates stored table data contradicts its status, such as an
	// occupied table without a start time.
	ErrSessionInconsistent = errors.New("session: inconsistent table data")
	// ErrSettlementNotFound indicates no settlement is awaiting confirmation for the table.
	ErrSettlementNotFound = errors.New("settlement: no pending settlement")
	// ErrSettlementConflict indicates another commit for the same session is running or the
	// settlement no longer matches the table.
	ErrSettlementConflict = errors.New("settlement: conflict")

	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")

	// ErrRevenueInvalidRange signals an empty or inverted time range.
	ErrRevenueInvalidRange = errors.New("revenue: invalid range")

	// ErrAuthInvalidCredentials is returned for unknown users and wrong passwords alike.
	ErrAuthInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrExportNotConfigured indicates no export bucket is configured.
	ErrExportNotConfigured = errors.New("export: not configured")

	// ErrStoreUnavailable indicates the venue store could not be read or written.
	ErrStoreUnavailable = errors.New("store: unavailable")
)

// storeError classifies a repository failure. Context errors pass through so callers can
// tell cancellation apart from outages.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsConflict() {
		return fmt.Errorf("%w: %s: %w", ErrSettlementConflict, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
