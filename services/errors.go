package services

import (
	"errors"
	"math"
)

// Error taxonomy surfaced to collaborators. Handlers map these to HTTP statuses
// with errors.Is; services wrap them with context via fmt.Errorf("...: %w", ...).
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnknownUser         = errors.New("unknown user")
	ErrUnknownPath         = errors.New("unknown path")
	ErrUnknownLevel        = errors.New("level table empty or inconsistent")
	ErrMissingParameter    = errors.New("missing parameter")
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	ErrRefreshInFlight     = errors.New("refresh already in flight")
)

// ParseAmount validates a raw numeric amount from an external collaborator and
// converts it to ledger units. XP is whole units only: non-finite, fractional,
// and out-of-int64-range values are contract violations, never truncated.
func ParseAmount(raw float64) (int64, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, ErrInvalidAmount
	}
	if raw != math.Trunc(raw) {
		return 0, ErrInvalidAmount
	}
	// int64 bounds in float64: MinInt64 is exact, MaxInt64 rounds up to 2^63.
	if raw < math.MinInt64 || raw >= math.MaxInt64 {
		return 0, ErrInvalidAmount
	}
	return int64(raw), nil
}
