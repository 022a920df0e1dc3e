package ledger

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a transaction or holding does not exist.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ValidationError rejects bad input before any mutation: empty ticker,
// non-positive shares or price, or a sell exceeding the current position.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConsistencyError means the transaction log itself is corrupt: replay
// produced negative shares or divided by a zero-share position. Distinct
// from ValidationError because it signals a prior integrity failure, not
// bad user input.
type ConsistencyError struct {
	PortfolioID string
	Ticker      string
	Reason      string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent ledger for %s/%s: %s", e.PortfolioID, e.Ticker, e.Reason)
}

// RowError is one failed CSV row. Row errors never abort the batch; they
// accumulate alongside the rows that imported.
type RowError struct {
	Line   int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}
