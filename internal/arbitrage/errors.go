package arbitrage

import (
	"errors"
	"fmt"
)

// ErrDomain marks inputs the pricing math is not defined for.
var ErrDomain = errors.New("domain error")

func domainErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDomain, fmt.Sprintf(format, args...))
}

// InvariantError means the pricing model contradicted itself. It is never
// retried.
type InvariantError struct {
	Check  string
	Detail string
}

func (e *InvariantError) Error() string {
	if e.Detail == "" {
		return "invariant violated: " + e.Check
	}
	return "invariant violated: " + e.Check + " (" + e.Detail + ")"
}

func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
