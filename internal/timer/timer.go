// Package timer provides the time authority that paces bot cycles.
package timer

import (
	"context"
	"errors"
)

var ErrStopped = errors.New("timer stopped")

// TimeAuthority reports the current time in ticks and fires one-shot
// wakeups. A wakeup fires once, at or after its timestamp.
type TimeAuthority interface {
	CurrentTimestamp(ctx context.Context) (int64, error)
	SetWakeup(ctx context.Context, at int64, wake func()) error
}
