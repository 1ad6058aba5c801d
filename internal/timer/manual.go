package timer

import (
	"context"
	"sort"
	"sync"
)

type wakeup struct {
	at   int64
	seq  int
	wake func()
}

// ManualTimer only moves when Advance is called. Due wakeups run on the
// caller's goroutine, in timestamp then registration order.
type ManualTimer struct {
	mu      sync.Mutex
	now     int64
	seq     int
	pending []wakeup
}

func NewManualTimer(start int64) *ManualTimer {
	return &ManualTimer{now: start}
}

func (m *ManualTimer) CurrentTimestamp(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now, nil
}

func (m *ManualTimer) SetWakeup(ctx context.Context, at int64, wake func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.pending = append(m.pending, wakeup{at: at, seq: m.seq, wake: wake})
	return nil
}

// Advance moves time forward by delta and runs every wakeup that comes due,
// including ones registered by the callbacks themselves. It returns how many
// ran.
func (m *ManualTimer) Advance(delta int64) int {
	m.mu.Lock()
	m.now += delta
	fired := 0
	for {
		next, ok := m.popDue()
		if !ok {
			break
		}
		m.mu.Unlock()
		next.wake()
		fired++
		m.mu.Lock()
	}
	m.mu.Unlock()
	return fired
}

// popDue removes the earliest due wakeup. Caller holds m.mu.
func (m *ManualTimer) popDue() (wakeup, bool) {
	sort.Slice(m.pending, func(i, j int) bool {
		if m.pending[i].at != m.pending[j].at {
			return m.pending[i].at < m.pending[j].at
		}
		return m.pending[i].seq < m.pending[j].seq
	})
	if len(m.pending) == 0 || m.pending[0].at > m.now {
		return wakeup{}, false
	}
	w := m.pending[0]
	m.pending = m.pending[1:]
	return w, true
}

func (m *ManualTimer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
