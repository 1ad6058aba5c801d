package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/robfig/cron/v3"
)

// onceSchedule activates at a single instant. cron asks for the next
// activation when the entry is added and again after each run; only the
// first answer is real.
type onceSchedule struct {
	at     time.Time
	handed atomic.Bool
}

func (s *onceSchedule) Next(time.Time) time.Time {
	if s.handed.CompareAndSwap(false, true) {
		return s.at
	}
	return time.Time{}
}

// CronTimer is a wall-clock time authority. One tick is one second of Unix
// time and wakeups run on the cron scheduler's goroutines.
type CronTimer struct {
	cron *cron.Cron
	now  func() time.Time

	mu      sync.Mutex
	stopped bool
	log     log.Logger
}

func NewCronTimer() *CronTimer {
	t := &CronTimer{
		cron: cron.New(),
		now:  time.Now,
		log:  log.Root().With("component", "timer"),
	}
	t.cron.Start()
	return t
}

func (t *CronTimer) CurrentTimestamp(context.Context) (int64, error) {
	return t.now().Unix(), nil
}

func (t *CronTimer) SetWakeup(ctx context.Context, at int64, wake func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return ErrStopped
	}

	var id cron.EntryID
	var once sync.Once
	id = t.cron.Schedule(&onceSchedule{at: time.Unix(at, 0)}, cron.FuncJob(func() {
		once.Do(func() {
			// id is assigned under t.mu
			t.mu.Lock()
			entry := id
			t.mu.Unlock()
			t.cron.Remove(entry)
			wake()
		})
	}))
	t.log.Debug("wakeup registered", "at", at, "entry", id)
	return nil
}

// Stop cancels pending wakeups and waits for running ones to return.
func (t *CronTimer) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	t.mu.Unlock()

	select {
	case <-t.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
