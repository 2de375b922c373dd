package scheduler

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// TaskFaker drives a Scheduler under an explicitly-controlled virtual
// clock, for deterministic tests of deadline ordering and dedup.
type TaskFaker struct {
	clock *clockwork.FakeClock
	sched *Scheduler
}

// NewTaskFaker returns a TaskFaker with its own Scheduler already running
// against the fake clock.
func NewTaskFaker(maxWorkers int) *TaskFaker {
	clock := clockwork.NewFakeClock()
	return &TaskFaker{clock: clock, sched: New(clock, maxWorkers)}
}

// Scheduler returns the faker's Scheduler for Schedule/Cancel calls.
func (f *TaskFaker) Scheduler() *Scheduler { return f.sched }

// Advance moves the virtual clock forward by d, waking any Scheduler
// whose next deadline has now arrived.
func (f *TaskFaker) Advance(d time.Duration) {
	f.clock.Advance(d)
}

// BlockUntilWaiting blocks until the dispatch loop has n goroutines
// parked on the fake clock (i.e. it has computed its next sleep and is
// waiting for Advance), so a test can call Advance without a race.
func (f *TaskFaker) BlockUntilWaiting(n int) {
	f.clock.BlockUntil(n)
}
