// Package scheduler implements the engine's task scheduler: a
// single logical FIFO-by-deadline queue multiplexed across a bounded pool
// of worker goroutines, used for connection-pool cleanup and WebSocket
// ping scheduling.
package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Task is one schedulable unit of work.
type Task struct {
	Queue string // groups tasks for the (queue, name) dedup rule
	Name  string
	Run   func()
}

type taskKey struct{ queue, name string }

type scheduled struct {
	key      taskKey
	deadline time.Time
	seq      uint64
	run      func()
	canceled bool
	index    int // heap.Interface bookkeeping
}

// pqueue is a min-heap by (deadline, seq), giving FIFO order among tasks
// with equal deadlines.
type pqueue []*scheduled

func (q pqueue) Len() int { return len(q) }
func (q pqueue) Less(i, j int) bool {
	if !q[i].deadline.Equal(q[j].deadline) {
		return q[i].deadline.Before(q[j].deadline)
	}
	return q[i].seq < q[j].seq
}
func (q pqueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *pqueue) Push(x any) {
	s := x.(*scheduled)
	s.index = len(*q)
	*q = append(*q, s)
}
func (q *pqueue) Pop() any {
	old := *q
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	s.index = -1
	*q = old[:n-1]
	return s
}

// Scheduler runs Tasks at their deadlines on a bounded pool of worker
// goroutines.
type Scheduler struct {
	Clock clockwork.Clock

	mu       sync.Mutex
	byKey    map[taskKey]*scheduled
	queue    pqueue
	nextSeq  uint64
	wake     chan struct{}
	shutdown chan struct{}
	workers  chan struct{} // semaphore bounding concurrent Task.Run calls
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New returns a Scheduler backed by clock (use clockwork.NewRealClock()
// in production, a TaskFaker's clock in tests) with at most maxWorkers
// tasks running concurrently.
func New(clock clockwork.Clock, maxWorkers int) *Scheduler {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	s := &Scheduler{
		Clock:    clock,
		byKey:    make(map[taskKey]*scheduled),
		wake:     make(chan struct{}, 1),
		shutdown: make(chan struct{}),
		workers:  make(chan struct{}, maxWorkers),
	}
	s.wg.Add(1)
	go s.dispatchLoop()
	return s
}

// Schedule runs t.Run after delay. If a task with the same (Queue, Name)
// is already pending, its deadline is replaced rather than the task
// running twice.
func (s *Scheduler) Schedule(t Task, delay time.Duration) {
	key := taskKey{t.Queue, t.Name}
	deadline := s.Clock.Now().Add(delay)

	s.mu.Lock()
	if existing, ok := s.byKey[key]; ok {
		existing.deadline = deadline
		existing.run = t.Run
		heap.Fix(&s.queue, existing.index)
	} else {
		sc := &scheduled{key: key, deadline: deadline, seq: s.nextSeq, run: t.Run}
		s.nextSeq++
		s.byKey[key] = sc
		heap.Push(&s.queue, sc)
	}
	s.mu.Unlock()
	s.nudge()
}

// Cancel removes a pending (queue, name) task if it hasn't run yet.
func (s *Scheduler) Cancel(queue, name string) {
	key := taskKey{queue, name}
	s.mu.Lock()
	if sc, ok := s.byKey[key]; ok {
		sc.canceled = true
		delete(s.byKey, key)
		if sc.index >= 0 {
			heap.Remove(&s.queue, sc.index)
		}
	}
	s.mu.Unlock()
}

func (s *Scheduler) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		var sleep time.Duration
		var ready *scheduled
		if s.queue.Len() > 0 {
			next := s.queue[0]
			now := s.Clock.Now()
			if !next.deadline.After(now) {
				ready = heap.Pop(&s.queue).(*scheduled)
				delete(s.byKey, ready.key)
			} else {
				sleep = next.deadline.Sub(now)
			}
		} else {
			sleep = 24 * time.Hour
		}
		s.mu.Unlock()

		if ready != nil {
			s.runTask(ready)
			continue
		}

		timer := s.Clock.NewTimer(sleep)
		select {
		case <-timer.Chan():
		case <-s.wake:
			timer.Stop()
		case <-s.shutdown:
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) runTask(sc *scheduled) {
	if sc.canceled {
		return
	}
	select {
	case s.workers <- struct{}{}:
	case <-s.shutdown:
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.workers }()
		sc.run()
	}()
}

// Shutdown cancels every pending task and unblocks the dispatch loop. It
// does not wait for in-flight tasks to finish; call Wait for that.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.queue = nil
		s.byKey = make(map[taskKey]*scheduled)
		s.mu.Unlock()
		close(s.shutdown)
	})
}

// Wait blocks until the dispatch loop and all in-flight tasks have
// returned, for use after Shutdown.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
