package spawn

import "sync"

// Scheduler decides when the launch step of an asynchronous execution runs.
// Schedule must not run task before returning unless the implementation is
// explicitly synchronous (InlineScheduler).
type Scheduler interface {
	Schedule(task func()) error
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(task func()) error

// Schedule calls f(task).
func (f SchedulerFunc) Schedule(task func()) error { return f(task) }

// DeferredScheduler runs every task on its own goroutine. It is the default.
type DeferredScheduler struct{}

// Schedule starts task on a new goroutine.
func (DeferredScheduler) Schedule(task func()) error {
	go task()
	return nil
}

// InlineScheduler runs tasks on the caller's goroutine. With it, an
// asynchronous Run returns only after the child has been launched, which is
// convenient in tests.
type InlineScheduler struct{}

// Schedule runs task immediately.
func (InlineScheduler) Schedule(task func()) error {
	task()
	return nil
}

// SerialScheduler runs tasks one at a time, in submission order, on a single
// worker goroutine. Sharing one across many executions serializes their
// launches without blocking the callers.
type SerialScheduler struct {
	mu        sync.Mutex
	queue     []func()
	wake      chan struct{}
	closed    bool
	done      chan struct{}
	exclusive bool
}

// NewSerialScheduler creates a SerialScheduler and starts its worker. The
// next execution is launched as soon as the previous one has started.
func NewSerialScheduler() *SerialScheduler {
	return newSerialScheduler(false)
}

// NewExclusiveScheduler creates a SerialScheduler that holds the worker until
// each execution has ended, so at most one child runs at a time.
func NewExclusiveScheduler() *SerialScheduler {
	return newSerialScheduler(true)
}

func newSerialScheduler(exclusive bool) *SerialScheduler {
	s := &SerialScheduler{
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		exclusive: exclusive,
	}
	go s.work()
	return s
}

func (s *SerialScheduler) holdsUntilDone() bool {
	return s.exclusive
}

// Schedule queues task. Returns ErrSchedulerClosed after Close.
func (s *SerialScheduler) Schedule(task func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops accepting tasks, runs what is already queued and waits for
// the worker to exit.
func (s *SerialScheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	<-s.done
}

func (s *SerialScheduler) work() {
	defer close(s.done)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			<-s.wake
			continue
		}
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		task()
	}
}
