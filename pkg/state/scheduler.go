package state

import (
	"sync"
	"time"
)

// DefaultFrameInterval is the tick interval of the shared frame scheduler.
const DefaultFrameInterval = 16 * time.Millisecond

// Scheduler runs deferred work on a later tick.
type Scheduler interface {
	// Schedule queues fn to run on the next tick.
	Schedule(fn func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(fn func())

// Schedule calls f(fn).
func (f SchedulerFunc) Schedule(fn func()) {
	f(fn)
}

// FrameScheduler runs queued work on a fixed interval. Everything scheduled
// before a tick runs on that tick, serially, on the scheduler's goroutine.
type FrameScheduler struct {
	interval time.Duration

	mu    sync.Mutex
	queue []func()

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewFrameScheduler starts a scheduler ticking every interval.
// A non-positive interval uses DefaultFrameInterval.
func NewFrameScheduler(interval time.Duration) *FrameScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	s := &FrameScheduler{
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Schedule queues fn for the next tick. Work scheduled after Stop is dropped.
func (s *FrameScheduler) Schedule(fn func()) {
	select {
	case <-s.stop:
		return
	default:
	}
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()
}

// Interval returns the tick interval.
func (s *FrameScheduler) Interval() time.Duration {
	return s.interval
}

// Stop halts the ticker and waits for the current tick to finish.
// Queued work that has not run is discarded.
func (s *FrameScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *FrameScheduler) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *FrameScheduler) tick() {
	s.mu.Lock()
	work := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, fn := range work {
		fn()
	}
}

// ManualScheduler queues work until Tick is called.
type ManualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

// Schedule queues fn for the next Tick.
func (m *ManualScheduler) Schedule(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

// Pending returns the number of queued functions.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Tick runs everything queued so far and reports how many functions ran.
// Work scheduled while ticking waits for the next Tick.
func (m *ManualScheduler) Tick() int {
	m.mu.Lock()
	work := m.queue
	m.queue = nil
	m.mu.Unlock()

	for _, fn := range work {
		fn()
	}
	return len(work)
}

var (
	sharedOnce      sync.Once
	sharedScheduler *FrameScheduler
)

// defaultScheduler returns the process-wide frame scheduler, starting it on
// first use.
func defaultScheduler() Scheduler {
	sharedOnce.Do(func() {
		sharedScheduler = NewFrameScheduler(DefaultFrameInterval)
	})
	return sharedScheduler
}
