package state

import (
	"log/slog"
	"sync"

	"github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/metrics"
)

// Listener receives a snapshot after each state transition.
type Listener func(Record)

type subscriber struct {
	fn     Listener
	active bool
}

// Store owns one Record and notifies subscribers when it changes.
// All methods are safe for concurrent use. Listeners run without the store
// lock held and may update the store.
//
// Transitions are delivered one at a time in the order they were applied.
// While one goroutine is delivering, transitions made by other goroutines,
// or by listeners, are queued and delivered by that goroutine before it
// returns, so the last notification always carries the current record.
type Store struct {
	scheduler Scheduler
	logger    *slog.Logger
	metrics   *metrics.Collector

	persister Persister
	name      string

	mu        sync.Mutex
	state     Record
	pending   []Record
	scheduled bool
	subs      []*subscriber

	outbox     []delivery
	delivering bool
}

// delivery is one applied transition waiting to be saved and announced.
type delivery struct {
	snap Record
	subs []*subscriber
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records flushes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) {
		s.metrics = c
	}
}

// WithPersistence loads the record saved under name when the store is built
// and saves every transition back to p.
func WithPersistence(p Persister, name string) Option {
	return func(s *Store) {
		s.persister = p
		s.name = name
	}
}

// NewStore creates a Store holding a copy of initial. Batched updates are
// flushed through sched; a nil sched uses a shared frame scheduler.
func NewStore(initial Record, sched Scheduler, opts ...Option) *Store {
	s := &Store{
		scheduler: sched,
		logger:    slog.Default().With("component", "state"),
		state:     initial.Clone(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scheduler == nil {
		s.scheduler = defaultScheduler()
	}
	if s.persister != nil {
		saved, err := s.persister.Load(s.name)
		if err != nil {
			s.diagnose(errors.New("S002").WithDetailf("load %q", s.name).Wrap(err))
		} else if saved != nil {
			s.state = s.state.Merge(saved)
		}
	}
	return s
}

// Get returns a shallow copy of the current record.
func (s *Store) Get() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// SetImmediate merges partial into the record and notifies subscribers
// before returning, unless another delivery is in progress; the delivering
// goroutine then notifies them after the transitions queued before this
// one. A nil partial is rejected with a diagnostic.
func (s *Store) SetImmediate(partial Record) {
	if partial == nil {
		s.diagnose(errors.New("S001").WithDetail("SetImmediate called with a nil record"))
		return
	}
	s.mu.Lock()
	s.state = s.state.Merge(partial)
	s.deliver()
}

// SetBatched queues partial for the next flush. The first call since the
// last flush schedules exactly one flush; later calls only extend the queue.
func (s *Store) SetBatched(partial Record) {
	if partial == nil {
		s.diagnose(errors.New("S001").WithDetail("SetBatched called with a nil record"))
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, partial.Clone())
	schedule := !s.scheduled
	s.scheduled = true
	s.mu.Unlock()

	if schedule {
		s.scheduler.Schedule(s.Flush)
	}
}

// Pending returns the number of queued partial updates.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush folds the queued partials left to right into one transition and
// notifies the subscribers present when the flush began, in subscription
// order. It is what the scheduler runs; calling it directly is allowed.
func (s *Store) Flush() {
	s.mu.Lock()
	s.scheduled = false
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	next := s.state
	for _, partial := range s.pending {
		next = next.Merge(partial)
	}
	size := len(s.pending)
	s.pending = nil
	s.state = next
	s.metrics.RecordFlush(size)
	s.deliver()
}

// Subscribe registers fn for notifications and returns a function that
// removes it. The returned function is idempotent.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	sub := &subscriber{fn: fn, active: true}
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !sub.active {
			return
		}
		sub.active = false
		for i, other := range s.subs {
			if other == sub {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				break
			}
		}
	}
}

// Subscribers returns the number of registered listeners.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Teardown removes every subscriber and drops queued updates. It may be
// called more than once.
func (s *Store) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		sub.active = false
	}
	s.subs = nil
	s.pending = nil
}

// snapshotSubs copies the subscriber list. Callers hold s.mu.
func (s *Store) snapshotSubs() []*subscriber {
	subs := make([]*subscriber, len(s.subs))
	copy(subs, s.subs)
	return subs
}

// deliver queues the current record for the present subscribers and, when
// no other goroutine is delivering, drains the queue. Callers hold s.mu;
// deliver releases it.
func (s *Store) deliver() {
	s.outbox = append(s.outbox, delivery{snap: s.state.Clone(), subs: s.snapshotSubs()})
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	s.mu.Unlock()

	drained := false
	defer func() {
		// A panicking listener must not leave the store stuck in delivery.
		if !drained {
			s.mu.Lock()
			s.delivering = false
			s.mu.Unlock()
		}
	}()
	for {
		s.mu.Lock()
		if len(s.outbox) == 0 {
			s.delivering = false
			s.mu.Unlock()
			drained = true
			return
		}
		next := s.outbox[0]
		s.outbox[0] = delivery{}
		s.outbox = s.outbox[1:]
		s.mu.Unlock()

		s.commit(next.snap, next.subs)
	}
}

func (s *Store) commit(snap Record, subs []*subscriber) {
	if s.persister != nil {
		if err := s.persister.Save(s.name, snap); err != nil {
			s.diagnose(errors.New("S002").WithDetailf("save %q", s.name).Wrap(err))
		}
	}
	for _, sub := range subs {
		s.mu.Lock()
		active := sub.active
		s.mu.Unlock()
		if active {
			sub.fn(snap.Clone())
		}
	}
}

func (s *Store) diagnose(err *errors.Error) {
	err.Log(s.logger)
}
