package app

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/callstate/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Observer receives every committed snapshot.
type Observer func(*domain.State)

type observer struct {
	id     uint64
	fn     Observer
	active atomic.Bool
}

// Subscription detaches an observer. Unsubscribe is idempotent.
type Subscription struct {
	store *Store
	obs   *observer
}

func (s Subscription) Unsubscribe() {
	if s.store == nil || s.obs == nil {
		return
	}
	s.store.unsubscribe(s.obs)
}

// Store holds the single immutable snapshot. Apply serializes mutations
// and each Apply produces exactly one notification, even when the mutator
// changed nothing.
//
// Notifications are delivered in commit order by whichever goroutine is
// already dispatching, so an Apply issued from inside an observer (or
// concurrently from another goroutine) returns before its own notification
// has been delivered.
type Store struct {
	mu          sync.Mutex
	state       *domain.State
	pending     []*domain.State
	dispatching bool

	obsMu     sync.RWMutex
	observers []*observer
	nextObs   uint64

	caps domain.Capacities
	now  func() time.Time
	log  zerolog.Logger
}

type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithStoreLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) { s.log = l.With().Str("module", "app.store").Logger() }
}

func NewStore(userID domain.Identifier, caps domain.Capacities, opts ...StoreOption) *Store {
	s := &Store{
		state: domain.NewState(userID, caps),
		caps:  caps,
		now:   time.Now,
		log:   log.With().Str("module", "app.store").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Current() *domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Capacities() domain.Capacities { return s.caps }

func (s *Store) Now() time.Time { return s.now() }

// Apply runs fn against a copy-on-write draft of the current snapshot and
// publishes the result. fn must not retain the draft or call Apply.
func (s *Store) Apply(fn func(d *Draft)) *domain.State {
	next, drain := s.commit(fn)
	if drain {
		s.drain()
	}
	return next
}

func (s *Store) commit(fn func(d *Draft)) (*domain.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := newDraft(s.state, s.caps, s.now())
	fn(d)
	next := d.next
	s.state = next
	s.pending = append(s.pending, next)
	if s.dispatching {
		return next, false
	}
	s.dispatching = true
	return next, true
}

func (s *Store) drain() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.dispatching = false
			s.mu.Unlock()
			return
		}
		st := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		s.notify(st)
	}
}

func (s *Store) notify(st *domain.State) {
	s.obsMu.RLock()
	obs := slices.Clone(s.observers)
	s.obsMu.RUnlock()

	for _, o := range obs {
		if !o.active.Load() {
			continue
		}
		s.deliver(o, st)
	}
}

func (s *Store) deliver(o *observer, st *domain.State) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Uint64("observer", o.id).Msg("observer panicked")
		}
	}()
	o.fn(st)
}

// Subscribe registers fn. Observers run in registration order.
func (s *Store) Subscribe(fn Observer) Subscription {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.nextObs++
	o := &observer{id: s.nextObs, fn: fn}
	o.active.Store(true)
	s.observers = append(s.observers, o)
	return Subscription{store: s, obs: o}
}

func (s *Store) unsubscribe(o *observer) {
	if !o.active.CompareAndSwap(true, false) {
		return
	}
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = slices.DeleteFunc(s.observers, func(x *observer) bool { return x == o })
}

func (s *Store) ObserverCount() int {
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	return len(s.observers)
}
