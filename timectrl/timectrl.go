package timectrl

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("scheduler already started")
	// ErrStopped is returned by Start once a scheduler has been stopped.
	// Schedulers are single-use.
	ErrStopped = errors.New("scheduler stopped")
	// ErrInvalidInterval is returned for non-positive tick intervals.
	ErrInvalidInterval = errors.New("tick interval must be positive")
)

// Clock is an interface for reading the current time so components can be
// driven by a fake clock in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Scheduler invokes a callback repeatedly until stopped. Stop is idempotent
// and no callback starts after it returns.
type Scheduler interface {
	Start(fn func(time.Time)) error
	Stop()
	Running() bool
}

// Observer receives scheduling measurements. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveTickLag(d time.Duration)
	IncDroppedTicks()
	SetQueueDepth(n int)
}

// TickScheduler fires at a fixed wall-clock interval. When Dispatch is set,
// each tick is handed to it (typically Dispatcher.Post) so that callbacks run
// on the serialized loop goroutine; otherwise callbacks run on the ticker
// goroutine.
//
// A tick that is still queued when the next one fires is dropped rather than
// queued twice.
type TickScheduler struct {
	Interval time.Duration
	Dispatch func(func()) bool
	Observer Observer

	mu      sync.Mutex
	started bool
	quit    chan struct{}
	done    chan struct{}

	stopped atomic.Bool
	pending atomic.Bool
	once    sync.Once
}

// NewTickScheduler returns a scheduler firing every interval.
func NewTickScheduler(interval time.Duration, dispatch func(func()) bool) *TickScheduler {
	return &TickScheduler{Interval: interval, Dispatch: dispatch}
}

// Start begins ticking. It returns immediately.
func (s *TickScheduler) Start(fn func(time.Time)) error {
	if s.Interval <= 0 {
		return ErrInvalidInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped.Load() {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.quit = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(fn)
	return nil
}

func (s *TickScheduler) run(fn func(time.Time)) {
	defer close(s.done)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case fired := <-ticker.C:
			if s.Dispatch == nil {
				fn(fired)
				continue
			}
			if !s.pending.CompareAndSwap(false, true) {
				if s.Observer != nil {
					s.Observer.IncDroppedTicks()
				}
				continue
			}
			ok := s.Dispatch(func() {
				s.pending.Store(false)
				if s.stopped.Load() {
					return
				}
				if s.Observer != nil {
					s.Observer.ObserveTickLag(time.Since(fired))
				}
				fn(fired)
			})
			if !ok {
				// Dispatcher closed; nothing will ever run our ticks again.
				s.pending.Store(false)
				return
			}
		}
	}
}

// Stop halts the ticker and waits for its goroutine to exit. Ticks already
// queued on the dispatcher become no-ops. When Dispatch is nil, Stop must not
// be called from inside the callback.
func (s *TickScheduler) Stop() {
	s.once.Do(func() {
		s.stopped.Store(true)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if !started {
			return
		}
		close(s.quit)
		<-s.done
	})
}

// Running reports whether the scheduler has been started and not stopped.
func (s *TickScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.stopped.Load()
}

// ManualScheduler is a deterministic Scheduler for tests and headless
// rendering. Time only moves when Advance is called.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	step    time.Duration
	fn      func(time.Time)
	stopped bool
	ticks   uint64
}

// NewManualScheduler returns a scheduler whose first tick is start+step.
func NewManualScheduler(start time.Time, step time.Duration) *ManualScheduler {
	return &ManualScheduler{now: start, step: step}
}

// Start registers the callback.
func (s *ManualScheduler) Start(fn func(time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.fn != nil {
		return ErrAlreadyStarted
	}
	s.fn = fn
	return nil
}

// Advance runs up to n ticks synchronously and returns how many ran. It stops
// early if the callback stops the scheduler.
func (s *ManualScheduler) Advance(n int) int {
	ran := 0
	for i := 0; i < n; i++ {
		s.mu.Lock()
		if s.stopped || s.fn == nil {
			s.mu.Unlock()
			return ran
		}
		s.now = s.now.Add(s.step)
		s.ticks++
		fn, now := s.fn, s.now
		s.mu.Unlock()

		fn(now)
		ran++
	}
	return ran
}

// Stop discards the callback. Later Advance calls do nothing.
func (s *ManualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.fn = nil
}

// Running reports whether a callback is registered.
func (s *ManualScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fn != nil && !s.stopped
}

// Now returns the scheduler's current time. Implements Clock.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Ticks returns the number of callbacks run.
func (s *ManualScheduler) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}
