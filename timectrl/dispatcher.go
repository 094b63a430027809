package timectrl

import (
	"context"
	"errors"
	"sync"
)

// ErrDispatcherClosed is returned by Do once the dispatcher has been closed.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher runs posted callbacks one at a time, in post order, on the
// goroutine that calls Run. Every piece of view state is only touched from
// that goroutine.
type Dispatcher struct {
	Observer Observer

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewDispatcher returns an idle dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post queues fn. It reports false when the dispatcher is closed and fn will
// never run.
func (d *Dispatcher) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	depth := len(d.queue)
	d.mu.Unlock()

	if d.Observer != nil {
		d.Observer.SetQueueDepth(depth)
	}
	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Do posts fn and waits for it to finish.
func (d *Dispatcher) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !d.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrDispatcherClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		// Close may race with a callback that was already dequeued.
		select {
		case <-finished:
			return nil
		default:
			return ErrDispatcherClosed
		}
	}
}

// Run executes callbacks until ctx is cancelled or Close is called. Callbacks
// still queued at that point are discarded.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		batch := d.take()
		for _, fn := range batch {
			if d.isClosed() {
				return nil
			}
			fn()
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			d.Close()
			return ctx.Err()
		case <-d.done:
			return nil
		case <-d.wake:
		}
	}
}

// Close stops the dispatcher. Later Posts are rejected. It is safe to call
// more than once and from inside a callback.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.queue = nil
		d.mu.Unlock()
		close(d.done)
	})
}

// Done is closed once the dispatcher has been closed.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

func (d *Dispatcher) take() []func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	batch := d.queue
	d.queue = nil
	if d.Observer != nil {
		d.Observer.SetQueueDepth(0)
	}
	return batch
}

func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
