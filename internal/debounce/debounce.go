// Package debounce coalesces rapid writes to the same key into one write of
// the last value.
package debounce

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultWindow is how long a key must stay quiet before its value is written.
const DefaultWindow = 500 * time.Millisecond

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("debounce: queue closed")

// WriteFunc performs the actual write for a key.
type WriteFunc[K comparable, V any] func(ctx context.Context, key K, value V) error

type entry[V any] struct {
	value V
	gen   uint64
	timer *time.Timer
}

// Queue is a last-value-wins write queue. Each Push restarts the key's
// window; when the window expires only the latest value is written.
type Queue[K comparable, V any] struct {
	window  time.Duration
	write   WriteFunc[K, V]
	onError func(K, error)

	mu      sync.Mutex
	pending map[K]*entry[V]
	gen     uint64
	closed  bool

	writeMu sync.Mutex
	written map[K]uint64
	writes  sync.WaitGroup
}

// New creates a queue. A non-positive window means DefaultWindow. onError,
// if non-nil, receives failures of timer-triggered writes.
func New[K comparable, V any](window time.Duration, write WriteFunc[K, V], onError func(K, error)) *Queue[K, V] {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Queue[K, V]{
		window:  window,
		write:   write,
		onError: onError,
		pending: make(map[K]*entry[V]),
		written: make(map[K]uint64),
	}
}

// Window returns the configured debounce window.
func (q *Queue[K, V]) Window() time.Duration {
	return q.window
}

// Push schedules value to be written for key, replacing any value still
// waiting in the window.
func (q *Queue[K, V]) Push(key K, value V) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}

	q.gen++
	gen := q.gen
	if e, ok := q.pending[key]; ok {
		e.timer.Stop()
	}
	q.pending[key] = &entry[V]{
		value: value,
		gen:   gen,
		timer: time.AfterFunc(q.window, func() { q.fire(key, gen) }),
	}
	return nil
}

// Pending reports whether key has a value waiting to be written.
func (q *Queue[K, V]) Pending(key K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[key]
	return ok
}

// Len returns the number of keys waiting to be written.
func (q *Queue[K, V]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue[K, V]) fire(key K, gen uint64) {
	q.mu.Lock()
	e, ok := q.pending[key]
	if !ok || e.gen != gen {
		q.mu.Unlock()
		return
	}
	delete(q.pending, key)
	q.writes.Add(1)
	q.mu.Unlock()

	defer q.writes.Done()
	if err := q.do(context.Background(), key, e); err != nil && q.onError != nil {
		q.onError(key, err)
	}
}

// do writes e unless a newer value for the key has already been written.
func (q *Queue[K, V]) do(ctx context.Context, key K, e *entry[V]) error {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()
	if q.written[key] > e.gen {
		return nil
	}
	if err := q.write(ctx, key, e.value); err != nil {
		return err
	}
	q.written[key] = e.gen
	return nil
}

// Flush writes every pending value now and waits for writes already in
// progress. Errors from the flushed writes are joined. Values not written
// before ctx is done stay queued with a fresh window.
func (q *Queue[K, V]) Flush(ctx context.Context) error {
	q.mu.Lock()
	batch := make(map[K]*entry[V], len(q.pending))
	for k, e := range q.pending {
		e.timer.Stop()
		batch[k] = e
	}
	q.pending = make(map[K]*entry[V])
	q.mu.Unlock()

	var errs []error
	for k, e := range batch {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		delete(batch, k)
		if err := q.do(ctx, k, e); err != nil {
			errs = append(errs, err)
		}
	}
	q.requeue(batch)

	done := make(chan struct{})
	go func() {
		q.writes.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

// requeue puts unwritten entries back unless a newer value was pushed for
// the same key in the meantime.
func (q *Queue[K, V]) requeue(batch map[K]*entry[V]) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for k, e := range batch {
		if _, ok := q.pending[k]; ok {
			continue
		}
		key, gen := k, e.gen
		e.timer = time.AfterFunc(q.window, func() { q.fire(key, gen) })
		q.pending[k] = e
	}
}

// Close stops accepting new values and flushes the pending ones.
func (q *Queue[K, V]) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return q.Flush(ctx)
}
