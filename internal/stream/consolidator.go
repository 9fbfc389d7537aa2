// Package stream merges a dynamic set of lazy sequences into a single
// sequence. One goroutine per source pulls items into a shared channel, so
// emission is fair across sources while per-source order is preserved.
package stream

import (
	"context"
	"errors"
	"sync"
)

// Source is a lazy sequence of T. Next blocks until an item is available;
// done=true means the source is exhausted and the returned value is its
// terminal payload (possibly the zero value). Return is the early
// termination hook.
type Source[T any] interface {
	Next(ctx context.Context) (value T, done bool, err error)
	Return() error
}

// Processor transforms each emitted item. Returning ok=false drops the item.
type Processor[T any] func(T) (T, bool)

type item[T any] struct {
	value T
	err   error
}

// Consolidator fans in items from all added sources. It implements Source[T]
// itself. Sources may be added any time before Close; after Close and once
// every held source is exhausted, Next emits the terminal payload of the
// last source to finish and reports done.
type Consolidator[T any] struct {
	processor Processor[T]

	items chan item[T]

	mu       sync.Mutex
	sources  []Source[T]
	live     int
	closed   bool
	returned bool
	terminal T
	drained  chan struct{}

	cancel context.CancelFunc
	ctx    context.Context
}

var errConsolidatorClosed = errors.New("consolidator is closed")

// NewConsolidator creates a consolidator over the initial sources. A nil
// processor forwards items unchanged.
func NewConsolidator[T any](processor Processor[T], sources ...Source[T]) *Consolidator[T] {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Consolidator[T]{
		processor: processor,
		items:     make(chan item[T]),
		drained:   make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, src := range sources {
		_ = c.Add(src)
	}
	return c
}

// Add registers another source. It fails once Close or Return was called.
func (c *Consolidator[T]) Add(src Source[T]) error {
	c.mu.Lock()
	if c.closed || c.returned {
		c.mu.Unlock()
		return errConsolidatorClosed
	}
	c.sources = append(c.sources, src)
	c.live++
	c.mu.Unlock()

	go c.pump(src)
	return nil
}

// Close signals that no further sources will be added. Pending sources keep
// draining; once the last one is exhausted the consolidator terminates.
func (c *Consolidator[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.live == 0 {
		close(c.drained)
	}
}

// Next returns the next consolidated item. After Close and full drain it
// returns the terminal payload with done=true.
func (c *Consolidator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	for {
		select {
		case it := <-c.items:
			if it.err != nil {
				return zero, false, it.err
			}
			if c.processor != nil {
				value, ok := c.processor(it.value)
				if !ok {
					continue
				}
				return value, false, nil
			}
			return it.value, false, nil
		case <-c.drained:
			// Drain any item raced in before the sources finished.
			select {
			case it := <-c.items:
				if it.err != nil {
					return zero, false, it.err
				}
				if c.processor != nil {
					if value, ok := c.processor(it.value); ok {
						return value, false, nil
					}
					continue
				}
				return it.value, false, nil
			default:
			}
			c.mu.Lock()
			terminal := c.terminal
			c.mu.Unlock()
			return terminal, true, nil
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
	}
}

// Return terminates the consolidator from the consumer side: in-flight reads
// are abandoned and the return hook of every underlying source is invoked.
func (c *Consolidator[T]) Return() error {
	c.mu.Lock()
	if c.returned {
		c.mu.Unlock()
		return nil
	}
	c.returned = true
	c.closed = true
	if c.live == 0 {
		select {
		case <-c.drained:
		default:
			close(c.drained)
		}
	}
	sources := append([]Source[T](nil), c.sources...)
	c.mu.Unlock()

	c.cancel()
	var firstErr error
	for _, src := range sources {
		if err := src.Return(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Consolidator[T]) pump(src Source[T]) {
	for {
		value, done, err := src.Next(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				c.finish(value, false)
				return
			}
			select {
			case c.items <- item[T]{err: err}:
			case <-c.ctx.Done():
			}
			c.finish(value, false)
			return
		}
		if done {
			c.finish(value, true)
			return
		}
		select {
		case c.items <- item[T]{value: value}:
		case <-c.ctx.Done():
			c.finish(value, false)
			return
		}
	}
}

func (c *Consolidator[T]) finish(terminal T, record bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if record {
		c.terminal = terminal
	}
	c.live--
	if c.live == 0 && c.closed {
		select {
		case <-c.drained:
		default:
			close(c.drained)
		}
	}
}
