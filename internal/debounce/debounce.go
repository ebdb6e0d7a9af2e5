// Package debounce collapses bursts of calls into a single trailing-edge run.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Func is the work a Group runs once a key goes quiet.
type Func[T any] func(ctx context.Context) (T, error)

// Group debounces calls per key. Every Do call for a key restarts the key's
// quiet window and replaces the pending function; when the window elapses
// the most recent function runs once and all callers that joined the burst
// receive its result.
type Group[T any] struct {
	wait time.Duration

	// OnRun, when set, is called before each run with the number of callers
	// that were collapsed into it.
	OnRun func(key string, callers int)

	mu      sync.Mutex
	pending map[string]*call[T]
}

type call[T any] struct {
	timer   *time.Timer
	ctx     context.Context
	fn      Func[T]
	callers int
	done    chan struct{}
	val     T
	err     error
}

// New returns a Group with the given quiet window.
func New[T any](wait time.Duration) *Group[T] {
	return &Group[T]{wait: wait, pending: make(map[string]*call[T])}
}

// Wait returns the quiet window.
func (g *Group[T]) Wait() time.Duration { return g.wait }

// Do schedules fn under key and blocks until the collapsed run finishes or
// ctx ends. The run receives the last caller's context values but is not
// cancelled when a caller gives up.
func (g *Group[T]) Do(ctx context.Context, key string, fn Func[T]) (T, error) {
	g.mu.Lock()
	c, ok := g.pending[key]
	if !ok {
		c = &call[T]{done: make(chan struct{})}
		g.pending[key] = c
		c.timer = time.AfterFunc(g.wait, func() { g.fire(key, c) })
	} else {
		// A false return means the timer already fired and fire is waiting
		// on g.mu; this caller still joins that run.
		c.timer.Reset(g.wait)
	}
	c.ctx = context.WithoutCancel(ctx)
	c.fn = fn
	c.callers++
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Pending reports how many keys have a run scheduled.
func (g *Group[T]) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *Group[T]) fire(key string, c *call[T]) {
	g.mu.Lock()
	if g.pending[key] != c {
		g.mu.Unlock()
		return
	}
	delete(g.pending, key)
	ctx, fn, callers := c.ctx, c.fn, c.callers
	g.mu.Unlock()

	if g.OnRun != nil {
		g.OnRun(key, callers)
	}
	c.val, c.err = fn(ctx)
	close(c.done)
}
