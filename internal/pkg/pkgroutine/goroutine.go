package pkgroutine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// DefaultMaxGoroutine is used when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 10

// ErrPanic wraps values recovered from a panicking task.
var ErrPanic = errors.New("goroutine panicked")

// Manager runs functions in goroutines with a configurable concurrency limit.
//
// It collects errors returned by tasks and can be waited on using Wait.
type Manager struct {
	mu   sync.Mutex
	errs []error
	wg   *sync.WaitGroup
	sema chan struct{}
}

// NewManager creates a new Manager with the provided maximum concurrency.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = DefaultMaxGoroutine
	}

	return &Manager{
		wg:   &sync.WaitGroup{},
		sema: make(chan struct{}, maxGoroutine),
	}
}

// Go schedules a function to run in a goroutine.
//
// When the manager is at its concurrency limit Go blocks until a slot frees
// up or pCtx is done; in the latter case f never runs.
func (g *Manager) Go(pCtx context.Context, f func(ctx context.Context) error) {
	if !g.acquire(pCtx) {
		return
	}

	g.wg.Add(1)
	go g.run(pCtx, f)
}

// Queue is Go without blocking the caller: the wait for a slot happens on
// the new goroutine. Wait also covers queued tasks.
func (g *Manager) Queue(pCtx context.Context, f func(ctx context.Context) error) {
	g.wg.Add(1)
	go func() {
		if !g.acquire(pCtx) {
			g.wg.Done()
			return
		}
		g.run(pCtx, f)
	}()
}

func (g *Manager) acquire(pCtx context.Context) bool {
	select {
	case g.sema <- struct{}{}:
		return true
	case <-pCtx.Done():
		slog.WarnContext(pCtx, "goroutine canceled before start", "because", pCtx.Err())
		return false
	}
}

// run executes f on a held slot.
func (g *Manager) run(pCtx context.Context, f func(ctx context.Context) error) {
	defer g.wg.Done()
	defer func() {
		<-g.sema

		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			slog.ErrorContext(pCtx, "panic occurred in goroutine", "panic", rvr, "stack", string(stack))
			g.record(fmt.Errorf("%w: %v", ErrPanic, rvr))
		}
	}()

	select {
	case <-pCtx.Done():
		slog.WarnContext(pCtx, "goroutine canceled", "because", pCtx.Err())
	default:
		if err := f(pCtx); err != nil {
			g.record(err)
		}
	}
}

// Active returns the number of tasks currently holding a slot.
func (g *Manager) Active() int {
	return len(g.sema)
}

// Wait blocks until all scheduled goroutines finish and returns any collected errors.
func (g *Manager) Wait() error {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	return errors.Join(g.errs...)
}

func (g *Manager) record(err error) {
	g.mu.Lock()
	g.errs = append(g.errs, err)
	g.mu.Unlock()
}
