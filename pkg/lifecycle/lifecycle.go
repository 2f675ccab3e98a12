// Package lifecycle runs startup and shutdown hooks for long-lived
// subsystems and aggregates their readiness.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

var ErrShutdownTimeout = errors.New("shutdown hooks did not finish")

// ReadinessChecker is implemented by subsystems that need warm-up before
// they can serve, such as a database pool or a broker connection.
type ReadinessChecker interface {
	Ready() bool
}

// ReadyFunc adapts a function to ReadinessChecker.
type ReadyFunc func() bool

func (f ReadyFunc) Ready() bool { return f() }

// Status is a point-in-time readiness snapshot.
type Status struct {
	Ready   bool     `json:"ready"`
	Started bool     `json:"started"`
	Pending []string `json:"pending,omitempty"`
}

type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	startup  sync.WaitGroup
	shutdown sync.WaitGroup

	mu       sync.RWMutex
	started  bool
	checkers map[string]ReadinessChecker
}

func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:      ctx,
		cancel:   cancel,
		checkers: make(map[string]ReadinessChecker),
	}
}

// Context is cancelled when Shutdown begins.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn in its own goroutine immediately.
func (c *Coordinator) OnStartup(fn func()) {
	c.startup.Go(fn)
}

// OnShutdown runs fn in its own goroutine immediately. fn is expected to
// wait on Context().Done() before releasing resources.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdown.Go(fn)
}

// Register replaces any checker previously registered under name.
func (c *Coordinator) Register(name string, checker ReadinessChecker) {
	c.mu.Lock()
	c.checkers[name] = checker
	c.mu.Unlock()
}

// WaitForStartup blocks until every startup hook has returned.
func (c *Coordinator) WaitForStartup() {
	c.startup.Wait()
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
}

func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var pending []string
	for name, checker := range c.checkers {
		if !checker.Ready() {
			pending = append(pending, name)
		}
	}
	slices.Sort(pending)

	return Status{
		Ready:   c.started && len(pending) == 0,
		Started: c.started,
		Pending: pending,
	}
}

// Ready reports whether startup finished and every checker is ready.
func (c *Coordinator) Ready() bool {
	return c.Status().Ready
}

// Pending names the checkers not yet ready, sorted.
func (c *Coordinator) Pending() []string {
	return c.Status().Pending
}

// Shutdown cancels Context and waits up to timeout for shutdown hooks.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.shutdown.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w within %v", ErrShutdownTimeout, timeout)
	}
}
