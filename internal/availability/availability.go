// Package availability runs a debounced remote uniqueness check for a
// subdomain field.
package availability

import (
	"context"
	"sync"
	"time"

	"launchkit/api/internal/subdomain"
)

type Status string

const (
	Idle        Status = "idle"
	Checking    Status = "checking"
	Available   Status = "available"
	Unavailable Status = "unavailable"
)

// CheckFunc asks the server whether value is free.
type CheckFunc func(ctx context.Context, value string) (bool, error)

// scheduleFunc runs f after d and returns a cancel func.
type scheduleFunc func(d time.Duration, f func()) (cancel func())

func afterFunc(d time.Duration, f func()) func() {
	timer := time.AfterFunc(d, f)
	return func() { timer.Stop() }
}

type Options struct {
	Debounce  time.Duration
	MinLength int
	// Initial is the persisted value; input equal to it is not dirty.
	Initial  string
	OnChange func(status Status, value string)
}

// Checker is the idle -> checking -> available|unavailable state machine.
// A newer input supersedes any scheduled or in-flight check; superseded
// results are discarded, not aborted.
type Checker struct {
	mu         sync.Mutex
	status     Status
	value      string
	generation uint64
	cancel     func()

	ctx      context.Context
	check    CheckFunc
	opts     Options
	schedule scheduleFunc
}

func NewChecker(ctx context.Context, check CheckFunc, opts Options) *Checker {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.MinLength <= 0 {
		opts.MinLength = subdomain.MinLength
	}
	return &Checker{
		status:   Idle,
		ctx:      ctx,
		check:    check,
		opts:     opts,
		schedule: afterFunc,
	}
}

func (c *Checker) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Input records a new field value and schedules a check when the value is
// dirty, well formed and long enough. Otherwise the machine returns to idle.
func (c *Checker) Input(raw string) {
	value := subdomain.Normalize(raw)

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.value = value
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	eligible := value != subdomain.Normalize(c.opts.Initial) &&
		len(value) >= c.opts.MinLength &&
		subdomain.Validate(value) == nil
	if !eligible {
		c.setLocked(Idle)
		c.mu.Unlock()
		return
	}
	c.cancel = c.schedule(c.opts.Debounce, func() { c.run(gen, value) })
	c.mu.Unlock()
}

// Reset cancels pending work and returns to idle.
func (c *Checker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.value = ""
	c.setLocked(Idle)
}

func (c *Checker) run(gen uint64, value string) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.cancel = nil
	c.setLocked(Checking)
	c.mu.Unlock()

	free, err := c.check(c.ctx, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	if err != nil || !free {
		c.setLocked(Unavailable)
		return
	}
	c.setLocked(Available)
}

func (c *Checker) setLocked(status Status) {
	if c.status == status {
		return
	}
	c.status = status
	if c.opts.OnChange != nil {
		c.opts.OnChange(status, c.value)
	}
}
