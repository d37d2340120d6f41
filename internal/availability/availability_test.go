package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// manualClock collects scheduled callbacks so tests fire them explicitly.
type manualClock struct {
	mu      sync.Mutex
	pending []*scheduled
}

type scheduled struct {
	f         func()
	cancelled bool
}

func (m *manualClock) schedule(_ time.Duration, f func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &scheduled{f: f}
	m.pending = append(m.pending, s)
	return func() {
		m.mu.Lock()
		s.cancelled = true
		m.mu.Unlock()
	}
}

// fireAll runs every callback that was not cancelled.
func (m *manualClock) fireAll() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, s := range pending {
		m.mu.Lock()
		cancelled := s.cancelled
		m.mu.Unlock()
		if !cancelled {
			s.f()
		}
	}
}

// fireStale runs every callback, including cancelled ones.
func (m *manualClock) fireStale() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, s := range pending {
		s.f()
	}
}

func newTestChecker(check CheckFunc, opts Options) (*Checker, *manualClock) {
	clock := &manualClock{}
	c := NewChecker(context.Background(), check, opts)
	c.schedule = clock.schedule
	return c, clock
}

func TestOnlyLastValueIsChecked(t *testing.T) {
	var checked []string
	c, clock := newTestChecker(func(_ context.Context, value string) (bool, error) {
		checked = append(checked, value)
		return true, nil
	}, Options{})

	c.Input("acm")
	c.Input("acme")
	c.Input("acme-promo")
	clock.fireAll()

	if len(checked) != 1 || checked[0] != "acme-promo" {
		t.Fatalf("checked = %v, want [acme-promo]", checked)
	}
	if c.Status() != Available {
		t.Fatalf("status = %s, want available", c.Status())
	}
}

func TestStaleTimerIsIgnored(t *testing.T) {
	var checked []string
	c, clock := newTestChecker(func(_ context.Context, value string) (bool, error) {
		checked = append(checked, value)
		return false, nil
	}, Options{})

	c.Input("first")
	c.Input("second")
	clock.fireStale()

	if len(checked) != 1 || checked[0] != "second" {
		t.Fatalf("checked = %v, want [second]", checked)
	}
	if c.Status() != Unavailable {
		t.Fatalf("status = %s, want unavailable", c.Status())
	}
}

func TestIneligibleInputStaysIdle(t *testing.T) {
	calls := 0
	c, clock := newTestChecker(func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	}, Options{Initial: "acme"})

	for _, value := range []string{"ab", "bad_name", "-acme", "ACME", "www"} {
		c.Input(value)
		clock.fireAll()
		if c.Status() != Idle {
			t.Fatalf("Input(%q) status = %s, want idle", value, c.Status())
		}
	}
	if calls != 0 {
		t.Fatalf("remote check ran %d times", calls)
	}
}

func TestRemoteFailureIsUnavailable(t *testing.T) {
	c, clock := newTestChecker(func(context.Context, string) (bool, error) {
		return false, errors.New("network down")
	}, Options{})
	c.Input("acme")
	clock.fireAll()
	if c.Status() != Unavailable {
		t.Fatalf("status = %s, want unavailable", c.Status())
	}
}

func TestTransitionsAndReset(t *testing.T) {
	var transitions []Status
	release := make(chan struct{})
	c, clock := newTestChecker(func(context.Context, string) (bool, error) {
		<-release
		return true, nil
	}, Options{OnChange: func(s Status, _ string) { transitions = append(transitions, s) }})

	c.Input("acme")
	done := make(chan struct{})
	go func() {
		clock.fireAll()
		close(done)
	}()
	deadline := time.After(2 * time.Second)
	for c.Status() != Checking {
		select {
		case <-deadline:
			t.Fatal("never entered checking")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(release)
	<-done

	if c.Status() != Available {
		t.Fatalf("status = %s", c.Status())
	}
	c.Reset()
	if c.Status() != Idle {
		t.Fatalf("status after reset = %s", c.Status())
	}
	want := []Status{Checking, Available, Idle}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
	}
}

func TestResultAfterResetIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	c, clock := newTestChecker(func(context.Context, string) (bool, error) {
		<-release
		return true, nil
	}, Options{})
	c.Input("acme")
	done := make(chan struct{})
	go func() {
		clock.fireAll()
		close(done)
	}()
	for c.Status() != Checking {
		time.Sleep(time.Millisecond)
	}
	c.Reset()
	close(release)
	<-done
	if c.Status() != Idle {
		t.Fatalf("status = %s, want idle", c.Status())
	}
}
