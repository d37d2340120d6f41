// Package telemetry forwards log events to Sentry.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

const (
	maxBreadcrumbs = 50
	fatalFlush     = 2 * time.Second
)

type Options struct {
	DSN         string
	Environment string
	Release     string
	// Transport replaces the buffered HTTP transport.
	Transport sentry.Transport
}

// Tracker owns the Sentry hub log events are reported through. The zero
// value and a nil Tracker are disabled.
type Tracker struct {
	hub *sentry.Hub
}

// NewTracker returns a disabled tracker when no DSN is configured.
func NewTracker(opts Options) (*Tracker, error) {
	if opts.DSN == "" {
		return &Tracker{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:            opts.DSN,
		Environment:    opts.Environment,
		Release:        opts.Release,
		Transport:      opts.Transport,
		MaxBreadcrumbs: maxBreadcrumbs,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry client: %w", err)
	}
	return &Tracker{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

func (t *Tracker) Enabled() bool {
	return t != nil && t.hub != nil
}

// Breadcrumb records msg on the hub scope. It is sent with the next
// captured message.
func (t *Tracker) Breadcrumb(level zerolog.Level, msg string) {
	if !t.Enabled() {
		return
	}
	t.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "default",
		Category:  "log",
		Level:     sentryLevel(level),
		Message:   msg,
		Timestamp: time.Now().UTC(),
	}, nil)
}

// Capture reports msg as an event at the given level.
func (t *Tracker) Capture(level zerolog.Level, msg string) {
	if !t.Enabled() {
		return
	}
	event := sentry.NewEvent()
	event.Level = sentryLevel(level)
	event.Message = msg
	t.hub.CaptureEvent(event)
}

// Close waits up to timeout for buffered events. It reports whether the
// buffer drained.
func (t *Tracker) Close(timeout time.Duration) bool {
	if !t.Enabled() {
		return true
	}
	return t.hub.Flush(timeout)
}

func sentryLevel(level zerolog.Level) sentry.Level {
	switch level {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return sentry.LevelDebug
	case zerolog.InfoLevel:
		return sentry.LevelInfo
	case zerolog.WarnLevel:
		return sentry.LevelWarning
	case zerolog.ErrorLevel:
		return sentry.LevelError
	default:
		return sentry.LevelFatal
	}
}

// Hook forwards info and above to the tracker. Info and warn become
// breadcrumbs; error and above become messages.
type Hook struct {
	tracker *Tracker
}

func NewHook(tracker *Tracker) Hook {
	return Hook{tracker: tracker}
}

func (h Hook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if !h.tracker.Enabled() || level < zerolog.InfoLevel || level == zerolog.NoLevel || level == zerolog.Disabled {
		return
	}
	if level < zerolog.ErrorLevel {
		h.tracker.Breadcrumb(level, msg)
		return
	}
	h.tracker.Capture(level, msg)
	if level == zerolog.FatalLevel {
		// Fatal exits right after the hooks run.
		h.tracker.Close(fatalFlush)
	}
}
