// Package optimistic applies list mutations locally before the server
// confirms them, rolling back on failure and refreshing on success.
package optimistic

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"launchkit/api/internal/util"
)

// Actions are the server calls behind a managed list.
type Actions[T any] struct {
	Create  func(ctx context.Context, form url.Values) error
	Delete  func(ctx context.Context, form url.Values) error
	Refresh func(ctx context.Context) ([]T, error)
}

// Manager tracks one list. Only one in-flight mutation id is tracked; callers
// disable their triggers while IsPending reports true.
type Manager[T any] struct {
	mu         sync.Mutex
	items      []T
	pending    bool
	mutatingID string

	id      func(T) string
	withID  func(T, string) T
	actions Actions[T]
}

func NewManager[T any](initial []T, id func(T) string, withID func(T, string) T, actions Actions[T]) *Manager[T] {
	return &Manager[T]{
		items:   append([]T(nil), initial...),
		id:      id,
		withID:  withID,
		actions: actions,
	}
}

func (m *Manager[T]) Items() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]T(nil), m.items...)
}

func (m *Manager[T]) IsPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

func (m *Manager[T]) MutatingID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutatingID
}

// HandleCreate appends optimistic under a provisional id, runs the create
// action and reconciles with a full refresh.
func (m *Manager[T]) HandleCreate(ctx context.Context, form url.Values, optimistic T) error {
	provisional := m.withID(optimistic, util.NewID("tmp"))

	m.mu.Lock()
	snapshot := append([]T(nil), m.items...)
	m.items = append(m.items, provisional)
	m.pending = true
	m.mutatingID = m.id(provisional)
	m.mu.Unlock()

	if err := m.actions.Create(ctx, form); err != nil {
		m.settle(snapshot, true)
		return err
	}
	return m.refresh(ctx)
}

// HandleDelete removes the item named by form's "id" field, runs the
// delete action and reconciles with a full refresh.
func (m *Manager[T]) HandleDelete(ctx context.Context, form url.Values) error {
	targetID := form.Get("id")

	m.mu.Lock()
	snapshot := append([]T(nil), m.items...)
	kept := make([]T, 0, len(m.items))
	for _, item := range m.items {
		if m.id(item) != targetID {
			kept = append(kept, item)
		}
	}
	m.items = kept
	m.pending = true
	m.mutatingID = targetID
	m.mu.Unlock()

	if err := m.actions.Delete(ctx, form); err != nil {
		m.settle(snapshot, true)
		return err
	}
	return m.refresh(ctx)
}

func (m *Manager[T]) refresh(ctx context.Context) error {
	if m.actions.Refresh == nil {
		m.settle(nil, false)
		return nil
	}
	fresh, err := m.actions.Refresh(ctx)
	if err != nil {
		m.settle(nil, false)
		return fmt.Errorf("refresh after mutation: %w", err)
	}
	m.settle(fresh, true)
	return nil
}

// settle clears the pending state and optionally replaces the items.
func (m *Manager[T]) settle(next []T, replace bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if replace {
		m.items = append([]T(nil), next...)
	}
	m.pending = false
	m.mutatingID = ""
}
