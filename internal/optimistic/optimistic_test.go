package optimistic

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
)

type site struct {
	ID   string
	Name string
}

func siteID(s site) string { return s.ID }
func withSiteID(s site, id string) site { s.ID = id; return s }

func ids(items []site) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestHandleCreateRollsBackOnFailure(t *testing.T) {
	initial := []site{{ID: "s1", Name: "One"}}
	var m *Manager[site]
	var sawProvisional bool
	m = NewManager(initial, siteID, withSiteID, Actions[site]{
		Create: func(ctx context.Context, form url.Values) error {
			items := m.Items()
			sawProvisional = len(items) == 2 && strings.HasPrefix(items[1].ID, "tmp_") && m.IsPending()
			return errors.New("Este subdominio ya está en uso.")
		},
		Refresh: func(context.Context) ([]site, error) {
			t.Fatal("refresh must not run after a failed create")
			return nil, nil
		},
	})

	err := m.HandleCreate(context.Background(), url.Values{"name": {"Two"}}, site{Name: "Two"})
	if err == nil {
		t.Fatal("expected create error")
	}
	if !sawProvisional {
		t.Fatal("optimistic item should be visible while the action runs")
	}
	if got := ids(m.Items()); len(got) != 1 || got[0] != "s1" {
		t.Fatalf("items after rollback = %v, want [s1]", got)
	}
	if m.IsPending() || m.MutatingID() != "" {
		t.Fatal("pending state should clear after rollback")
	}
}

func TestHandleCreateOnEmptyListRollsBack(t *testing.T) {
	m := NewManager(nil, siteID, withSiteID, Actions[site]{
		Create: func(context.Context, url.Values) error { return errors.New("fail") },
	})
	_ = m.HandleCreate(context.Background(), url.Values{}, site{Name: "x"})
	if len(m.Items()) != 0 {
		t.Fatalf("items = %v, want empty", m.Items())
	}
}

func TestHandleCreateRefreshesOnSuccess(t *testing.T) {
	m := NewManager([]site{{ID: "s1"}}, siteID, withSiteID, Actions[site]{
		Create: func(context.Context, url.Values) error { return nil },
		Refresh: func(context.Context) ([]site, error) {
			return []site{{ID: "s1"}, {ID: "s2", Name: "Two"}}, nil
		},
	})
	if err := m.HandleCreate(context.Background(), url.Values{}, site{Name: "Two"}); err != nil {
		t.Fatalf("HandleCreate: %v", err)
	}
	if got := ids(m.Items()); len(got) != 2 || got[1] != "s2" {
		t.Fatalf("items = %v, want server ids", got)
	}
}

func TestHandleDeleteSuccessStaysDeleted(t *testing.T) {
	var m *Manager[site]
	m = NewManager([]site{{ID: "s1"}, {ID: "s2"}}, siteID, withSiteID, Actions[site]{
		Delete: func(_ context.Context, form url.Values) error {
			if m.MutatingID() != "s2" {
				t.Fatalf("MutatingID = %q", m.MutatingID())
			}
			for _, item := range m.Items() {
				if item.ID == "s2" {
					t.Fatal("item should be removed before the action runs")
				}
			}
			return nil
		},
		Refresh: func(context.Context) ([]site, error) {
			return []site{{ID: "s1"}}, nil
		},
	})

	if err := m.HandleDelete(context.Background(), url.Values{"id": {"s2"}}); err != nil {
		t.Fatalf("HandleDelete: %v", err)
	}
	for _, item := range m.Items() {
		if item.ID == "s2" {
			t.Fatal("deleted id reappeared after refresh")
		}
	}
}

func TestHandleDeleteRollsBackOnFailure(t *testing.T) {
	m := NewManager([]site{{ID: "s1"}, {ID: "s2"}}, siteID, withSiteID, Actions[site]{
		Delete: func(context.Context, url.Values) error { return errors.New("No tienes permiso para realizar esta acción.") },
	})
	if err := m.HandleDelete(context.Background(), url.Values{"id": {"s1"}}); err == nil {
		t.Fatal("expected delete error")
	}
	if got := ids(m.Items()); len(got) != 2 || got[0] != "s1" {
		t.Fatalf("items = %v, want original order", got)
	}
}

func TestRefreshFailureKeepsLocalState(t *testing.T) {
	m := NewManager([]site{{ID: "s1"}}, siteID, withSiteID, Actions[site]{
		Delete:  func(context.Context, url.Values) error { return nil },
		Refresh: func(context.Context) ([]site, error) { return nil, errors.New("offline") },
	})
	if err := m.HandleDelete(context.Background(), url.Values{"id": {"s1"}}); err == nil {
		t.Fatal("expected refresh error")
	}
	if len(m.Items()) != 0 || m.IsPending() {
		t.Fatalf("items = %v pending = %v", m.Items(), m.IsPending())
	}
}
