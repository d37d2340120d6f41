package app

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"launchkit/api/internal/guard"
	"launchkit/api/internal/i18n"
	"launchkit/api/internal/store"
)

func TestActionMessage(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		key      i18n.Key
		expected bool
	}{
		{"failure", fail(i18n.OwnerImmutable), i18n.OwnerImmutable, true},
		{"custom domain conflict", fmt.Errorf("update site: %w", &store.ConflictError{Constraint: store.ConstraintSiteCustomDomain}), i18n.DomainTaken, true},
		{"slug conflict", &store.ConflictError{Constraint: store.ConstraintCampaignSlug}, i18n.SlugTaken, true},
		{"unknown conflict", &store.ConflictError{Constraint: "something_else"}, i18n.GenericFailure, true},
		{"not found", fmt.Errorf("lookup: %w", store.ErrNotFound), i18n.NotFound, true},
		{"invitation mismatch", store.ErrInvitationMismatch, i18n.InvitationEmail, true},
		{"unexpected", errors.New("connection reset"), i18n.GenericFailure, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, expected := actionMessage(tc.err)
			if key != tc.key || expected != tc.expected {
				t.Errorf("actionMessage = (%q, %v), want (%q, %v)", key, expected, tc.key, tc.expected)
			}
		})
	}
}

func TestGuardErrorStatus(t *testing.T) {
	cases := map[guard.Code]int{
		guard.SessionNotFound:  http.StatusUnauthorized,
		guard.NotFound:         http.StatusNotFound,
		guard.PermissionDenied: http.StatusForbidden,
	}
	for code, want := range cases {
		status, _, _, _ := mapError(guardError(code))
		if status != want {
			t.Errorf("%s: status = %d, want %d", code, status, want)
		}
	}
}

func TestMapErrorHidesInternals(t *testing.T) {
	status, code, message, _ := mapError(errors.New("pq: relation does not exist"))
	if status != http.StatusInternalServerError || code != "SERVER_ERROR" || message != "Server error" {
		t.Errorf("unexpected mapping %d %s %s", status, code, message)
	}
}
