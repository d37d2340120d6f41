package app

import (
	"errors"
	"fmt"
	"net/http"

	"launchkit/api/internal/auth"
	"launchkit/api/internal/guard"
	"launchkit/api/internal/i18n"
	"launchkit/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrConflict) {
		return http.StatusConflict, "CONFLICT", "Conflict", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

// guardError turns a denied guard result into a read API error.
func guardError(code guard.Code) *DomainError {
	switch code {
	case guard.SessionNotFound:
		return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	case guard.NotFound:
		return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	default:
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
}

// failure is an expected action outcome carrying a user-facing message key.
type failure struct {
	key i18n.Key
}

func (f *failure) Error() string {
	return string(f.key)
}

func fail(key i18n.Key) error {
	return &failure{key: key}
}

// denied maps a guard code to the opaque action message.
func denied(code guard.Code) error {
	switch code {
	case guard.SessionNotFound:
		return fail(i18n.NotAuthenticated)
	case guard.NotFound:
		return fail(i18n.NotFound)
	default:
		return fail(i18n.PermissionDenied)
	}
}

// conflictKey maps a unique constraint to its "already in use" message.
func conflictKey(err error) (i18n.Key, bool) {
	switch {
	case store.IsConflictOn(err, store.ConstraintSiteSubdomain):
		return i18n.SubdomainTaken, true
	case store.IsConflictOn(err, store.ConstraintSiteCustomDomain):
		return i18n.DomainTaken, true
	case store.IsConflictOn(err, store.ConstraintCampaignSlug):
		return i18n.SlugTaken, true
	case store.IsConflictOn(err, store.ConstraintPendingInvitation):
		return i18n.AlreadyInvited, true
	case store.IsConflictOn(err, store.ConstraintUserEmail):
		return i18n.EmailTaken, true
	}
	return "", false
}

// actionMessage resolves the message an action error surfaces to the user.
// The second return reports whether the error was expected.
func actionMessage(err error) (i18n.Key, bool) {
	var f *failure
	if errors.As(err, &f) {
		return f.key, true
	}
	if key, ok := conflictKey(err); ok {
		return key, true
	}
	if errors.Is(err, store.ErrConflict) {
		return i18n.GenericFailure, true
	}
	if errors.Is(err, store.ErrNotFound) {
		return i18n.NotFound, true
	}
	if errors.Is(err, store.ErrInvitationMismatch) {
		return i18n.InvitationEmail, true
	}
	return i18n.GenericFailure, false
}
