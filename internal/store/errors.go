package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrInvitationMismatch is raised by accept_workspace_invitation when the
	// accepting user's email differs from the invited address.
	ErrInvitationMismatch = errors.New("invitation addressed to another user")
)

// Unique constraint names surfaced through ConflictError.
const (
	ConstraintUserEmail         = "users_email_lower_key"
	ConstraintSiteSubdomain     = "sites_subdomain_key"
	ConstraintSiteCustomDomain  = "sites_custom_domain_key"
	ConstraintCampaignSlug      = "campaigns_site_slug_key"
	ConstraintPendingInvitation = "invitations_pending_email_key"
)

// ConflictError reports a unique-constraint violation. It matches ErrConflict
// under errors.Is.
type ConflictError struct {
	Constraint string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s", e.Constraint)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// IsConflictOn reports whether err is a conflict on the named constraint.
func IsConflictOn(err error, constraint string) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict) && conflict.Constraint == constraint
}

// normalize maps driver errors onto the package sentinels.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &ConflictError{Constraint: pgErr.ConstraintName}
		case "P0002", "22P02":
			return ErrNotFound
		case "42501":
			return ErrInvitationMismatch
		}
	}
	return err
}

func wrap(op string, err error) error {
	err = normalize(err)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInvitationMismatch) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
