package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

const userColumns = `id, email, display_name, password_hash, app_role, is_email_verified,
	COALESCE(verification_token, ''), verification_expires_at, created_at, updated_at`

func scanUser(row rowScanner) (User, error) {
	var user User
	var expires sql.NullTime
	if err := row.Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.AppRole,
		&user.IsEmailVerified, &user.VerificationToken, &expires, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return User{}, err
	}
	user.VerificationExpiresAt = nullTime(expires)
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, email, displayName, passwordHash, verificationToken string, verificationExpiresAt time.Time) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, display_name, password_hash, verification_token, verification_expires_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING `+userColumns,
		strings.TrimSpace(email), displayName, passwordHash, verificationToken, verificationExpiresAt,
	)
	user, err := scanUser(row)
	if err != nil {
		return User{}, wrap("insert user", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return User{}, wrap("lookup user", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email)))
	if err != nil {
		return User{}, wrap("lookup user by email", err)
	}
	return user, nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET is_email_verified = TRUE, verification_token = NULL, verification_expires_at = NULL, updated_at = NOW()
		WHERE verification_token = $1 AND verification_expires_at > NOW()
		RETURNING `+userColumns, token)
	user, err := scanUser(row)
	if err != nil {
		return User{}, wrap("verify user email", err)
	}
	return user, nil
}

func (s *PostgresStore) SetUserAppRole(ctx context.Context, userID, appRole string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET app_role = $2, updated_at = NOW() WHERE id = $1`, userID, appRole)
	if err != nil {
		return wrap("set app role", err)
	}
	return requireRow(res, "set app role")
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return wrap("set password", err)
	}
	return requireRow(res, "set password")
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)`, token, userID, expiresAt)
	return wrap("insert password reset", err)
}

// ConsumePasswordReset marks the token used and returns its user. Expired or
// already used tokens report ErrNotFound.
func (s *PostgresStore) ConsumePasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE password_resets SET used_at = NOW()
		WHERE token = $1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING user_id`, token).Scan(&userID)
	if err != nil {
		return "", wrap("consume password reset", err)
	}
	return userID, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, wrap("list users", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, wrap("scan user", err)
		}
		users = append(users, user)
	}
	return users, wrap("iterate users", rows.Err())
}

func requireRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token = $2, verification_expires_at = $3, updated_at = NOW()
		WHERE id = $1 AND NOT is_email_verified`, userID, token, expiresAt)
	if err != nil {
		return wrap("update verification token", err)
	}
	return requireRow(res, "update verification token")
}
