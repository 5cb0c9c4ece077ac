// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/trackrank/trackrank/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool poolIface
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool poolIface) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, username, token_hash, stay_logged_in, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		session.ID.String(),
		session.Username,
		session.TokenHash,
		session.StayLoggedIn,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("SESSION_DUPLICATE_TOKEN").
				With("username", session.Username).
				Wrap(auth.ErrDuplicateToken)
		}
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("username", session.Username).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, token_hash, stay_logged_in, created_at, expires_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return session, nil
}

// GetByUsername retrieves all sessions for an account, newest first.
func (r *SessionRepository) GetByUsername(ctx context.Context, username string) ([]*auth.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, username, token_hash, stay_logged_in, created_at, expires_at
		FROM sessions
		WHERE username = $1
		ORDER BY created_at DESC
	`, username)
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_USERNAME_FAILED").
			With("operation", "get sessions by username").
			With("username", username).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []*auth.Session
	for rows.Next() {
		session, err := scanSessionRow(rows)
		if err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").
				With("operation", "scan session row").
				Wrap(err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate session rows").
			Wrap(err)
	}

	return sessions, nil
}

// DeleteByTokenHash removes a session. Zero rows affected is a valid
// outcome; revocation is idempotent.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM sessions WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session by token hash").
			Wrap(err)
	}
	return nil
}

// DeleteByUsername removes all sessions for an account.
func (r *SessionRepository) DeleteByUsername(ctx context.Context, username string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM sessions WHERE username = $1
	`, username)
	if err != nil {
		return oops.Code("SESSION_DELETE_BY_USERNAME_FAILED").
			With("operation", "delete sessions by username").
			With("username", username).
			Wrap(err)
	}
	// No ErrNotFound if no rows deleted - that's a valid state
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans a single row into a Session.
// Callers are responsible for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		idStr        string
		username     string
		tokenHash    string
		stayLoggedIn bool
		createdAt    time.Time
		expiresAt    time.Time
	)

	err := row.Scan(&idStr, &username, &tokenHash, &stayLoggedIn, &createdAt, &expiresAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	return buildSession(idStr, username, tokenHash, stayLoggedIn, createdAt, expiresAt)
}

// scanSessionRow scans a row from a rows iterator into a Session.
func scanSessionRow(rows pgx.Rows) (*auth.Session, error) {
	var (
		idStr        string
		username     string
		tokenHash    string
		stayLoggedIn bool
		createdAt    time.Time
		expiresAt    time.Time
	)

	err := rows.Scan(&idStr, &username, &tokenHash, &stayLoggedIn, &createdAt, &expiresAt)
	if err != nil {
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session row").
			Wrap(err)
	}

	return buildSession(idStr, username, tokenHash, stayLoggedIn, createdAt, expiresAt)
}

// buildSession constructs a Session from scanned values.
func buildSession(idStr, username, tokenHash string, stayLoggedIn bool, createdAt, expiresAt time.Time) (*auth.Session, error) {
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.Session{
		ID:           id,
		Username:     username,
		TokenHash:    tokenHash,
		StayLoggedIn: stayLoggedIn,
		CreatedAt:    createdAt,
		ExpiresAt:    expiresAt,
	}, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
