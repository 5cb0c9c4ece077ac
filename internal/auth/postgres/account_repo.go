// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/trackrank/trackrank/internal/access"
	"github.com/trackrank/trackrank/internal/auth"
)

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (username, password_hash, access_level, failed_attempts, locked_until, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		account.Username,
		account.PasswordHash,
		int(account.AccessLevel),
		account.FailedAttempts,
		account.LockedUntil,
		account.CreatedAt,
		account.LastLoginAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_DUPLICATE_USERNAME").
				With("username", account.Username).
				Wrap(auth.ErrDuplicateUsername)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert user").
			With("username", account.Username).
			Wrap(err)
	}
	return nil
}

// GetByUsername retrieves an account by username (case-insensitive).
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT username, password_hash, access_level, failed_attempts, locked_until, created_at, last_login_at
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`, username)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by username").
			With("username", username).
			Wrap(err)
	}
	return account, nil
}

// Update persists lockout counters and the password hash.
func (r *AccountRepository) Update(ctx context.Context, account *auth.Account) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, access_level = $3, failed_attempts = $4, locked_until = $5
		WHERE username = $1
	`,
		account.Username,
		account.PasswordHash,
		int(account.AccessLevel),
		account.FailedAttempts,
		account.LockedUntil,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update user").
			With("username", account.Username).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("username", account.Username).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateLastLogin records a successful login timestamp.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET last_login_at = $2
		WHERE username = $1
	`, username, at)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_LAST_LOGIN_FAILED").
			With("operation", "update last_login_at").
			With("username", username).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword updates only the password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2
		WHERE username = $1
	`, username, passwordHash)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").
			With("operation", "update password_hash").
			With("username", username).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes an account. The sessions foreign key is declared
// ON DELETE CASCADE, so the account's sessions disappear in the same
// statement; no reader can observe one without the other.
func (r *AccountRepository) Delete(ctx context.Context, username string) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM users WHERE username = $1
	`, username)
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete user").
			With("username", username).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		username    string
		hash        string
		level       int
		failed      int
		lockedUntil *time.Time
		createdAt   time.Time
		lastLoginAt *time.Time
	)

	err := row.Scan(&username, &hash, &level, &failed, &lockedUntil, &createdAt, &lastLoginAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	return &auth.Account{
		Username:       username,
		PasswordHash:   hash,
		AccessLevel:    access.Level(level),
		FailedAttempts: failed,
		LockedUntil:    lockedUntil,
		CreatedAt:      createdAt,
		LastLoginAt:    lastLoginAt,
	}, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
