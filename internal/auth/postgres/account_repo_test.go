// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackrank/trackrank/internal/access"
	"github.com/trackrank/trackrank/internal/auth"
)

func newAccountMock(t *testing.T) (pgxmock.PgxPoolIface, *AccountRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock, NewAccountRepository(mock)
}

func TestAccountRepository_Create(t *testing.T) {
	ctx := context.Background()
	account := &auth.Account{
		Username:     "alice",
		PasswordHash: "$argon2id$hash",
		AccessLevel:  access.LevelUser,
		CreatedAt:    time.Now(),
	}

	t.Run("inserts account", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs("alice", "$argon2id$hash", 0, 0, pgxmock.AnyArg(), account.CreatedAt, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, account)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("duplicate username maps to ErrDuplicateUsername", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs("alice", "$argon2id$hash", 0, 0, pgxmock.AnyArg(), account.CreatedAt, pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err := repo.Create(ctx, account)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateUsername)
	})

	t.Run("other errors are wrapped, not mapped", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs("alice", "$argon2id$hash", 0, 0, pgxmock.AnyArg(), account.CreatedAt, pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		err := repo.Create(ctx, account)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrDuplicateUsername)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestAccountRepository_GetByUsername(t *testing.T) {
	ctx := context.Background()
	columns := []string{"username", "password_hash", "access_level", "failed_attempts", "locked_until", "created_at", "last_login_at"}

	t.Run("returns account", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		createdAt := time.Now().Add(-time.Hour)
		lastLogin := time.Now().Add(-time.Minute)
		rows := pgxmock.NewRows(columns).
			AddRow("alice", "$argon2id$hash", 2, 1, (*time.Time)(nil), createdAt, &lastLogin)
		mock.ExpectQuery(`SELECT username, password_hash`).
			WithArgs("Alice").
			WillReturnRows(rows)

		account, err := repo.GetByUsername(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", account.Username)
		assert.Equal(t, access.LevelAdmin, account.AccessLevel)
		assert.Equal(t, 1, account.FailedAttempts)
		assert.Nil(t, account.LockedUntil)
		require.NotNil(t, account.LastLoginAt)
		assert.Equal(t, lastLogin, *account.LastLoginAt)
	})

	t.Run("missing account maps to ErrNotFound", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		mock.ExpectQuery(`SELECT username, password_hash`).
			WithArgs("nobody").
			WillReturnRows(pgxmock.NewRows(columns))

		account, err := repo.GetByUsername(ctx, "nobody")
		assert.Nil(t, account)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestAccountRepository_Update(t *testing.T) {
	ctx := context.Background()
	account := &auth.Account{
		Username:       "alice",
		PasswordHash:   "$argon2id$hash",
		AccessLevel:    access.LevelEditor,
		FailedAttempts: 3,
	}

	t.Run("updates existing account", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		mock.ExpectExec(`UPDATE users`).
			WithArgs("alice", "$argon2id$hash", 1, 3, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.Update(ctx, account))
	})

	t.Run("zero rows affected maps to ErrNotFound", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		mock.ExpectExec(`UPDATE users`).
			WithArgs("alice", "$argon2id$hash", 1, 3, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, account)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestAccountRepository_UpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	at := time.Now()

	t.Run("updates timestamp", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		mock.ExpectExec(`UPDATE users SET last_login_at`).
			WithArgs("alice", at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdateLastLogin(ctx, "alice", at))
	})

	t.Run("missing account maps to ErrNotFound", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		mock.ExpectExec(`UPDATE users SET last_login_at`).
			WithArgs("nobody", at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateLastLogin(ctx, "nobody", at)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestAccountRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("updates hash", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs("alice", "$argon2id$newhash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdatePassword(ctx, "alice", "$argon2id$newhash"))
	})

	t.Run("missing account maps to ErrNotFound", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs("nobody", "$argon2id$newhash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdatePassword(ctx, "nobody", "$argon2id$newhash")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestAccountRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes existing account", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		mock.ExpectExec(`DELETE FROM users`).
			WithArgs("alice").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(ctx, "alice"))
	})

	t.Run("missing account maps to ErrNotFound", func(t *testing.T) {
		mock, repo := newAccountMock(t)
		mock.ExpectExec(`DELETE FROM users`).
			WithArgs("nobody").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := repo.Delete(ctx, "nobody")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
