// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/samber/oops"

	"github.com/trackrank/trackrank/internal/access"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Account represents a registered user. Username is the primary
// identity and never changes after creation.
type Account struct {
	Username       string
	PasswordHash   string
	AccessLevel    access.Level
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	LastLoginAt    *time.Time
}

// NewAccount creates a validated Account. The password hash must
// already be produced by a PasswordHasher; plaintext never reaches
// this layer.
func NewAccount(username, passwordHash string, level access.Level) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	return &Account{
		Username:     username,
		PasswordHash: passwordHash,
		AccessLevel:  level,
		CreatedAt:    time.Now(),
	}, nil
}

// IsLocked returns true if the account is currently locked out.
func (a *Account) IsLocked() bool {
	return IsLockedOut(a.LockedUntil)
}

// RecordFailure increments the failure counter and sets lockout if the
// threshold is reached.
func (a *Account) RecordFailure() {
	a.FailedAttempts++
	a.LockedUntil = ComputeLockoutTime(a.FailedAttempts)
}

// RecordSuccess resets failure counter and lockout.
func (a *Account) RecordSuccess() {
	a.FailedAttempts = 0
	a.LockedUntil = nil
}

// ValidateUsername validates a username against rules.
// Username requirements:
//   - Length: MinUsernameLength to MaxUsernameLength characters
//   - Must start with a letter
//   - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("ACCOUNT_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("ACCOUNT_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("ACCOUNT_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("ACCOUNT_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// AccountRepository manages account persistence. Operations are
// transactional at single-row scope; Delete also removes the account's
// sessions through the storage-level cascade.
type AccountRepository interface {
	// Create stores a new account. Returns ErrDuplicateUsername if the
	// username is taken (case-insensitive).
	Create(ctx context.Context, account *Account) error

	// GetByUsername retrieves an account by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// Update persists lockout counters and an upgraded password hash.
	Update(ctx context.Context, account *Account) error

	// UpdateLastLogin records a successful login timestamp. Returns
	// ErrNotFound if the account vanished concurrently; callers treat
	// that as non-fatal.
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error

	// UpdatePassword updates only the password hash.
	UpdatePassword(ctx context.Context, username, passwordHash string) error

	// Delete removes an account and, via the sessions foreign key
	// cascade, every session that references it, atomically.
	Delete(ctx context.Context, username string) error
}
