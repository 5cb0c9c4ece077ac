// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/trackrank/trackrank/internal/access"
	"github.com/trackrank/trackrank/internal/observability"
)

// Policy holds the session TTL configuration. The two durations are
// policy constants chosen at deployment time, not computed values.
type Policy struct {
	// ShortTTL applies to plain logins.
	ShortTTL time.Duration

	// LongTTL applies to stay-logged-in logins. Must exceed ShortTTL.
	LongTTL time.Duration
}

// DefaultPolicy returns the stock TTL policy.
func DefaultPolicy() Policy {
	return Policy{
		ShortTTL: ShortSessionTTL,
		LongTTL:  LongSessionTTL,
	}
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.ShortTTL <= 0 {
		return oops.Code("POLICY_INVALID").Errorf("short TTL must be positive")
	}
	if p.LongTTL <= p.ShortTTL {
		return oops.Code("POLICY_INVALID").
			With("short_ttl", p.ShortTTL.String()).
			With("long_ttl", p.LongTTL.String()).
			Errorf("long TTL must exceed short TTL")
	}
	return nil
}

// tokenInsertRetries bounds regeneration attempts when a freshly drawn
// token collides with an existing row. With 256-bit tokens a single
// retry is already astronomically unlikely.
const tokenInsertRetries = 3

// Service provides registration, login and session lifecycle operations.
type Service struct {
	accounts AccountRepository
	sessions SessionRepository
	hasher   PasswordHasher
	policy   Policy
	logger   *slog.Logger
}

// NewService creates a Service with the default TTL policy.
func NewService(accounts AccountRepository, sessions SessionRepository, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithPolicy(accounts, sessions, hasher, DefaultPolicy())
}

// NewServiceWithPolicy creates a Service with an explicit TTL policy.
func NewServiceWithPolicy(accounts AccountRepository, sessions SessionRepository, hasher PasswordHasher, policy Policy) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		policy:   policy,
		logger:   slog.Default(),
	}, nil
}

// WithLogger replaces the service logger. Returns an error for a nil
// logger so misconfiguration fails at startup, not at first log call.
func (s *Service) WithLogger(logger *slog.Logger) (*Service, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	s.logger = logger
	return s, nil
}

// dummyPasswordHash is used when an account doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates a new account. The plaintext password is hashed
// here and never persisted.
func (s *Service) Register(ctx context.Context, username, password string, level access.Level) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := NewAccount(username, hash, level)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, oops.Code("AUTH_DUPLICATE_USERNAME").
				With("username", username).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	return account, nil
}

// Login authenticates an account and creates a session.
// Returns the session and the plaintext token; the token is never
// stored server-side.
// Uses constant-time operations to prevent timing-based username enumeration.
func (s *Service) Login(ctx context.Context, username, password string, stayLoggedIn bool) (*Session, string, error) {
	account, lookupErr := s.accounts.GetByUsername(ctx, username)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	var targetHash string
	var accountExists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			// Use dummy hash - still perform verification to maintain constant time
			targetHash = dummyPasswordHash
			accountExists = false
		} else {
			observability.RecordLogin(observability.LoginError)
			return nil, "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get account by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = account.PasswordHash
		accountExists = true
	}

	// Always verify password (constant-time operation for timing attack prevention)
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		// For dummy hash verification errors, just treat as invalid
		if !accountExists {
			observability.RecordLogin(observability.LoginInvalid)
			return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
		}
		observability.RecordLogin(observability.LoginError)
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	// If account doesn't exist OR password invalid, return same error
	if !accountExists || !valid {
		if accountExists {
			// Record failure only for existing accounts
			account.RecordFailure()
			_ = s.accounts.Update(ctx, account) //nolint:errcheck // Best effort
		}
		observability.RecordLogin(observability.LoginInvalid)
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
	}

	// Check lockout AFTER password verification to maintain constant time
	if account.IsLocked() {
		observability.RecordLogin(observability.LoginLocked)
		return nil, "", oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", account.LockedUntil).
			Errorf("account is temporarily locked")
	}

	// Success - reset failure counter
	account.RecordSuccess()

	// Check if password needs upgrade (e.g., from a legacy bcrypt import)
	if s.hasher.NeedsRehash(account.PasswordHash) {
		newHash, hashErr := s.hasher.Hash(password)
		if hashErr == nil {
			account.PasswordHash = newHash
		}
	}

	// Persist reset failure count (and possibly upgraded hash).
	// Ignore errors - login should succeed even if update fails
	_ = s.accounts.Update(ctx, account) //nolint:errcheck // Best effort, login succeeds regardless

	// Record the login time. A concurrently deleted account is reported
	// as ErrNotFound and is non-fatal here.
	if err := s.accounts.UpdateLastLogin(ctx, account.Username, time.Now()); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("failed to update last login", "username", account.Username, "error", err)
	}

	session, token, err := s.createSession(ctx, account.Username, stayLoggedIn)
	if err != nil {
		observability.RecordLogin(observability.LoginError)
		return nil, "", err
	}

	observability.RecordLogin(observability.LoginSuccess)
	return session, token, nil
}

// CreateSession issues a session for an already-authenticated account.
// Exposed for flows that establish identity outside the password path
// (e.g. operator tooling).
func (s *Service) CreateSession(ctx context.Context, account *Account, stayLoggedIn bool) (*Session, string, error) {
	if account == nil {
		return nil, "", oops.Code("SESSION_INVALID_USERNAME").Errorf("account is required")
	}
	return s.createSession(ctx, account.Username, stayLoggedIn)
}

// createSession generates a token and persists the session row,
// retrying with a fresh token if the store rejects a duplicate key.
func (s *Service) createSession(ctx context.Context, username string, stayLoggedIn bool) (*Session, string, error) {
	ttl := s.policy.ShortTTL
	if stayLoggedIn {
		ttl = s.policy.LongTTL
	}

	var session *Session
	var token string

	backoff := retry.WithMaxRetries(tokenInsertRetries, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		plaintext, tokenHash, err := GenerateSessionToken()
		if err != nil {
			return err
		}

		candidate, err := NewSession(username, tokenHash, stayLoggedIn, ttl)
		if err != nil {
			return err
		}

		if err := s.sessions.Create(ctx, candidate); err != nil {
			if errors.Is(err, ErrDuplicateToken) {
				// Freshly generated token collided; draw another one.
				return retry.RetryableError(err)
			}
			return err
		}

		session = candidate
		token = plaintext
		return nil
	})
	if err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("username", username).
			Wrap(err)
	}

	return session, token, nil
}

// ValidateSession validates a plaintext session token and returns the
// owning account and the session. The account is re-fetched from the
// store on every call, never cached, so a deleted or demoted account is
// reflected immediately. Expired rows are reported, never mutated; the
// pruner removes them later.
func (s *Service) ValidateSession(ctx context.Context, token string) (*Account, *Session, error) {
	if token == "" {
		return nil, nil, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}

	tokenHash := HashSessionToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, oops.Code("SESSION_NOT_FOUND").Errorf("invalid session token")
		}
		return nil, nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		return nil, nil, oops.Code("SESSION_EXPIRED").Errorf("session has expired")
	}

	account, err := s.accounts.GetByUsername(ctx, session.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Account cascade raced with this lookup; the session is gone too.
			return nil, nil, oops.Code("SESSION_NOT_FOUND").Errorf("invalid session token")
		}
		return nil, nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session owner").
			Wrap(err)
	}

	return account, session, nil
}

// ValidateCookieValue decodes a raw cookie value and validates the
// embedded token in one step.
func (s *Service) ValidateCookieValue(ctx context.Context, rawValue string) (*Account, *Session, error) {
	token, err := DecodeValue(rawValue)
	if err != nil {
		return nil, nil, err
	}
	return s.ValidateSession(ctx, token)
}

// RevokeSession deletes the session for a plaintext token. Revoking an
// unknown or already-revoked token is not an error.
func (s *Service) RevokeSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// RevokeAllSessions logs an account out everywhere.
func (s *Service) RevokeAllSessions(ctx context.Context, username string) error {
	if err := s.sessions.DeleteByUsername(ctx, username); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete sessions by username").
			With("username", username).
			Wrap(err)
	}
	return nil
}

// ChangePassword verifies the current password and replaces the hash.
// All existing sessions are revoked so stolen cookies die with the old
// password.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
		}
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "get account by username").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(oldPassword, account.PasswordHash)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "verify password").
			Wrap(err)
	}
	if !valid {
		return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.accounts.UpdatePassword(ctx, username, newHash); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	return s.RevokeAllSessions(ctx, username)
}

// DeleteAccount removes an account. The storage-level cascade deletes
// every session of the account in the same atomic operation.
func (s *Service) DeleteAccount(ctx context.Context, username string) error {
	if err := s.accounts.Delete(ctx, username); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("ACCOUNT_NOT_FOUND").
				With("username", username).
				Wrap(err)
		}
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("username", username).
			Wrap(err)
	}
	return nil
}

// PruneExpired deletes all sessions past their expiry and returns the
// count. Safe to run concurrently with validation: validation treats
// missing and expired rows as equivalent rejections.
func (s *Service) PruneExpired(ctx context.Context) (int64, error) {
	count, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("SESSION_PRUNE_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	if count > 0 {
		observability.RecordSessionsPruned(count)
	}
	return count, nil
}
