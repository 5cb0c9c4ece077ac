// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	// SessionTokenBytes is the entropy of the opaque client token.
	// 32 bytes = 64 hex chars; collision probability is negligible even
	// under sustained concurrent issuance.
	SessionTokenBytes = 32

	// ShortSessionTTL is the lifetime of a plain login.
	ShortSessionTTL = 24 * time.Hour

	// LongSessionTTL is the lifetime of a stay-logged-in login.
	// Must exceed ShortSessionTTL.
	LongSessionTTL = 90 * 24 * time.Hour
)

// Session represents one active login. Sessions are immutable after
// creation: expiry is fixed at issuance, and the only state changes are
// deletion (revocation, pruning, or account cascade).
type Session struct {
	ID           ulid.ULID
	Username     string
	TokenHash    string
	StayLoggedIn bool
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// NewSession creates a validated Session owned by username, expiring
// ttl from now.
func NewSession(username, tokenHash string, stayLoggedIn bool, ttl time.Duration) (*Session, error) {
	if username == "" {
		return nil, oops.Code("SESSION_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("session TTL must be positive")
	}

	now := time.Now()
	return &Session{
		ID:           ulid.Make(),
		Username:     username,
		TokenHash:    tokenHash,
		StayLoggedIn: stayLoggedIn,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}, nil
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return s.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the session would be expired at the given
// time. Useful for testing with deterministic time values.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the client; the hash is stored in the database.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashSessionToken(token)

	return token, hash, nil
}

// HashSessionToken computes the SHA256 hash of a session token.
// This is used to securely store tokens in the database.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks if the plaintext token matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
// Returns (true, nil) on match, (false, nil) on mismatch, or (false, error) on invalid input.
func VerifySessionToken(token, hash string) (bool, error) {
	if token == "" {
		return false, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}
	if hash == "" {
		return false, oops.Code("SESSION_HASH_EMPTY").Errorf("stored hash cannot be empty")
	}
	computed := HashSessionToken(token)
	// Both are hex-encoded SHA256 hashes (64 chars), use constant-time compare
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1, nil
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session. Returns ErrDuplicateToken if the
	// token hash is already present; callers regenerate and retry.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// GetByUsername retrieves all sessions for an account, newest first.
	GetByUsername(ctx context.Context, username string) ([]*Session, error)

	// DeleteByTokenHash removes a session. Deleting an absent session
	// is not an error; revocation is idempotent.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByUsername removes all sessions for an account.
	DeleteByUsername(ctx context.Context, username string) error

	// DeleteExpired removes all expired sessions and returns the count
	// of deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}
