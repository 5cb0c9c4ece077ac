// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

// Package auth provides the account and session authentication core
// for TrackRank.
//
// # Domain Types
//
// Domain types (Account, Session) should be created using their
// constructors:
//   - NewAccount - creates an Account with validated username
//   - NewSession - creates a Session with a positive TTL
//
// Direct struct initialization bypasses validation and may create
// invalid state. Repository implementations receive pre-validated
// types from these constructors.
//
// # Services
//
// Service coordinates registration, login, session validation,
// revocation and pruning over AccountRepository, SessionRepository and
// PasswordHasher. The durable store is the single source of truth:
// session validation always re-fetches the owning account, so account
// deletion or demotion takes effect on the next request.
//
// The raw session token exists only on the client; the database stores
// its SHA-256 digest. Cookie encoding and decoding of the token lives
// in codec.go.
package auth
