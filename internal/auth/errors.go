// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package auth

import "errors"

// Sentinel errors surfaced by repositories. Services wrap these with
// oops codes; callers match with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateUsername is returned when an account insert collides
	// with an existing username.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrDuplicateToken is returned when a session insert collides with
	// an existing token hash. Callers retry with a fresh token.
	ErrDuplicateToken = errors.New("session token collision")

	// ErrMalformedToken is returned when a client-supplied cookie value
	// does not decode to a session token.
	ErrMalformedToken = errors.New("malformed session token")
)
