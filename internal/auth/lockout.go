// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package auth

import (
	"time"
)

// Failed-login lockout policy. The expensive argon2id verification is
// the login hot path; bounding repeated failures keeps it from being
// usable as a brute-force or CPU amplification vector.
const (
	// LockoutDuration is the time an account stays locked after too many failures.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of consecutive failures that triggers a lockout.
	LockoutThreshold = 7
)

// IsLockedOut returns true if the lockout time is in the future.
func IsLockedOut(lockedUntil *time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(time.Now())
}

// ComputeLockoutTime returns the lockout timestamp for the given
// failure count, or nil if failures < LockoutThreshold.
func ComputeLockoutTime(failures int) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	lockout := time.Now().Add(LockoutDuration)
	return &lockout
}
