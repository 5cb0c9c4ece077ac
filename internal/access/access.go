// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

// Package access provides authorization for TrackRank.
//
// Authorization is a single totally ordered integer scale: a caller
// holding level L may perform any operation requiring level L or below.
// There is no role-set or permission-list model; every privileged
// operation names the minimum level it requires and is checked at the
// point of use, never cached across requests.
package access

import (
	"fmt"

	"github.com/samber/oops"
)

// Level is an ordered access tier. Higher values denote broader privilege.
type Level int

// Access tiers, lowest to highest. The zero value is a regular user so
// that newly registered accounts carry no privilege by default.
const (
	LevelUser   Level = 0
	LevelEditor Level = 1
	LevelAdmin  Level = 2
)

// ErrUnauthorized is returned when a caller's level is below the
// required minimum.
var ErrUnauthorized = oops.Code("ACCESS_UNAUTHORIZED").Errorf("insufficient access level")

// String returns a human-readable tier name.
func (l Level) String() string {
	switch l {
	case LevelUser:
		return "user"
	case LevelEditor:
		return "editor"
	case LevelAdmin:
		return "admin"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a tier name to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "user":
		return LevelUser, nil
	case "editor":
		return LevelEditor, nil
	case "admin":
		return LevelAdmin, nil
	default:
		return 0, oops.Code("ACCESS_UNKNOWN_LEVEL").With("level", s).Errorf("unknown access level %q", s)
	}
}

// Authorize reports whether a caller holding level have may perform an
// operation requiring level need. Returns ErrUnauthorized when denied.
func Authorize(have, need Level) error {
	if have < need {
		return oops.Code("ACCESS_UNAUTHORIZED").
			With("have", have.String()).
			With("need", need.String()).
			Wrap(ErrUnauthorized)
	}
	return nil
}
