// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package access

import "context"

// Identity is the resolved caller carried through a request context.
// Handlers read it instead of re-validating the session cookie at every
// layer; absence means the request is anonymous.
type Identity struct {
	Username string
	Level    Level
}

type identityKey struct{}

// WithIdentity returns a context carrying the resolved identity.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, ident)
}

// IdentityFrom extracts the identity from the context.
// ok is false for anonymous requests.
func IdentityFrom(ctx context.Context) (ident Identity, ok bool) {
	ident, ok = ctx.Value(identityKey{}).(Identity)
	return ident, ok
}

// AuthorizeContext checks the context's identity against the required
// level. Anonymous contexts are always denied.
func AuthorizeContext(ctx context.Context, need Level) error {
	ident, ok := IdentityFrom(ctx)
	if !ok {
		return ErrUnauthorized
	}
	return Authorize(ident.Level, need)
}
