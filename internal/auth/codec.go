// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

package auth

import (
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// SessionCookieName is the cookie carrying the encoded session token.
const SessionCookieName = "trackrank_session"

// tokenValuePrefix versions the cookie value format so the layout can
// change without invalidating the decode path for old clients.
const tokenValuePrefix = "v1."

// encodedTokenLen is the hex length of a SessionTokenBytes token.
const encodedTokenLen = SessionTokenBytes * 2

// EncodeToken serializes a plaintext session token into the opaque
// cookie value sent to the client.
func EncodeToken(token string) string {
	return tokenValuePrefix + token
}

// DecodeValue extracts the session token from a client-supplied cookie
// value. Returns ErrMalformedToken if the value does not match the
// expected format. Nothing in the value is trusted beyond the opaque
// token itself; identity and expiry come from the store lookup.
func DecodeValue(raw string) (string, error) {
	token, ok := strings.CutPrefix(raw, tokenValuePrefix)
	if !ok {
		return "", oops.Code("SESSION_TOKEN_MALFORMED").
			With("reason", "missing version prefix").
			Wrap(ErrMalformedToken)
	}
	if len(token) != encodedTokenLen {
		return "", oops.Code("SESSION_TOKEN_MALFORMED").
			With("reason", "wrong token length").
			Wrap(ErrMalformedToken)
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", oops.Code("SESSION_TOKEN_MALFORMED").
				With("reason", "non-hex character").
				Wrap(ErrMalformedToken)
		}
	}
	return token, nil
}

// SessionCookie builds the cookie the transport layer sets after login.
// The value is script-inaccessible, transmitted only over TLS, and
// expires together with the underlying session.
func SessionCookie(session *Session, token string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    EncodeToken(token),
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredSessionCookie builds the cookie that clears a revoked session
// on the client.
func ExpiredSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
