package proxy

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenParam is the query parameter carrying the bearer token on the
// upgrade request.
const TokenParam = "token"

// ResolveToken returns the bearer token for r. A non-empty token query
// parameter wins; otherwise fallback is used. When neither is present it
// returns an *Error of KindTokenMissing. r may be nil.
func ResolveToken(r *http.Request, fallback string) (string, error) {
	if r != nil && r.URL != nil {
		if token := r.URL.Query().Get(TokenParam); token != "" {
			return token, nil
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", ErrTokenMissing
}

// TokenExpiry returns the exp claim of token if it is a JWT. The signature
// is not verified; the device does that. ok is false for opaque tokens and
// JWTs without exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	nd, err := claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, false
	}
	return nd.Time, true
}
