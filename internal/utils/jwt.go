package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim of a JWT bearer token without verifying
// its signature. The agent never holds the remote store's signing key; the
// claim is only used to fail fast on a token that is certainly expired.
//
// ok is false for opaque (non-JWT) tokens and for JWTs without an exp claim.
//
// Example usage:
//
//	if exp, ok := utils.TokenExpiry(token); ok && exp.Before(time.Now()) {
//	    // ask the operator for a new token
//	}
func TokenExpiry(token string) (exp time.Time, ok bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}

	claims, isMap := parsed.Claims.(jwt.MapClaims)
	if !isMap {
		return time.Time{}, false
	}

	numeric, err := claims.GetExpirationTime()
	if err != nil || numeric == nil {
		return time.Time{}, false
	}

	return numeric.Time, true
}

// ParseBearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func ParseBearerToken(authorizationHeader string) (string, error) {
	parts := strings.Split(strings.TrimSpace(authorizationHeader), " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("invalid authorization header")
	}
	return parts[1], nil
}
