package backend

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired marks a credential that is already dead client-side.
var ErrTokenExpired = errors.New("credential token expired")

// The tracking service verifies signatures; the agent only inspects its own
// credential so it never dials with a token the service is guaranteed to
// reject.

// TokenExpiry reports the exp claim of a JWT without verifying it.
func TokenExpiry(token string) (time.Time, error) {
	claims, err := parseUnverified(token)
	if err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}
	return exp.Time, nil
}

// TokenSubject reports the sub claim (carrier or watcher ID) of a JWT
// without verifying it.
func TokenSubject(token string) (string, error) {
	claims, err := parseUnverified(token)
	if err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("token has no sub claim")
	}
	return sub, nil
}

// CheckToken returns ErrTokenExpired when the credential's exp claim has
// passed. Tokens without an exp claim pass the check.
func CheckToken(token string, now time.Time) error {
	exp, err := TokenExpiry(token)
	if err != nil {
		return nil // unreadable or claimless tokens are the service's call
	}
	if now.After(exp) {
		return fmt.Errorf("%w: exp %s", ErrTokenExpired, exp.UTC().Format(time.RFC3339))
	}
	return nil
}

func parseUnverified(token string) (jwtlib.MapClaims, error) {
	claims := jwtlib.MapClaims{}
	_, _, err := jwtlib.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}
