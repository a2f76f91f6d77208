package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims is the minimal claim set the core cares about: a subject that
// becomes userId once verified. Clients may carry more; it is ignored.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier checks opaque bearer tokens against a shared secret. It is the
// Access Control component's sole dependency on the signing scheme.
type Verifier struct {
	secretKey []byte
	enabled   bool
}

// NewVerifier builds a Verifier. An empty secretKey disables verification:
// every token is treated as present-but-unverifiable.
func NewVerifier(secretKey string) *Verifier {
	return &Verifier{secretKey: []byte(secretKey), enabled: secretKey != ""}
}

// Verify resolves a bearer token to a userId. It returns ok=false whenever
// the token is absent, unverifiable, or verification is disabled — never
// an error the caller must branch on, per the access-control contract of
// "no verified user" rather than a hard rejection.
func (v *Verifier) Verify(token string) (userID string, ok bool) {
	if !v.enabled || token == "" {
		return "", false
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secretKey, nil
	})
	if err != nil || !parsed.Valid {
		return "", false
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

// Sign issues a token for userId with the given lifetime. Exposed mainly
// for tests and local tooling; the core never signs tokens itself — the
// hosted identity provider does, and is treated here only as a verifier.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secretKey)
}
