package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const issuer = "linuxgamebench"

// Claims defines the upload token payload. Subject carries the system ID.
type Claims struct {
	SystemID    string `json:"system_id"`
	Fingerprint string `json:"fingerprint"`
	jwtlib.RegisteredClaims
}

// GenerateToken issues a signed upload token for a registered system.
func GenerateToken(systemID, fingerprint, secret string, ttl time.Duration) (string, error) {
	return generate(systemID, fingerprint, secret, ttl, time.Now())
}

func generate(systemID, fingerprint, secret string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("jwt: empty signing secret")
	}
	claims := Claims{
		SystemID:    systemID,
		Fingerprint: fingerprint,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			Subject:   systemID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse validates and extracts claims from token.
func Parse(token string, secret string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}), jwtlib.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.SystemID == "" {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	return claims, nil
}
