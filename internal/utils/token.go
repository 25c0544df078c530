package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
)

type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

type Claims struct {
	Kind TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies self-contained HS256 tokens. The key is
// copied on construction and read-only afterwards, so a codec is safe for
// concurrent use.
type TokenCodec struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
}

func NewTokenCodec(secret []byte, accessTTL, refreshTTL time.Duration) *TokenCodec {
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenCodec{
		key:        key,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		// expiry is checked against the caller's clock in IsValid, not here
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

func (c *TokenCodec) IssueAccess(subject string, now time.Time) (string, error) {
	return c.issue(AccessToken, subject, now, c.accessTTL)
}

func (c *TokenCodec) IssueRefresh(subject string, now time.Time) (string, error) {
	return c.issue(RefreshToken, subject, now, c.refreshTTL)
}

func (c *TokenCodec) issue(kind TokenKind, subject string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, nil
}

// ExtractSubject verifies the signature and returns the subject. Expiry is
// deliberately not considered.
func (c *TokenCodec) ExtractSubject(tokenString string) (string, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// IsValid is true iff the signature verifies, the subject matches and now
// is strictly before the expiry.
func (c *TokenCodec) IsValid(tokenString, expectedSubject string, now time.Time) bool {
	claims, err := c.parse(tokenString)
	if err != nil {
		return false
	}
	return claims.Subject == expectedSubject &&
		claims.ExpiresAt != nil &&
		now.Before(claims.ExpiresAt.Time)
}

// IsValidAccess additionally rejects tokens that were not minted as access tokens.
func (c *TokenCodec) IsValidAccess(tokenString, expectedSubject string, now time.Time) bool {
	claims, err := c.parse(tokenString)
	if err != nil || claims.Kind != AccessToken {
		return false
	}
	return c.IsValid(tokenString, expectedSubject, now)
}

func (c *TokenCodec) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, fmt.Errorf("%w: %v", ErrTokenSignatureInvalid, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
