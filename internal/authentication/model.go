package authentication

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
)

type TokenState int

const (
	TokenActive TokenState = iota
	TokenInvalidated
)

func (s TokenState) String() string {
	if s == TokenInvalidated {
		return "invalidated"
	}
	return "active"
}

// RefreshToken is one issued long-lived credential. Rows are append-only:
// the only mutation ever applied is Active -> Invalidated.
//
// The partial unique index allows at most one active row per person.
type RefreshToken struct {
	gorm.Model
	PersonID    uint      `gorm:"not null;index;uniqueIndex:idx_refresh_tokens_active_person,where:invalidated = false"`
	TokenHash   string    `gorm:"uniqueIndex;not null"`
	Invalidated bool      `gorm:"not null;default:false"`
	ExpiresAt   time.Time `gorm:"index;not null"`

	// Token is the raw value handed to the client. It is only populated on
	// the record returned by Issue and is never persisted.
	Token string `gorm:"-"`
}

func (r *RefreshToken) State() TokenState {
	if r.Invalidated {
		return TokenInvalidated
	}
	return TokenActive
}

func (r *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// hashToken is the lookup key stored in place of the raw value.
func hashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
