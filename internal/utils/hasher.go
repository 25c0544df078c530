package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrHashingPasswordFailed = errors.New("hashing password failed")

// PasswordHasher is a salted one-way hash over user secrets.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	// Verify never fails; a malformed digest simply does not match.
	Verify(secret, digest string) bool
}

type bcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", errors.Join(ErrHashingPasswordFailed, err)
	}
	return string(hashed), nil
}

// bcrypt compares digests in constant time.
func (h *bcryptHasher) Verify(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
