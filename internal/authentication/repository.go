package authentication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mehmetcc/todolist-authentication-service/internal/utils"
)

var (
	ErrActiveTokenExists    = errors.New("person already has an active refresh token")
	ErrUnresponsiveDatabase = errors.New("error occurred during writing to refresh tokens table")
)

// RefreshTokenStore persists issued refresh tokens. Lookups report absence
// as a nil record with a nil error; errors are reserved for storage failures.
type RefreshTokenStore interface {
	// Issue persists a new active record expiring at now+ttl. Callers
	// invalidate the owner's active record first.
	Issue(ctx context.Context, ownerID uint, value string, now time.Time) (*RefreshToken, error)
	FindActiveFor(ctx context.Context, ownerID uint) (*RefreshToken, error)
	FindByValue(ctx context.Context, value string) (*RefreshToken, error)
	FindActiveByValue(ctx context.Context, value string) (*RefreshToken, error)
	// Invalidate moves the record from TokenActive to TokenInvalidated. It
	// reports whether this call performed the transition; a record already
	// in TokenInvalidated is a no-op and never touches the database.
	Invalidate(ctx context.Context, record *RefreshToken) (bool, error)
	InvalidateActiveFor(ctx context.Context, ownerID uint) (int64, error)
	// Transaction runs fn against a store bound to a single database
	// transaction, committing only if fn returns nil.
	Transaction(ctx context.Context, fn func(store RefreshTokenStore) error) error
}

type refreshTokenStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewRefreshTokenStore(db *gorm.DB, ttl time.Duration) RefreshTokenStore {
	return &refreshTokenStore{db: db, ttl: ttl}
}

func (r *refreshTokenStore) Issue(ctx context.Context, ownerID uint, value string, now time.Time) (*RefreshToken, error) {
	record := &RefreshToken{
		PersonID:    ownerID,
		TokenHash:   hashToken(value),
		Invalidated: false,
		ExpiresAt:   now.Add(r.ttl).UTC(),
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if utils.IsUniqueViolation(err) {
			return nil, ErrActiveTokenExists
		}
		return nil, fmt.Errorf("failed to create refresh token record: %w", err)
	}
	record.Token = value
	return record, nil
}

func (r *refreshTokenStore) FindActiveFor(ctx context.Context, ownerID uint) (*RefreshToken, error) {
	return r.first(ctx, r.db.
		Where("person_id = ?", ownerID).
		Where("invalidated = ?", false))
}

func (r *refreshTokenStore) FindByValue(ctx context.Context, value string) (*RefreshToken, error) {
	return r.first(ctx, r.db.
		Where("token_hash = ?", hashToken(value)))
}

func (r *refreshTokenStore) FindActiveByValue(ctx context.Context, value string) (*RefreshToken, error) {
	return r.first(ctx, r.db.
		Where("token_hash = ?", hashToken(value)).
		Where("invalidated = ?", false))
}

func (r *refreshTokenStore) first(ctx context.Context, query *gorm.DB) (*RefreshToken, error) {
	var record RefreshToken
	err := query.WithContext(ctx).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, ErrUnresponsiveDatabase
	}
	return &record, nil
}

func (r *refreshTokenStore) Invalidate(ctx context.Context, record *RefreshToken) (bool, error) {
	if record.State() == TokenInvalidated {
		return false, nil
	}
	res := r.db.WithContext(ctx).
		Model(&RefreshToken{}).
		Where("id = ?", record.ID).
		Where("invalidated = ?", false).
		Update("invalidated", true)
	if res.Error != nil {
		return false, ErrUnresponsiveDatabase
	}
	record.Invalidated = true
	return res.RowsAffected == 1, nil
}

func (r *refreshTokenStore) InvalidateActiveFor(ctx context.Context, ownerID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&RefreshToken{}).
		Where("person_id = ?", ownerID).
		Where("invalidated = ?", false).
		Update("invalidated", true)
	if res.Error != nil {
		return 0, ErrUnresponsiveDatabase
	}
	return res.RowsAffected, nil
}

func (r *refreshTokenStore) Transaction(ctx context.Context, fn func(store RefreshTokenStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&refreshTokenStore{db: tx, ttl: r.ttl})
	})
}
