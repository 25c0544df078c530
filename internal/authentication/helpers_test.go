package authentication

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mehmetcc/todolist-authentication-service/internal/person"
	"github.com/mehmetcc/todolist-authentication-service/internal/utils"
)

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = time.Hour
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	db      *gorm.DB
	store   RefreshTokenStore
	persons person.PersonService
	codec   *utils.TokenCodec
	service *authenticationService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := utils.InitDatabase(utils.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&person.Person{}, &RefreshToken{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestEnv(t *testing.T, limiter LoginLimiter, options ServiceOptions) *testEnv {
	t.Helper()
	db := newTestDB(t)
	logger := zaptest.NewLogger(t)
	hasher := utils.NewBcryptHasher(bcrypt.MinCost)
	persons := person.NewPersonService(person.NewPersonRepository(db), hasher, logger)
	store := NewRefreshTokenStore(db, testRefreshTTL)
	codec := utils.NewTokenCodec(testSecret, testAccessTTL, testRefreshTTL)

	svc := NewAuthenticationService(persons, store, codec, hasher, limiter, logger, options)
	return &testEnv{
		db:      db,
		store:   store,
		persons: persons,
		codec:   codec,
		service: svc.(*authenticationService),
	}
}

func (e *testEnv) registerAlice(t *testing.T) *person.Person {
	t.Helper()
	p, err := e.service.Register(context.Background(), "Alice", "alice@x.com", "password1")
	require.NoError(t, err)
	return p
}

func (e *testEnv) activeCount(t *testing.T, ownerID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&RefreshToken{}).
		Where("person_id = ? AND invalidated = ?", ownerID, false).
		Count(&n).Error)
	return n
}
