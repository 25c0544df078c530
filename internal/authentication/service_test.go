package authentication

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehmetcc/todolist-authentication-service/internal/person"
	"github.com/mehmetcc/todolist-authentication-service/internal/utils"
)

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()

	p := env.registerAlice(t)
	assert.NotZero(t, p.ID)
	assert.NotEqual(t, "password1", p.Password)

	_, err := env.service.Register(ctx, "Alice Again", "alice@x.com", "password2")
	assert.ErrorIs(t, err, person.ErrEmailAlreadyExists)
}

func TestRegister_ValidationFailure(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})

	_, err := env.service.Register(context.Background(), "Al", "not-an-email", "short")
	var validationErr *utils.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "name")
	assert.Contains(t, validationErr.Fields, "email")
	assert.Contains(t, validationErr.Fields, "password")
}

func TestRegister_IssuesNoToken(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	p := env.registerAlice(t)

	record, err := env.store.FindActiveFor(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestLogin_CreatesSingleActiveToken(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	alice := env.registerAlice(t)

	pair, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(1), env.activeCount(t, alice.ID))

	record, err := env.store.FindActiveByValue(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.ExpiresAt.Equal(pair.RefreshExpiresAt))
}

func TestLogin_InvalidCredentialsAreUniform(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	env.registerAlice(t)

	_, wrongPassword := env.service.Login(ctx, "alice@x.com", "password2")
	_, unknownEmail := env.service.Login(ctx, "bob@x.com", "password1")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLogin_SecondLoginInvalidatesFirst(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	alice := env.registerAlice(t)

	first, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)
	second, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, int64(1), env.activeCount(t, alice.ID))

	_, err = env.service.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.service.Refresh(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestLogin_ConcurrentLoginsLeaveOneActive(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	alice := env.registerAlice(t)

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.service.Login(ctx, "alice@x.com", "password1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), env.activeCount(t, alice.ID))
}

func TestLogin_UpdatesLastSeen(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	alice := env.registerAlice(t)

	_, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)

	reloaded, err := env.persons.ReadPersonByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.LastSeen.Before(alice.LastSeen))
}

func TestRefresh_RotatesToken(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	alice := env.registerAlice(t)

	login, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)

	rotated, err := env.service.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)
	assert.NotEqual(t, login.AccessToken, rotated.AccessToken)
	assert.Equal(t, int64(1), env.activeCount(t, alice.ID))

	_, err = env.service.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	old, err := env.store.FindByValue(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, TokenInvalidated, old.State())
}

func TestRefresh_ExpiredTokenIsInvalidated(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	alice := env.registerAlice(t)

	login, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)

	env.service.now = func() time.Time { return time.Now().Add(testRefreshTTL + time.Minute) }
	_, err = env.service.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	record, err := env.store.FindByValue(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.Invalidated)
	assert.Equal(t, int64(0), env.activeCount(t, alice.ID))
}

func TestRefresh_RejectsGarbageAndForeignTokens(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	env.registerAlice(t)

	login, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)

	forged, err := utils.NewTokenCodec([]byte("ffffffffffffffffffffffffffffffff"), time.Minute, time.Hour).
		IssueRefresh("alice@x.com", time.Now())
	require.NoError(t, err)
	unknownSubject, err := env.codec.IssueRefresh("bob@x.com", time.Now())
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":         "garbage",
		"forged":          forged,
		"unknown subject": unknownSubject,
		"access token":    login.AccessToken,
	} {
		_, err := env.service.Refresh(ctx, tok)
		require.ErrorIs(t, err, ErrUnauthorized, name)
		assert.True(t, strings.HasPrefix(err.Error(), ErrUnauthorized.Error()), name)
	}
}

func TestRefresh_ConcurrentReuseHasOneWinner(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	alice := env.registerAlice(t)

	login, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.Refresh(ctx, login.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if assert.ErrorIs(t, err, ErrUnauthorized) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, rejected)
	assert.Equal(t, int64(1), env.activeCount(t, alice.ID))
}

func TestLogout_InvalidatesAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	alice := env.registerAlice(t)

	login, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)

	require.NoError(t, env.service.Logout(ctx, alice, login.RefreshToken))
	assert.Equal(t, int64(0), env.activeCount(t, alice.ID))

	_, err = env.service.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.NoError(t, env.service.Logout(ctx, alice, login.RefreshToken))
}

func TestLogout_UnknownTokenIsUnauthorized(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	alice := env.registerAlice(t)

	err := env.service.Logout(context.Background(), alice, "never-issued")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogout_RejectsAnotherPersonsToken(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	alice := env.registerAlice(t)
	bob, err := env.service.Register(ctx, "Bobby", "bob@x.com", "password1")
	require.NoError(t, err)

	login, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)

	err = env.service.Logout(ctx, bob, login.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int64(1), env.activeCount(t, alice.ID))
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	alice := env.registerAlice(t)

	err := env.service.ChangePassword(ctx, alice, PasswordChange{
		OldPassword: "wrong-password", NewPassword: "password2", ConfirmPassword: "password2",
	})
	assert.ErrorIs(t, err, ErrOldPasswordMismatch)

	err = env.service.ChangePassword(ctx, alice, PasswordChange{
		OldPassword: "password1", NewPassword: "password2", ConfirmPassword: "password3",
	})
	assert.ErrorIs(t, err, ErrPasswordConfirmationMismatch)

	_, err = env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err, "failed changes must not persist")

	err = env.service.ChangePassword(ctx, alice, PasswordChange{
		OldPassword: "password1", NewPassword: "password2", ConfirmPassword: "password2",
	})
	require.NoError(t, err)

	_, err = env.service.Login(ctx, "alice@x.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.service.Login(ctx, "alice@x.com", "password2")
	assert.NoError(t, err)
}

func TestChangePassword_Validation(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	alice := env.registerAlice(t)

	err := env.service.ChangePassword(context.Background(), alice, PasswordChange{OldPassword: "password1"})
	var validationErr *utils.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "must not be blank", validationErr.Fields["newPassword"])
	assert.Equal(t, "must not be blank", validationErr.Fields["confirmPassword"])
}

func TestChangePassword_SessionsKeptByDefault(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	alice := env.registerAlice(t)

	login, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)

	require.NoError(t, env.service.ChangePassword(ctx, alice, PasswordChange{
		OldPassword: "password1", NewPassword: "password2", ConfirmPassword: "password2",
	}))

	_, err = env.service.Refresh(ctx, login.RefreshToken)
	assert.NoError(t, err)
}

func TestChangePassword_InvalidatesSessionsWhenEnabled(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{InvalidateSessionsOnPasswordChange: true})
	ctx := context.Background()
	alice := env.registerAlice(t)

	login, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)

	require.NoError(t, env.service.ChangePassword(ctx, alice, PasswordChange{
		OldPassword: "password1", NewPassword: "password2", ConfirmPassword: "password2",
	}))

	assert.Equal(t, int64(0), env.activeCount(t, alice.ID))
	_, err = env.service.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()
	alice := env.registerAlice(t)

	login, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)

	user, err := env.service.Authenticate(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	_, err = env.service.Authenticate(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized, "refresh tokens are not bearer credentials")

	env.service.now = func() time.Time { return time.Now().Add(testAccessTTL + time.Second) }
	_, err = env.service.Authenticate(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisLoginLimiter(client, LockoutConfig{Threshold: 3, Window: time.Minute})
	env := newTestEnv(t, limiter, ServiceOptions{})
	ctx := context.Background()
	env.registerAlice(t)

	for i := 0; i < 3; i++ {
		_, err := env.service.Login(ctx, "alice@x.com", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := env.service.Login(ctx, "alice@x.com", "password1")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	mr.FastForward(2 * time.Minute)
	_, err = env.service.Login(ctx, "alice@x.com", "password1")
	assert.NoError(t, err)
}

func TestLogin_LockoutFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisLoginLimiter(client, LockoutConfig{Threshold: 3, Window: time.Minute})
	env := newTestEnv(t, limiter, ServiceOptions{})
	env.registerAlice(t)

	mr.Close()
	_, err := env.service.Login(context.Background(), "alice@x.com", "password1")
	assert.NoError(t, err)
}

func TestScenario_RefreshReplayIsRejected(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{})
	ctx := context.Background()

	_, err := env.service.Register(ctx, "Alice", "alice@x.com", "password1")
	require.NoError(t, err)

	r1, err := env.service.Login(ctx, "alice@x.com", "password1")
	require.NoError(t, err)

	r2, err := env.service.Refresh(ctx, r1.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, r1.RefreshToken, r2.RefreshToken)

	_, err = env.service.Refresh(ctx, r1.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

type failingInvalidationStore struct {
	RefreshTokenStore
}

func (failingInvalidationStore) InvalidateActiveFor(context.Context, uint) (int64, error) {
	return 0, ErrUnresponsiveDatabase
}

func TestChangePassword_InvalidationFailureKeepsOldPassword(t *testing.T) {
	env := newTestEnv(t, nil, ServiceOptions{InvalidateSessionsOnPasswordChange: true})
	ctx := context.Background()
	alice := env.registerAlice(t)
	env.service.store = failingInvalidationStore{RefreshTokenStore: env.store}

	err := env.service.ChangePassword(ctx, alice, PasswordChange{
		OldPassword: "password1", NewPassword: "password2", ConfirmPassword: "password2",
	})
	assert.ErrorIs(t, err, ErrUnresponsiveDatabase)

	_, err = env.service.Login(ctx, "alice@x.com", "password1")
	assert.NoError(t, err)
	_, err = env.service.Login(ctx, "alice@x.com", "password2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
