package authentication

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/mehmetcc/todolist-authentication-service/internal/person"
	"github.com/mehmetcc/todolist-authentication-service/internal/utils"
)

var (
	ErrInvalidCredentials           = errors.New("incorrect username or password")
	ErrUnauthorized                 = errors.New("unauthorized")
	ErrTooManyAttempts              = errors.New("too many failed login attempts")
	ErrOldPasswordMismatch          = errors.New("old password does not match")
	ErrPasswordConfirmationMismatch = errors.New("new password and confirm password do not match")
	ErrLoginFailed                  = errors.New("login failed")
)

const (
	issueAttempts = 3
	issueBackoff  = 20 * time.Millisecond
	timingDummy   = "timing-equaliser-password"
)

// TokenPair is what a successful login or refresh hands back. Only the
// refresh token is persisted; the access token is self-contained.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// PasswordChange is the payload of ChangePassword.
type PasswordChange struct {
	OldPassword     string `json:"oldPassword" validate:"required,notblank,min=8"`
	NewPassword     string `json:"newPassword" validate:"required,notblank,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,notblank,min=8"`
}

type AuthenticationService interface {
	Register(ctx context.Context, name, email, password string) (*person.Person, error)
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, caller *person.Person, refreshToken string) error
	ChangePassword(ctx context.Context, caller *person.Person, change PasswordChange) error
	Authenticate(ctx context.Context, accessToken string) (*person.Person, error)
}

type ServiceOptions struct {
	// InvalidateSessionsOnPasswordChange revokes the active refresh token
	// as part of a password change. Off by default.
	InvalidateSessionsOnPasswordChange bool
}

type authenticationService struct {
	personService person.PersonService
	store         RefreshTokenStore
	codec         *utils.TokenCodec
	hasher        utils.PasswordHasher
	limiter       LoginLimiter
	logger        *zap.Logger
	options       ServiceOptions
	now           func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthenticationService(
	personService person.PersonService,
	store RefreshTokenStore,
	codec *utils.TokenCodec,
	hasher utils.PasswordHasher,
	limiter LoginLimiter,
	logger *zap.Logger,
	options ServiceOptions,
) AuthenticationService {
	if limiter == nil {
		limiter = NewNoopLoginLimiter()
	}
	return &authenticationService{
		personService: personService,
		store:         store,
		codec:         codec,
		hasher:        hasher,
		limiter:       limiter,
		logger:        logger,
		options:       options,
		now:           time.Now,
	}
}

func unauthorized(cause string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, cause)
}

func (a *authenticationService) Register(ctx context.Context, name, email, password string) (*person.Person, error) {
	p, err := a.personService.CreatePerson(ctx, name, email, password)
	if err != nil {
		return nil, err
	}
	a.logger.Info("person registered", zap.Uint("id", p.ID))
	return p, nil
}

func (a *authenticationService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	locked, err := a.limiter.Locked(ctx, email)
	if err != nil {
		a.logger.Warn("lockout check failed, continuing", zap.Error(err))
	}
	if locked {
		return nil, ErrTooManyAttempts
	}

	user, err := a.personService.ReadPersonByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, person.ErrPersonNotFound) {
			a.hasher.Verify(password, a.timingDummyHash())
			a.recordFailure(ctx, email)
			return nil, ErrInvalidCredentials
		}
		a.logger.Error("failed to load person for login", zap.Error(err))
		return nil, ErrLoginFailed
	}
	if !a.hasher.Verify(password, user.Password) {
		a.recordFailure(ctx, email)
		return nil, ErrInvalidCredentials
	}

	pair, err := a.startSession(ctx, user)
	if err != nil {
		a.logger.Error("failed to start session", zap.Uint("id", user.ID), zap.Error(err))
		return nil, ErrLoginFailed
	}

	if err := a.limiter.Reset(ctx, email); err != nil {
		a.logger.Warn("failed to reset login failures", zap.Error(err))
	}
	if err := a.personService.UpdateLastSeen(ctx, user.ID); err != nil {
		a.logger.Warn("failed to update last seen", zap.Uint("id", user.ID), zap.Error(err))
	}
	return pair, nil
}

// startSession invalidates whatever session the user had and opens a new
// one in the same transaction. A concurrent login racing for the same user
// trips the active-token index and is retried.
func (a *authenticationService) startSession(ctx context.Context, user *person.Person) (*TokenPair, error) {
	var pair *TokenPair
	operation := func() error {
		err := a.store.Transaction(ctx, func(store RefreshTokenStore) error {
			n, err := store.InvalidateActiveFor(ctx, user.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				a.logger.Info("previous session invalidated by new login", zap.Uint("id", user.ID))
			}
			pair, err = a.issue(ctx, store, user, a.now())
			return err
		})
		if errors.Is(err, ErrActiveTokenExists) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(issueBackoff), issueAttempts-1),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return pair, nil
}

func (a *authenticationService) issue(ctx context.Context, store RefreshTokenStore, user *person.Person, now time.Time) (*TokenPair, error) {
	access, err := a.codec.IssueAccess(user.Email, now)
	if err != nil {
		return nil, err
	}
	refresh, err := a.codec.IssueRefresh(user.Email, now)
	if err != nil {
		return nil, err
	}
	record, err := store.Issue(ctx, user.ID, refresh, now)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     record.Token,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

// Refresh rotates the presented token. Every rejection wraps
// ErrUnauthorized; the precise cause only reaches the logs.
func (a *authenticationService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	subject, err := a.codec.ExtractSubject(refreshToken)
	if err != nil {
		a.logger.Info("refresh rejected", zap.String("reason", "unparsable token"), zap.Error(err))
		return nil, unauthorized("unparsable token")
	}
	user, err := a.personService.ReadPersonByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, person.ErrPersonNotFound) {
			a.logger.Info("refresh rejected", zap.String("reason", "unknown subject"))
			return nil, unauthorized("unknown subject")
		}
		return nil, err
	}

	now := a.now()
	var (
		pair    *TokenPair
		expired bool
	)
	err = a.store.Transaction(ctx, func(store RefreshTokenStore) error {
		record, err := store.FindActiveByValue(ctx, refreshToken)
		if err != nil {
			return err
		}
		if record == nil {
			return unauthorized("token not active")
		}
		if record.PersonID != user.ID {
			return unauthorized("token owner mismatch")
		}
		swapped, err := store.Invalidate(ctx, record)
		if err != nil {
			return err
		}
		if !swapped {
			return unauthorized("token already rotated")
		}
		if record.IsExpired(now) {
			// commit the invalidation, issue nothing
			expired = true
			return nil
		}
		pair, err = a.issue(ctx, store, user, now)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			a.logger.Info("refresh rejected", zap.Uint("id", user.ID), zap.Error(err))
			return nil, err
		}
		a.logger.Error("refresh failed", zap.Uint("id", user.ID), zap.Error(err))
		return nil, err
	}
	if expired {
		a.logger.Info("refresh rejected", zap.Uint("id", user.ID), zap.String("reason", "refresh token expired"))
		return nil, unauthorized("refresh token expired")
	}
	return pair, nil
}

// Logout looks the token up regardless of state, so logging out twice with
// the same token succeeds both times.
func (a *authenticationService) Logout(ctx context.Context, caller *person.Person, refreshToken string) error {
	record, err := a.store.FindByValue(ctx, refreshToken)
	if err != nil {
		a.logger.Error("logout lookup failed", zap.Error(err))
		return err
	}
	if record == nil {
		return unauthorized("token unknown")
	}
	if caller != nil && record.PersonID != caller.ID {
		a.logger.Warn("logout with another person's token", zap.Uint("id", caller.ID))
		return unauthorized("token owner mismatch")
	}
	previous := record.State()
	if _, err := a.store.Invalidate(ctx, record); err != nil {
		a.logger.Error("logout invalidation failed", zap.Error(err))
		return err
	}
	a.logger.Info("logged out", zap.Uint("id", record.PersonID), zap.Stringer("previous_state", previous))
	return nil
}

func (a *authenticationService) ChangePassword(ctx context.Context, caller *person.Person, change PasswordChange) error {
	if err := utils.Validate(&change); err != nil {
		return err
	}
	if !a.hasher.Verify(change.OldPassword, caller.Password) {
		return ErrOldPasswordMismatch
	}
	if change.NewPassword != change.ConfirmPassword {
		return ErrPasswordConfirmationMismatch
	}

	// sessions go first so a failure here leaves the old password in place
	if a.options.InvalidateSessionsOnPasswordChange {
		n, err := a.store.InvalidateActiveFor(ctx, caller.ID)
		if err != nil {
			a.logger.Error("failed to invalidate sessions before password change", zap.Uint("id", caller.ID), zap.Error(err))
			return err
		}
		a.logger.Info("sessions invalidated for password change", zap.Uint("id", caller.ID), zap.Int64("count", n))
	}

	return a.personService.UpdatePassword(ctx, caller.ID, change.NewPassword)
}

// Authenticate resolves a bearer access token to its Person without touching
// the refresh token store.
func (a *authenticationService) Authenticate(ctx context.Context, accessToken string) (*person.Person, error) {
	subject, err := a.codec.ExtractSubject(accessToken)
	if err != nil {
		return nil, unauthorized("unparsable access token")
	}
	user, err := a.personService.ReadPersonByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, person.ErrPersonNotFound) {
			return nil, unauthorized("unknown subject")
		}
		return nil, err
	}
	if !a.codec.IsValidAccess(accessToken, user.Email, a.now()) {
		return nil, unauthorized("invalid or expired access token")
	}
	return user, nil
}

func (a *authenticationService) recordFailure(ctx context.Context, email string) {
	if err := a.limiter.RecordFailure(ctx, email); err != nil {
		a.logger.Warn("failed to record login failure", zap.Error(err))
	}
}

func (a *authenticationService) timingDummyHash() string {
	a.dummyOnce.Do(func() {
		hash, err := a.hasher.Hash(timingDummy)
		if err == nil {
			a.dummyHash = hash
		}
	})
	return a.dummyHash
}
