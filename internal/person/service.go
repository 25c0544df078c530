package person

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mehmetcc/todolist-authentication-service/internal/utils"
)

type registration struct {
	Name     string `json:"name" validate:"required,notblank,min=5,max=30"`
	Email    string `json:"email" validate:"required,notblank,max=30,email"`
	Password string `json:"password" validate:"required,notblank,min=8"`
}

type profileUpdate struct {
	Name *string `json:"name" validate:"omitempty,notblank,min=5,max=30"`
}

type PersonService interface {
	CreatePerson(ctx context.Context, name, email, password string) (*Person, error)
	ReadPersonByEmail(ctx context.Context, email string) (*Person, error)
	ReadPersonByID(ctx context.Context, id uint) (*Person, error)
	UpdateName(ctx context.Context, id uint, name *string) (*Person, error)
	UpdatePassword(ctx context.Context, id uint, password string) error
	UpdateLastSeen(ctx context.Context, id uint) error
}

type personService struct {
	repo   PersonRepository
	hasher utils.PasswordHasher
	logger *zap.Logger
}

func NewPersonService(repo PersonRepository, hasher utils.PasswordHasher, logger *zap.Logger) PersonService {
	return &personService{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

/** CREATE */
func (s *personService) CreatePerson(ctx context.Context, name, email, password string) (*Person, error) {
	if err := utils.Validate(&registration{Name: name, Email: email, Password: password}); err != nil {
		s.logger.Warn("registration validation failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to check email availability", zap.Error(err))
		return nil, err
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return nil, utils.ErrHashingPasswordFailed
	}

	person := NewPerson(name, email, hashed)

	if err := s.repo.Create(ctx, person); err != nil {
		s.logger.Error("failed to create person in repository", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	return person, nil
}

/** READ */
func (s *personService) ReadPersonByEmail(ctx context.Context, email string) (*Person, error) {
	person, err := s.repo.ReadByEmail(ctx, email)
	if err != nil {
		s.logger.Debug("failed to get person by email", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	return person, nil
}

func (s *personService) ReadPersonByID(ctx context.Context, id uint) (*Person, error) {
	person, err := s.repo.ReadByID(ctx, id)
	if err != nil {
		s.logger.Debug("failed to get person by ID", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return person, nil
}

/** UPDATE */

// UpdateName leaves the record untouched when name is nil.
func (s *personService) UpdateName(ctx context.Context, id uint, name *string) (*Person, error) {
	if err := utils.Validate(&profileUpdate{Name: name}); err != nil {
		return nil, err
	}

	if name != nil {
		if err := s.repo.Update(ctx, id, map[string]interface{}{"name": *name}); err != nil {
			s.logger.Error("failed to update name in repository", zap.Uint("id", id), zap.Error(err))
			return nil, err
		}
	}

	person, err := s.repo.ReadByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to read person after name update", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return person, nil
}

func (s *personService) UpdatePassword(ctx context.Context, id uint, password string) error {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return utils.ErrHashingPasswordFailed
	}

	if err := s.repo.Update(ctx, id, map[string]interface{}{"password": hashed}); err != nil {
		s.logger.Error("failed to update password in repository", zap.Uint("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *personService) UpdateLastSeen(ctx context.Context, id uint) error {
	if err := s.repo.Update(ctx, id, map[string]interface{}{"last_seen": time.Now().UTC()}); err != nil {
		s.logger.Error("failed to update last seen in repository", zap.Uint("id", id), zap.Error(err))
		return err
	}
	return nil
}
