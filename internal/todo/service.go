package todo

import (
	"context"

	"go.uber.org/zap"

	"github.com/mehmetcc/todolist-authentication-service/internal/utils"
)

type addition struct {
	Todo string `json:"todo" validate:"required,notblank,max=100"`
}

type change struct {
	Todo   string `json:"todo" validate:"required,notblank,max=100"`
	IsDone *bool  `json:"isDone" validate:"required"`
}

type TodoService interface {
	Add(ctx context.Context, ownerID uint, name string) (*Todo, error)
	Update(ctx context.Context, ownerID uint, id, name string, isDone *bool) (*Todo, error)
	Delete(ctx context.Context, ownerID uint, id string) error
	DeleteAll(ctx context.Context, ownerID uint) error
	List(ctx context.Context, ownerID uint, order Order) ([]Todo, error)
}

type todoService struct {
	repo   TodoRepository
	logger *zap.Logger
}

func NewTodoService(repo TodoRepository, logger *zap.Logger) TodoService {
	return &todoService{repo: repo, logger: logger}
}

func (s *todoService) Add(ctx context.Context, ownerID uint, name string) (*Todo, error) {
	if err := utils.Validate(&addition{Todo: name}); err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByName(ctx, ownerID, name)
	if err != nil {
		s.logger.Error("failed to check todo name", zap.Uint("owner", ownerID), zap.Error(err))
		return nil, err
	}
	if exists {
		return nil, ErrTodoAlreadyExists
	}

	todo := &Todo{PersonID: ownerID, Name: name}
	if err := s.repo.Create(ctx, todo); err != nil {
		s.logger.Error("failed to create todo", zap.Uint("owner", ownerID), zap.Error(err))
		return nil, err
	}
	return todo, nil
}

func (s *todoService) Update(ctx context.Context, ownerID uint, id, name string, isDone *bool) (*Todo, error) {
	if err := utils.Validate(&change{Todo: name, IsDone: isDone}); err != nil {
		return nil, err
	}
	todo, err := s.repo.ReadByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	todo.Name = name
	todo.IsDone = *isDone
	if err := s.repo.Update(ctx, todo); err != nil {
		s.logger.Error("failed to update todo", zap.String("todo", id), zap.Error(err))
		return nil, err
	}
	return todo, nil
}

func (s *todoService) Delete(ctx context.Context, ownerID uint, id string) error {
	return s.repo.Delete(ctx, ownerID, id)
}

func (s *todoService) DeleteAll(ctx context.Context, ownerID uint) error {
	n, err := s.repo.DeleteAll(ctx, ownerID)
	if err != nil {
		s.logger.Error("failed to delete todos", zap.Uint("owner", ownerID), zap.Error(err))
		return err
	}
	s.logger.Info("todos deleted", zap.Uint("owner", ownerID), zap.Int64("count", n))
	return nil
}

func (s *todoService) List(ctx context.Context, ownerID uint, order Order) ([]Todo, error) {
	return s.repo.List(ctx, ownerID, order)
}
