package todo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mehmetcc/todolist-authentication-service/internal/utils"
)

var (
	ErrTodoAlreadyExists    = errors.New("todo already exists")
	ErrTodoNotFound         = errors.New("todo not found")
	ErrUnresponsiveDatabase = errors.New("error occurred during writing to todos table")
)

// Order selects how List sorts the owner's items.
type Order int

const (
	OrderCreated Order = iota
	OrderDoneFirst
	OrderName
)

type TodoRepository interface {
	Create(ctx context.Context, todo *Todo) error
	ExistsByName(ctx context.Context, ownerID uint, name string) (bool, error)
	ReadByID(ctx context.Context, ownerID uint, id string) (*Todo, error)
	List(ctx context.Context, ownerID uint, order Order) ([]Todo, error)
	Update(ctx context.Context, todo *Todo) error
	Delete(ctx context.Context, ownerID uint, id string) error
	DeleteAll(ctx context.Context, ownerID uint) (int64, error)
}

type todoRepository struct {
	db *gorm.DB
}

func NewTodoRepository(db *gorm.DB) TodoRepository {
	return &todoRepository{db: db}
}

func (r *todoRepository) Create(ctx context.Context, todo *Todo) error {
	if err := r.db.WithContext(ctx).Create(todo).Error; err != nil {
		if utils.IsUniqueViolation(err) {
			return ErrTodoAlreadyExists
		}
		return ErrUnresponsiveDatabase
	}
	return nil
}

func (r *todoRepository) ExistsByName(ctx context.Context, ownerID uint, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Todo{}).
		Where("person_id = ? AND name = ?", ownerID, name).
		Count(&count).
		Error
	if err != nil {
		return false, ErrUnresponsiveDatabase
	}
	return count > 0, nil
}

func (r *todoRepository) ReadByID(ctx context.Context, ownerID uint, id string) (*Todo, error) {
	var todo Todo
	err := r.db.WithContext(ctx).
		Where("id = ? AND person_id = ?", id, ownerID).
		First(&todo).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTodoNotFound
	}
	if err != nil {
		return nil, ErrUnresponsiveDatabase
	}
	return &todo, nil
}

func (r *todoRepository) List(ctx context.Context, ownerID uint, order Order) ([]Todo, error) {
	query := r.db.WithContext(ctx).Where("person_id = ?", ownerID)
	switch order {
	case OrderDoneFirst:
		query = query.Order("is_done DESC").Order("created_at ASC")
	case OrderName:
		query = query.Order("name ASC")
	default:
		query = query.Order("created_at ASC")
	}
	var todos []Todo
	if err := query.Find(&todos).Error; err != nil {
		return nil, ErrUnresponsiveDatabase
	}
	return todos, nil
}

func (r *todoRepository) Update(ctx context.Context, todo *Todo) error {
	if err := r.db.WithContext(ctx).Save(todo).Error; err != nil {
		if utils.IsUniqueViolation(err) {
			return ErrTodoAlreadyExists
		}
		return ErrUnresponsiveDatabase
	}
	return nil
}

func (r *todoRepository) Delete(ctx context.Context, ownerID uint, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND person_id = ?", id, ownerID).
		Delete(&Todo{})
	if res.Error != nil {
		return ErrUnresponsiveDatabase
	}
	if res.RowsAffected == 0 {
		return ErrTodoNotFound
	}
	return nil
}

func (r *todoRepository) DeleteAll(ctx context.Context, ownerID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("person_id = ?", ownerID).
		Delete(&Todo{})
	if res.Error != nil {
		return 0, ErrUnresponsiveDatabase
	}
	return res.RowsAffected, nil
}
