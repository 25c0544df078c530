package person

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mehmetcc/todolist-authentication-service/internal/utils"
)

var (
	ErrEmailAlreadyExists   = errors.New("email already exists")
	ErrPersonNotFound       = errors.New("person not found")
	ErrPersonNotCreated     = errors.New("person not created")
	ErrPersonNotUpdated     = errors.New("person not updated")
	ErrUnresponsiveDatabase = errors.New("error occured during writing to persons table")
)

type PersonRepository interface {
	Create(ctx context.Context, person *Person) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ReadByEmail(ctx context.Context, email string) (*Person, error)
	ReadByID(ctx context.Context, id uint) (*Person, error)
	// Update writes only the given columns of the person with id.
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
}

type personRepository struct {
	db *gorm.DB
}

func NewPersonRepository(db *gorm.DB) PersonRepository {
	return &personRepository{db: db}
}

func (p *personRepository) ReadByID(ctx context.Context, id uint) (*Person, error) {
	var person Person
	err := p.db.WithContext(ctx).
		First(&person, id).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPersonNotFound
	}
	if err != nil {
		return nil, ErrUnresponsiveDatabase
	}
	return &person, nil
}

func (p *personRepository) Create(ctx context.Context, person *Person) error {
	err := p.db.WithContext(ctx).Create(person).Error
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return ErrEmailAlreadyExists
		}
		return ErrPersonNotCreated
	}
	return nil
}

func (p *personRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Model(&Person{}).
		Where("email = ?", email).
		Count(&count).
		Error
	if err != nil {
		return false, ErrUnresponsiveDatabase
	}
	return count > 0, nil
}

func (p *personRepository) ReadByEmail(ctx context.Context, email string) (*Person, error) {
	var person Person
	err := p.db.WithContext(ctx).
		Where("email = ?", email).
		First(&person).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPersonNotFound
	}
	if err != nil {
		return nil, ErrUnresponsiveDatabase
	}
	return &person, nil
}

func (p *personRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := p.db.WithContext(ctx).
		Model(&Person{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return ErrPersonNotUpdated
	}
	if res.RowsAffected == 0 {
		return ErrPersonNotFound
	}
	return nil
}
