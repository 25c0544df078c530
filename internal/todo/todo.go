package todo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Todo is a single to-do item owned by one person. Names are unique per owner.
type Todo struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	PersonID  uint   `gorm:"not null;uniqueIndex:idx_todos_owner_name"`
	Name      string `gorm:"not null;size:100;uniqueIndex:idx_todos_owner_name"`
	IsDone    bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Todo) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Item is the public view of a Todo.
// @Description to-do item
type Item struct {
	ID     string `json:"id"`
	Todo   string `json:"todo"`
	IsDone bool   `json:"isDone"`
}

func (t *Todo) Item() Item {
	return Item{ID: t.ID, Todo: t.Name, IsDone: t.IsDone}
}

func items(todos []Todo) []Item {
	out := make([]Item, 0, len(todos))
	for i := range todos {
		out = append(out, todos[i].Item())
	}
	return out
}
