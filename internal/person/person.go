package person

import (
	"time"

	"gorm.io/gorm"
)

// Person represents a registered user.
// swagger:model PersonResponse
// @Description person model
type Person struct {
	gorm.Model
	// Display name
	Name string `json:"name" gorm:"not null"`
	// Email address (unique, case-sensitive as stored)
	Email string `json:"email" gorm:"uniqueIndex;not null"`
	// Password hash (hidden from JSON)
	Password string `json:"-" gorm:"not null"`
	// LastSeen is refreshed on every successful login
	LastSeen time.Time `json:"last_seen"`
}

// NewPerson builds a Person around an already hashed password.
func NewPerson(name, email, passwordHash string) *Person {
	return &Person{
		Name:     name,
		Email:    email,
		Password: passwordHash,
		LastSeen: time.Now().UTC(),
	}
}

// Profile is the public view of a Person.
// @Description current user profile
type Profile struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (p *Person) Profile() Profile {
	return Profile{ID: p.ID, Name: p.Name, Email: p.Email}
}
