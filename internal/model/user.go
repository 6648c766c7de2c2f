package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a registered account.
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Identity returns the public-safe projection of the user.
func (u *User) Identity() *Identity {
	return &Identity{ID: u.ID.String(), Email: u.Email}
}

// Identity is the authenticated view of a user carried in tokens and cached
// per request path. It never includes the password hash.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
