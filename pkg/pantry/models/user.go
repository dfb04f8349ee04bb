package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an account that owns tags, ingredients and recipes.
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"` // always lowercase
	PasswordHash string         `gorm:"not null" json:"-"`
	Name         string         `json:"name"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	IsStaff      bool           `gorm:"default:false" json:"is_staff"`
	IsSuperuser  bool           `gorm:"default:false" json:"is_superuser"`

	// Relationships
	APIKeys []APIKey `gorm:"foreignKey:UserID" json:"api_keys,omitempty"`
}

func (u User) String() string {
	return u.Email
}
