package models

import "time"

// Tag is a user-owned label that can be attached to recipes
type Tag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Name      string    `gorm:"not null" json:"name"`

	// Relationships
	User    User     `gorm:"foreignKey:UserID" json:"-"`
	Recipes []Recipe `gorm:"many2many:recipe_tags;" json:"recipes,omitempty"`
}

func (t Tag) String() string { return t.Name }

func (t *Tag) SetOwner(userID uint) { t.UserID = userID }

func (t *Tag) SetName(name string) { t.Name = name }
