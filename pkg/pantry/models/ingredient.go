package models

import "time"

// Ingredient is a user-owned ingredient name that recipes can reference
type Ingredient struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Name      string    `gorm:"not null" json:"name"`

	// Relationships
	User    User     `gorm:"foreignKey:UserID" json:"-"`
	Recipes []Recipe `gorm:"many2many:recipe_ingredients;" json:"recipes,omitempty"`
}

func (i Ingredient) String() string { return i.Name }

func (i *Ingredient) SetOwner(userID uint) { i.UserID = userID }

func (i *Ingredient) SetName(name string) { i.Name = name }
