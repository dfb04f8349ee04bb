package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recipe is a user-owned recipe. Tags and Ingredients are shared references,
// never copies.
type Recipe struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Title       string          `gorm:"not null" json:"title"`
	TimeMinutes int             `gorm:"not null" json:"time_minutes"`
	Price       decimal.Decimal `gorm:"type:decimal(7,2);not null" json:"price"`
	Link        string          `json:"link"`
	Image       string          `json:"image"` // storage path, see media.RecipeImagePath

	// Relationships
	User        User         `gorm:"foreignKey:UserID" json:"-"`
	Tags        []Tag        `gorm:"many2many:recipe_tags;" json:"tags,omitempty"`
	Ingredients []Ingredient `gorm:"many2many:recipe_ingredients;" json:"ingredients,omitempty"`
}

func (r Recipe) String() string { return r.Title }

func (r *Recipe) SetOwner(userID uint) { r.UserID = userID }
