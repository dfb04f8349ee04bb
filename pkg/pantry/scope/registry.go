package scope

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// Named is a record that is identified to users by a name.
type Named interface {
	Owned
	SetName(name string)
}

// Registry is a per-user collection of named labels (tags, ingredients).
// It only supports list and create; names are not required to be unique.
type Registry[T any, PT interface {
	*T
	Named
}] struct {
	db *gorm.DB
}

// NewRegistry returns a registry storing T in db.
func NewRegistry[T any, PT interface {
	*T
	Named
}](db *gorm.DB) *Registry[T, PT] {
	return &Registry[T, PT]{db: db}
}

// List returns the caller's records ordered by name, descending.
func (r *Registry[T, PT]) List(ctx context.Context, id Identity) ([]T, error) {
	return List[T](ctx, r.db, id, OrderByNameDesc)
}

// Create stores a new record named name owned by the caller.
func (r *Registry[T, PT]) Create(ctx context.Context, id Identity, name string) (*T, error) {
	if !id.Valid() {
		return nil, ErrUnauthorized
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Required("name")
	}

	record := new(T)
	PT(record).SetName(name)
	if err := Create(ctx, r.db, id, PT(record)); err != nil {
		return nil, err
	}
	return record, nil
}
