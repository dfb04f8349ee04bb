// Package scope is the ownership-scoped access layer. Every read is filtered
// to rows owned by the calling identity and every create is stamped with it,
// so a record owned by one user can never be listed, fetched or changed by
// another. Records that exist but belong to someone else are reported as
// ErrNotFound, exactly like records that do not exist.
package scope

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Identity is the authenticated caller every query is scoped to.
type Identity struct {
	UserID      uint
	Email       string
	IsStaff     bool
	IsSuperuser bool
}

// Valid reports whether the identity refers to an account.
func (id Identity) Valid() bool {
	return id.UserID != 0
}

// Owned is implemented by records that carry an owner.
type Owned interface {
	SetOwner(userID uint)
}

// Resource is a collection whose list and create operations are scoped to
// the caller. T is the stored record, P the create payload.
type Resource[T any, P any] interface {
	List(ctx context.Context, id Identity) ([]T, error)
	Create(ctx context.Context, id Identity, payload P) (*T, error)
}

const (
	// OrderByNameDesc is the listing order of tags and ingredients.
	OrderByNameDesc = "name DESC, id DESC"
	// OrderByIDDesc lists newest records first.
	OrderByIDDesc = "id DESC"
)

// OwnedBy restricts db to rows of the current table owned by id.
func OwnedBy(db *gorm.DB, id Identity) *gorm.DB {
	return db.Where(clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: "user_id"},
		Value:  id.UserID,
	})
}

// List returns every T owned by id in the given order.
func List[T any](ctx context.Context, db *gorm.DB, id Identity, order string) ([]T, error) {
	if !id.Valid() {
		return nil, ErrUnauthorized
	}

	records := make([]T, 0)
	q := OwnedBy(db.WithContext(ctx).Model(new(T)), id)
	if order != "" {
		q = q.Order(order)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "list owned records")
	}
	return records, nil
}

// Get loads the T with primary key recordID if it is owned by id.
// Preloads and other query options may be applied to db by the caller.
func Get[T any](ctx context.Context, db *gorm.DB, id Identity, recordID uint) (*T, error) {
	if !id.Valid() {
		return nil, ErrUnauthorized
	}

	var record T
	err := OwnedBy(db.WithContext(ctx).Model(new(T)), id).
		Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "id"}, Value: recordID}).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get owned record")
	}
	return &record, nil
}

// Create stamps record with id as owner, replacing any owner it carried,
// and persists it.
func Create[PT Owned](ctx context.Context, db *gorm.DB, id Identity, record PT) error {
	if !id.Valid() {
		return ErrUnauthorized
	}

	record.SetOwner(id.UserID)
	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		return errors.Wrap(err, "create owned record")
	}
	return nil
}

// Save persists changes to a record previously loaded through Get. The owner
// is re-stamped so an update can never move a record to another account.
func Save[PT Owned](ctx context.Context, db *gorm.DB, id Identity, record PT) error {
	if !id.Valid() {
		return ErrUnauthorized
	}

	record.SetOwner(id.UserID)
	if err := db.WithContext(ctx).Omit(clause.Associations).Save(record).Error; err != nil {
		return errors.Wrap(err, "save owned record")
	}
	return nil
}

// Count returns how many T rows id owns.
func Count[T any](ctx context.Context, db *gorm.DB, id Identity) (int64, error) {
	if !id.Valid() {
		return 0, ErrUnauthorized
	}

	var n int64
	if err := OwnedBy(db.WithContext(ctx).Model(new(T)), id).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "count owned records")
	}
	return n, nil
}
