// Package accounts is the account store: it creates users with normalized
// emails and hashed credentials, and verifies credentials on login.
package accounts

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/mikepea/pantry/pkg/pantry/models"
)

var (
	ErrInvalidArgument    = errors.New("users must have an email address")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserHasRecords     = errors.New("user still owns tags, ingredients or recipes")
)

// Store persists user accounts.
type Store struct {
	db *gorm.DB
}

// NewStore creates an account store backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Option sets optional fields on a user being created.
type Option func(*models.User)

// WithName sets the display name.
func WithName(name string) Option {
	return func(u *models.User) { u.Name = name }
}

// WithStaff sets the staff flag.
func WithStaff(staff bool) Option {
	return func(u *models.User) { u.IsStaff = staff }
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser creates and persists a user. The email is normalized and the
// password hashed; an empty email fails with ErrInvalidArgument.
func (s *Store) CreateUser(ctx context.Context, email, password string, opts ...Option) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidArgument
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	for _, opt := range opts {
		opt(user)
	}

	var count int64
	// soft-deleted accounts keep their email reserved
	if err := s.db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, errors.Wrap(err, "check email")
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	if err := s.insert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// insert persists a new user. A concurrent registration that wins the race
// for the email surfaces here as a unique-index violation.
func (s *Store) insert(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	if err != nil {
		return errors.Wrap(err, "create user")
	}
	return nil
}

// CreateSuperuser creates a user with both administrative flags set.
func (s *Store) CreateSuperuser(ctx context.Context, email, password string, opts ...Option) (*models.User, error) {
	opts = append(opts, func(u *models.User) {
		u.IsStaff = true
		u.IsSuperuser = true
	})
	return s.CreateUser(ctx, email, password, opts...)
}

// Authenticate returns the active user matching email and password.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}

	if !user.IsActive || !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get returns the user with the given id.
func (s *Store) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return &user, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Query     string // substring of email or name
	StaffOnly bool
}

// List returns users, newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.User, error) {
	users := make([]models.User, 0)
	q := s.db.WithContext(ctx).Order("id DESC")
	if f.Query != "" {
		like := "%" + f.Query + "%"
		q = q.Where("email LIKE ? OR name LIKE ?", like, like)
	}
	if f.StaffOnly {
		q = q.Where("is_staff = ?", true)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

// SetPassword rotates the credential of a user.
func (s *Store) SetPassword(ctx context.Context, id uint, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update password")
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Flags is an administrative change to a user. Nil fields are left alone.
type Flags struct {
	Name        *string
	IsActive    *bool
	IsStaff     *bool
	IsSuperuser *bool
}

// SetFlags applies an administrative change and returns the updated user.
func (s *Store) SetFlags(ctx context.Context, id uint, f Flags) (*models.User, error) {
	return s.Update(ctx, id, f, nil)
}

// Update applies f and, when password is non-nil, rotates the credential.
// Both land in a single write: if either fails the user is left unchanged.
func (s *Store) Update(ctx context.Context, id uint, f Flags, password *string) (*models.User, error) {
	updates := make(map[string]interface{})
	if f.Name != nil {
		updates["name"] = *f.Name
	}
	if f.IsActive != nil {
		updates["is_active"] = *f.IsActive
	}
	if f.IsStaff != nil {
		updates["is_staff"] = *f.IsStaff
	}
	if f.IsSuperuser != nil {
		updates["is_superuser"] = *f.IsSuperuser
	}
	if password != nil {
		hash, err := HashPassword(*password)
		if err != nil {
			return nil, errors.Wrap(err, "hash password")
		}
		updates["password_hash"] = hash
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return errors.Wrap(err, "get user")
		}
		if len(updates) == 0 {
			return nil
		}
		return errors.Wrap(tx.Model(&user).Updates(updates).Error, "update user")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a user account and its API keys. Deletion never cascades to
// tags, ingredients or recipes: while the user owns any, ErrUserHasRecords is
// returned and nothing is changed.
func (s *Store) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return errors.Wrap(err, "get user")
		}

		for _, model := range []interface{}{&models.Tag{}, &models.Ingredient{}, &models.Recipe{}} {
			var n int64
			if err := tx.Model(model).Where("user_id = ?", id).Count(&n).Error; err != nil {
				return errors.Wrap(err, "count owned records")
			}
			if n > 0 {
				return ErrUserHasRecords
			}
		}

		if err := tx.Where("user_id = ?", id).Delete(&models.APIKey{}).Error; err != nil {
			return errors.Wrap(err, "delete api keys")
		}
		return tx.Delete(&user).Error
	})
}

// Stats holds row counts across all accounts.
type Stats struct {
	Users       int64 `json:"total_users"`
	Superusers  int64 `json:"superusers"`
	Tags        int64 `json:"total_tags"`
	Ingredients int64 `json:"total_ingredients"`
	Recipes     int64 `json:"total_recipes"`
	APIKeys     int64 `json:"active_api_keys"`
}

// Stats counts rows across every account. It is meant for administrators only.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx)

	counts := []struct {
		q   *gorm.DB
		dst *int64
	}{
		{db.Model(&models.User{}), &st.Users},
		{db.Model(&models.User{}).Where("is_superuser = ?", true), &st.Superusers},
		{db.Model(&models.Tag{}), &st.Tags},
		{db.Model(&models.Ingredient{}), &st.Ingredients},
		{db.Model(&models.Recipe{}), &st.Recipes},
		{db.Model(&models.APIKey{}), &st.APIKeys},
	}
	for _, c := range counts {
		if err := c.q.Count(c.dst).Error; err != nil {
			return Stats{}, errors.Wrap(err, "count")
		}
	}
	return st, nil
}

// EnsureSuperuser creates a superuser with email unless one already exists.
// It reports whether a user was created.
func (s *Store) EnsureSuperuser(ctx context.Context, email, password string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Unscoped().Model(&models.User{}).
		Where("email = ?", NormalizeEmail(email)).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "check superuser")
	}
	if count > 0 {
		return false, nil
	}

	if _, err := s.CreateSuperuser(ctx, email, password, WithName("Admin")); err != nil {
		return false, err
	}
	return true, nil
}
