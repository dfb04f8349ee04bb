package accounts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mikepea/pantry/pkg/pantry/database"
	"github.com/mikepea/pantry/pkg/pantry/models"
)

func setupTestStore(t *testing.T) (*Store, *gorm.DB) {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, models.AutoMigrate(db))
	return NewStore(db), db
}

func TestPasswordHashing(t *testing.T) {
	password := "testpassword123"

	hash, err := HashPassword(password)
	require.NoError(t, err)

	assert.NotEqual(t, password, hash, "Hash should not equal plain password")
	assert.True(t, CheckPassword(password, hash))
	assert.False(t, CheckPassword("wrongpassword", hash))
}

func TestCreateUserWithEmailSuccessful(t *testing.T) {
	store, _ := setupTestStore(t)

	user, err := store.CreateUser(context.Background(), "test@test.com", "Testpass123")
	require.NoError(t, err)

	assert.Equal(t, "test@test.com", user.Email)
	assert.NotEqual(t, "Testpass123", user.PasswordHash)
	assert.True(t, CheckPassword("Testpass123", user.PasswordHash))
	assert.False(t, user.IsStaff)
	assert.False(t, user.IsSuperuser)
}

func TestNewUserEmailNormalized(t *testing.T) {
	store, db := setupTestStore(t)

	for _, email := range []string{"test@TEST.COM", "  Mixed.Case@Example.org ", "UPPER@HOST.IO"} {
		user, err := store.CreateUser(context.Background(), email, "test123")
		require.NoError(t, err)

		var stored models.User
		require.NoError(t, db.First(&stored, user.ID).Error)
		assert.Equal(t, NormalizeEmail(email), stored.Email)
	}
}

func TestNewUserInvalidEmail(t *testing.T) {
	store, _ := setupTestStore(t)

	for _, password := range []string{"test123", "", "another-password"} {
		_, err := store.CreateUser(context.Background(), "", password)
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = store.CreateUser(context.Background(), "   ", password)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.CreateUser(context.Background(), "test@test.com", "pass")
	require.NoError(t, err)

	_, err = store.CreateUser(context.Background(), "TEST@test.com", "pass")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestInsertDuplicateEmailIsEmailTaken(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, "test@test.com", "pass")
	require.NoError(t, err)

	// skips the pre-insert lookup, like a registration racing the first one
	err = store.insert(ctx, &models.User{Email: "test@test.com", PasswordHash: "hash", IsActive: true})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestCreateNewSuperuser(t *testing.T) {
	store, _ := setupTestStore(t)

	user, err := store.CreateSuperuser(context.Background(), "test@test.com", "Testpass123", WithStaff(false))
	require.NoError(t, err)

	assert.True(t, user.IsSuperuser)
	assert.True(t, user.IsStaff, "superuser flags are set unconditionally")
}

func TestAuthenticate(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, "test@test.com", "password123")
	require.NoError(t, err)

	user, err := store.Authenticate(ctx, "Test@Test.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = store.Authenticate(ctx, "test@test.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = store.Authenticate(ctx, "nobody@test.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateInactive(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "test@test.com", "password123")
	require.NoError(t, err)

	inactive := false
	_, err = store.SetFlags(ctx, user.ID, Flags{IsActive: &inactive})
	require.NoError(t, err)

	_, err = store.Authenticate(ctx, "test@test.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSetPassword(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "test@test.com", "old-password")
	require.NoError(t, err)

	require.NoError(t, store.SetPassword(ctx, user.ID, "new-password"))

	_, err = store.Authenticate(ctx, "test@test.com", "old-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = store.Authenticate(ctx, "test@test.com", "new-password")
	assert.NoError(t, err)

	assert.ErrorIs(t, store.SetPassword(ctx, 999, "x"), ErrUserNotFound)
}

func TestSetFlags(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "test@test.com", "pass")
	require.NoError(t, err)

	staff, name := true, "Chef"
	updated, err := store.SetFlags(ctx, user.ID, Flags{IsStaff: &staff, Name: &name})
	require.NoError(t, err)
	assert.True(t, updated.IsStaff)
	assert.False(t, updated.IsSuperuser)
	assert.Equal(t, "Chef", updated.Name)
}

func TestUpdateFlagsAndPassword(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "test@test.com", "old-password")
	require.NoError(t, err)

	staff, password := true, "new-password"
	updated, err := store.Update(ctx, user.ID, Flags{IsStaff: &staff}, &password)
	require.NoError(t, err)
	assert.True(t, updated.IsStaff)

	_, err = store.Authenticate(ctx, "test@test.com", "new-password")
	assert.NoError(t, err)

	_, err = store.Update(ctx, 999, Flags{IsStaff: &staff}, nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateFailedPasswordLeavesFlags(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "test@test.com", "old-password")
	require.NoError(t, err)

	staff, tooLong := true, strings.Repeat("x", 73)
	_, err = store.Update(ctx, user.ID, Flags{IsStaff: &staff}, &tooLong)
	assert.ErrorIs(t, err, bcrypt.ErrPasswordTooLong)

	stored, err := store.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsStaff)

	_, err = store.Authenticate(ctx, "test@test.com", "old-password")
	assert.NoError(t, err)
}

func TestDeleteRefusesOwner(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "test@test.com", "pass")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Tag{UserID: user.ID, Name: "Vegan"}).Error)

	assert.ErrorIs(t, store.Delete(ctx, user.ID), ErrUserHasRecords)

	_, err = store.Get(ctx, user.ID)
	assert.NoError(t, err, "user must survive a refused delete")
}

func TestDelete(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "test@test.com", "pass")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.APIKey{UserID: user.ID, KeyHash: "h", KeyPrefix: "p"}).Error)

	require.NoError(t, store.Delete(ctx, user.ID))

	_, err = store.Get(ctx, user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	var keys int64
	db.Model(&models.APIKey{}).Where("user_id = ?", user.ID).Count(&keys)
	assert.Zero(t, keys)

	assert.ErrorIs(t, store.Delete(ctx, user.ID), ErrUserNotFound)
}

func TestListAndStats(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, "cook@test.com", "pass", WithName("Cook"))
	require.NoError(t, err)
	_, err = store.CreateSuperuser(ctx, "admin@test.com", "pass")
	require.NoError(t, err)

	users, err := store.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "admin@test.com", users[0].Email, "newest first")

	users, err = store.List(ctx, ListFilter{Query: "cook"})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	users, err = store.List(ctx, ListFilter{StaffOnly: true})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, int64(1), stats.Superusers)
}

func TestEnsureSuperuser(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	created, err := store.EnsureSuperuser(ctx, "admin@pantry.local", "changeme")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.EnsureSuperuser(ctx, "ADMIN@pantry.local", "changeme")
	require.NoError(t, err)
	assert.False(t, created)
}
