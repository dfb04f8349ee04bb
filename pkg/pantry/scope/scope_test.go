package scope

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mikepea/pantry/pkg/pantry/database"
	"github.com/mikepea/pantry/pkg/pantry/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) Identity {
	user := models.User{Email: email, PasswordHash: "hash"}
	require.NoError(t, db.Create(&user).Error)
	return Identity{UserID: user.ID, Email: user.Email}
}

func TestCreateStampsOwner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	u1 := createTestUser(t, db, "u1@example.com")
	u2 := createTestUser(t, db, "u2@example.com")

	// payload claims u2 as owner; the caller is u1
	tag := &models.Tag{Name: "Vegan", UserID: u2.UserID}
	require.NoError(t, Create(ctx, db, u1, tag))

	var stored models.Tag
	require.NoError(t, db.First(&stored, tag.ID).Error)
	assert.Equal(t, u1.UserID, stored.UserID)
}

func TestCreateWithoutIdentity(t *testing.T) {
	db := setupTestDB(t)

	err := Create(context.Background(), db, Identity{}, &models.Tag{Name: "Vegan"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = List[models.Tag](context.Background(), db, Identity{}, OrderByNameDesc)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestListOnlyOwnRecords(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	u1 := createTestUser(t, db, "u1@example.com")
	u2 := createTestUser(t, db, "u2@example.com")

	require.NoError(t, Create(ctx, db, u1, &models.Ingredient{Name: "Meat"}))
	require.NoError(t, Create(ctx, db, u2, &models.Ingredient{Name: "Cheese"}))

	ingredients, err := List[models.Ingredient](ctx, db, u1, OrderByNameDesc)
	require.NoError(t, err)
	require.Len(t, ingredients, 1)
	assert.Equal(t, "Meat", ingredients[0].Name)
}

func TestListEmptyIsNotNil(t *testing.T) {
	db := setupTestDB(t)
	u1 := createTestUser(t, db, "u1@example.com")

	tags, err := List[models.Tag](context.Background(), db, u1, OrderByNameDesc)
	require.NoError(t, err)
	assert.NotNil(t, tags)
	assert.Empty(t, tags)
}

func TestGetHidesOtherOwners(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	u1 := createTestUser(t, db, "u1@example.com")
	u2 := createTestUser(t, db, "u2@example.com")

	recipe := &models.Recipe{Title: "Soup", TimeMinutes: 10, Price: decimal.NewFromInt(5)}
	require.NoError(t, Create(ctx, db, u2, recipe))

	_, err := Get[models.Recipe](ctx, db, u1, recipe.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Get[models.Recipe](ctx, db, u1, recipe.ID+100)
	assert.ErrorIs(t, err, ErrNotFound, "missing and foreign records look the same")

	got, err := Get[models.Recipe](ctx, db, u2, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Soup", got.Title)
}

func TestSaveKeepsOwner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	u1 := createTestUser(t, db, "u1@example.com")
	u2 := createTestUser(t, db, "u2@example.com")

	recipe := &models.Recipe{Title: "Soup", TimeMinutes: 10, Price: decimal.NewFromInt(5)}
	require.NoError(t, Create(ctx, db, u1, recipe))

	recipe.Title = "Stew"
	recipe.UserID = u2.UserID
	require.NoError(t, Save(ctx, db, u1, recipe))

	var stored models.Recipe
	require.NoError(t, db.First(&stored, recipe.ID).Error)
	assert.Equal(t, "Stew", stored.Title)
	assert.Equal(t, u1.UserID, stored.UserID)
}

func TestCount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	u1 := createTestUser(t, db, "u1@example.com")
	u2 := createTestUser(t, db, "u2@example.com")

	require.NoError(t, Create(ctx, db, u1, &models.Tag{Name: "a"}))
	require.NoError(t, Create(ctx, db, u1, &models.Tag{Name: "b"}))
	require.NoError(t, Create(ctx, db, u2, &models.Tag{Name: "c"}))

	n, err := Count[models.Tag](ctx, db, u1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = Count[models.Tag](ctx, db, Identity{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegistry(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	u1 := createTestUser(t, db, "u1@example.com")
	u2 := createTestUser(t, db, "u2@example.com")

	var reg Resource[models.Tag, string] = NewRegistry[models.Tag](db)

	for _, name := range []string{"Breakfast", "Vegan", "Dessert", "Vegan"} {
		_, err := reg.Create(ctx, u1, name)
		require.NoError(t, err)
	}
	_, err := reg.Create(ctx, u2, "Keto")
	require.NoError(t, err)

	tags, err := reg.List(ctx, u1)
	require.NoError(t, err)

	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	assert.Equal(t, []string{"Vegan", "Vegan", "Dessert", "Breakfast"}, names)
}

func TestRegistryRequiresName(t *testing.T) {
	db := setupTestDB(t)
	u1 := createTestUser(t, db, "u1@example.com")

	_, err := NewRegistry[models.Ingredient](db).Create(context.Background(), u1, "   ")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
}
