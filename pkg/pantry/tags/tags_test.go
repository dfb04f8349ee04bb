package tags

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mikepea/pantry/pkg/pantry/accounts"
	"github.com/mikepea/pantry/pkg/pantry/apierr"
	"github.com/mikepea/pantry/pkg/pantry/auth"
	"github.com/mikepea/pantry/pkg/pantry/database"
	"github.com/mikepea/pantry/pkg/pantry/models"
)

var testTokens = auth.NewTokenIssuer("test-secret", time.Hour)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	user, err := accounts.NewStore(db).CreateUser(context.Background(), email, "testpass")
	require.NoError(t, err)
	return user
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	apierr.Setup()
	r := gin.New()

	api := r.Group("/api")
	api.Use(auth.AuthMiddleware(testTokens, accounts.NewStore(db)))
	NewHandler(db).RegisterRoutes(api)

	return r
}

func do(r *gin.Engine, method, path string, body interface{}, user *models.User) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, _ := testTokens.GenerateToken(user)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestLoginRequired(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	assert.Equal(t, http.StatusUnauthorized, do(router, "GET", "/api/tags", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(router, "POST", "/api/tags", CreateTagRequest{Name: "Vegan"}, nil).Code)

	var count int64
	db.Model(&models.Tag{}).Count(&count)
	assert.Zero(t, count)
}

func TestHandlerWithoutIdentity(t *testing.T) {
	db := setupTestDB(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(db).RegisterRoutes(r.Group("/api"))

	assert.Equal(t, http.StatusUnauthorized, do(r, "GET", "/api/tags", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "POST", "/api/tags", CreateTagRequest{Name: "Vegan"}, nil).Code)
}

func TestRetrieveTags(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	for _, name := range []string{"Vegan", "Dessert"} {
		require.Equal(t, http.StatusCreated, do(router, "POST", "/api/tags", CreateTagRequest{Name: name}, user).Code)
	}

	resp := do(router, "GET", "/api/tags", nil, user)
	require.Equal(t, http.StatusOK, resp.Code)

	var tags []TagResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &tags))
	require.Len(t, tags, 2)
	assert.Equal(t, "Vegan", tags[0].Name)
	assert.Equal(t, "Dessert", tags[1].Name)
}

func TestTagsLimitedToUser(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	other := createTestUser(t, db, "other@example.com")

	require.NoError(t, db.Create(&models.Tag{UserID: other.ID, Name: "Fruity"}).Error)
	require.NoError(t, db.Create(&models.Tag{UserID: user.ID, Name: "Comfort Food"}).Error)

	resp := do(router, "GET", "/api/tags", nil, user)
	require.Equal(t, http.StatusOK, resp.Code)

	var tags []TagResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &tags))
	require.Len(t, tags, 1)
	assert.Equal(t, "Comfort Food", tags[0].Name)
}

func TestCreateTagStampsCaller(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	other := createTestUser(t, db, "other@example.com")

	resp := do(router, "POST", "/api/tags", gin.H{"name": "Test Tag", "user_id": other.ID}, user)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var tag models.Tag
	require.NoError(t, db.Where("name = ?", "Test Tag").First(&tag).Error)
	assert.Equal(t, user.ID, tag.UserID)
}

func TestCreateTagInvalid(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	resp := do(router, "POST", "/api/tags", CreateTagRequest{Name: ""}, user)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	var body apierr.Response
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "This field is required.", body.Fields["name"])

	resp = do(router, "POST", "/api/tags", CreateTagRequest{Name: "   "}, user)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
