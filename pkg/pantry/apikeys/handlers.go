package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/mikepea/pantry/pkg/pantry/apierr"
	"github.com/mikepea/pantry/pkg/pantry/auth"
	"github.com/mikepea/pantry/pkg/pantry/models"
	"github.com/mikepea/pantry/pkg/pantry/scope"
)

const (
	// KeyLength is the length of the generated API key in bytes (32 bytes = 64 hex chars)
	KeyLength = 32
	// KeyPrefixLength is the number of characters to store as prefix for identification
	KeyPrefixLength = 8
)

// ErrInvalidKey is returned for unknown or revoked API keys
var ErrInvalidKey = errors.New("invalid api key")

// Handler handles API key requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new API keys handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// APIKeyResponse represents an API key in responses
type APIKeyResponse struct {
	ID          uint       `json:"id"`
	KeyPrefix   string     `json:"key_prefix"`
	Description string     `json:"description"`
	LastUsedAt  *time.Time `json:"last_used_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateAPIKeyRequest represents a request to create an API key
type CreateAPIKeyRequest struct {
	Description string `json:"description" binding:"max=255"`
}

// CreateAPIKeyResponse includes the full key (only shown once)
type CreateAPIKeyResponse struct {
	ID          uint      `json:"id"`
	Key         string    `json:"key"`
	KeyPrefix   string    `json:"key_prefix"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func generateAPIKey() (string, error) {
	bytes := make([]byte, KeyLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// Issue creates a new key owned by id and returns the stored record with the
// plaintext key. The plaintext is never persisted.
func Issue(ctx context.Context, db *gorm.DB, id scope.Identity, description string) (*models.APIKey, string, error) {
	key, err := generateAPIKey()
	if err != nil {
		return nil, "", errors.Wrap(err, "generate api key")
	}

	apiKey := &models.APIKey{
		KeyHash:     hashAPIKey(key),
		KeyPrefix:   key[:KeyPrefixLength],
		Description: strings.TrimSpace(description),
	}
	if err := scope.Create(ctx, db, id, apiKey); err != nil {
		return nil, "", err
	}
	return apiKey, key, nil
}

// Create creates a new API key for the authenticated user
// @Summary Create API key
// @Tags api-keys
// @Accept json
// @Produce json
// @Param request body CreateAPIKeyRequest false "Key description"
// @Success 201 {object} CreateAPIKeyResponse
// @Security BearerAuth
// @Router /api-keys [post]
func (h *Handler) Create(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}

	var req CreateAPIKeyRequest
	if c.Request.ContentLength > 0 && !apierr.Bind(c, &req) {
		return
	}

	apiKey, key, err := Issue(c.Request.Context(), h.db, id, req.Description)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	// Return the full key - this is the only time it's visible
	c.JSON(http.StatusCreated, CreateAPIKeyResponse{
		ID:          apiKey.ID,
		Key:         key,
		KeyPrefix:   apiKey.KeyPrefix,
		Description: apiKey.Description,
		CreatedAt:   apiKey.CreatedAt,
	})
}

// List returns all API keys for the authenticated user
// @Summary List API keys
// @Tags api-keys
// @Produce json
// @Success 200 {array} APIKeyResponse
// @Security BearerAuth
// @Router /api-keys [get]
func (h *Handler) List(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}

	apiKeys, err := scope.List[models.APIKey](c.Request.Context(), h.db, id, "created_at DESC, id DESC")
	if err != nil {
		apierr.Write(c, err)
		return
	}

	responses := make([]APIKeyResponse, len(apiKeys))
	for i, key := range apiKeys {
		responses[i] = APIKeyResponse{
			ID:          key.ID,
			KeyPrefix:   key.KeyPrefix,
			Description: key.Description,
			LastUsedAt:  key.LastUsedAt,
			CreatedAt:   key.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, responses)
}

// Delete revokes an API key
// @Summary Revoke API key
// @Tags api-keys
// @Param id path int true "API key ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} apierr.Response
// @Security BearerAuth
// @Router /api-keys/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}

	keyID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierr.Response{Error: "Invalid API key ID"})
		return
	}

	ctx := c.Request.Context()
	apiKey, err := scope.Get[models.APIKey](ctx, h.db, id, uint(keyID))
	if err != nil {
		apierr.Write(c, err)
		return
	}

	if err := h.db.WithContext(ctx).Delete(apiKey).Error; err != nil {
		apierr.Write(c, errors.Wrap(err, "delete api key"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key deleted"})
}

// ValidateAPIKey looks up a key by its hash
func ValidateAPIKey(ctx context.Context, db *gorm.DB, key string) (*models.APIKey, error) {
	var apiKey models.APIKey
	err := db.WithContext(ctx).Where("key_hash = ?", hashAPIKey(key)).First(&apiKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup api key")
	}
	return &apiKey, nil
}

// UpdateLastUsed updates the last_used_at timestamp for an API key
func UpdateLastUsed(ctx context.Context, db *gorm.DB, apiKeyID uint) error {
	return db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", apiKeyID).
		UpdateColumn("last_used_at", time.Now()).Error
}

// CombinedAuthMiddleware authenticates via JWT or API key, both passed as
// "Authorization: Bearer <token>". JWTs contain dots, API keys are hex.
func CombinedAuthMiddleware(db *gorm.DB, tokens *auth.TokenIssuer, users auth.UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c)
		if !ok {
			auth.Unauthorized(c, "Authorization header required")
			return
		}

		ctx := c.Request.Context()

		if strings.Contains(token, ".") {
			user, err := auth.ResolveJWT(ctx, tokens, users, token)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					auth.Unauthorized(c, "Token has expired")
				} else {
					auth.Unauthorized(c, "Invalid token")
				}
				return
			}
			auth.SetIdentity(c, user)
			c.Next()
			return
		}

		apiKey, err := ValidateAPIKey(ctx, db, token)
		if err != nil {
			auth.Unauthorized(c, "Invalid API key")
			return
		}

		user, err := users.Get(ctx, apiKey.UserID)
		if err != nil || !user.IsActive {
			auth.Unauthorized(c, "Invalid API key")
			return
		}

		if err := UpdateLastUsed(ctx, db, apiKey.ID); err != nil {
			apierr.Logger(c).Warnw("failed to record api key use", "key_id", apiKey.ID, "error", err)
		}

		auth.SetIdentity(c, user)
		c.Next()
	}
}

// RegisterRoutes registers API key routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/api-keys", h.Create)
	rg.GET("/api-keys", h.List)
	rg.DELETE("/api-keys/:id", h.Delete)
}
