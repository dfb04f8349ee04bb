package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mikepea/pantry/pkg/pantry/accounts"
	"github.com/mikepea/pantry/pkg/pantry/apierr"
	"github.com/mikepea/pantry/pkg/pantry/auth"
	"github.com/mikepea/pantry/pkg/pantry/models"
	"github.com/mikepea/pantry/pkg/pantry/scope"
)

// Handler handles admin requests
type Handler struct {
	db    *gorm.DB
	users *accounts.Store
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB, users *accounts.Store) *Handler {
	return &Handler{db: db, users: users}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID              uint   `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	IsActive        bool   `json:"is_active"`
	IsStaff         bool   `json:"is_staff"`
	IsSuperuser     bool   `json:"is_superuser"`
	CreatedAt       string `json:"created_at"`
	TagCount        int64  `json:"tag_count"`
	IngredientCount int64  `json:"ingredient_count"`
	RecipeCount     int64  `json:"recipe_count"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
	IsStaff     *bool   `json:"is_staff"`
	IsSuperuser *bool   `json:"is_superuser"`
	Password    *string `json:"password" binding:"omitempty,min=5,max=72"`
}

func userID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierr.Response{Error: "Invalid user ID"})
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) userResponse(ctx context.Context, user models.User) (UserResponse, error) {
	owner := scope.Identity{UserID: user.ID}
	resp := UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		IsActive:    user.IsActive,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
		CreatedAt:   user.CreatedAt.UTC().Format(time.RFC3339),
	}

	var err error
	if resp.TagCount, err = scope.Count[models.Tag](ctx, h.db, owner); err != nil {
		return UserResponse{}, err
	}
	if resp.IngredientCount, err = scope.Count[models.Ingredient](ctx, h.db, owner); err != nil {
		return UserResponse{}, err
	}
	if resp.RecipeCount, err = scope.Count[models.Recipe](ctx, h.db, owner); err != nil {
		return UserResponse{}, err
	}
	return resp, nil
}

func writeUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, accounts.ErrUserNotFound):
		c.JSON(http.StatusNotFound, apierr.Response{Error: "User not found"})
	case errors.Is(err, accounts.ErrUserHasRecords):
		apierr.Write(c, apierr.WithStatus(http.StatusConflict, err))
	default:
		apierr.Write(c, err)
	}
}

// ListUsers returns all users (admin only)
// @Summary List users
// @Tags admin
// @Produce json
// @Param q query string false "Search email or name"
// @Param staff query bool false "Staff only"
// @Success 200 {array} UserResponse
// @Security BearerAuth
// @Router /admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := h.users.List(ctx, accounts.ListFilter{
		Query:     c.Query("q"),
		StaffOnly: c.Query("staff") == "true",
	})
	if err != nil {
		apierr.Write(c, err)
		return
	}

	responses := make([]UserResponse, len(users))
	for i, user := range users {
		if responses[i], err = h.userResponse(ctx, user); err != nil {
			apierr.Write(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, responses)
}

// GetUser returns a single user by ID (admin only)
// @Summary Get user
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserResponse
// @Failure 404 {object} apierr.Response
// @Security BearerAuth
// @Router /admin/users/{id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.Get(ctx, id)
	if err != nil {
		writeUserError(c, err)
		return
	}

	resp, err := h.userResponse(ctx, *user)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateUser changes a user's flags or resets their password (admin only)
// @Summary Update user
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body UpdateUserRequest true "Changes"
// @Success 200 {object} UserResponse
// @Failure 400 {object} apierr.Response
// @Failure 404 {object} apierr.Response
// @Security BearerAuth
// @Router /admin/users/{id} [put]
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !apierr.Bind(c, &req) {
		return
	}

	// Prevent admin from demoting or locking out themselves
	caller, _ := auth.GetIdentity(c)
	if id == caller.UserID {
		if req.IsSuperuser != nil && !*req.IsSuperuser {
			c.JSON(http.StatusBadRequest, apierr.Response{Error: "Cannot demote yourself"})
			return
		}
		if req.IsActive != nil && !*req.IsActive {
			c.JSON(http.StatusBadRequest, apierr.Response{Error: "Cannot deactivate yourself"})
			return
		}
	}

	ctx := c.Request.Context()
	user, err := h.users.Update(ctx, id, accounts.Flags{
		Name:        req.Name,
		IsActive:    req.IsActive,
		IsStaff:     req.IsStaff,
		IsSuperuser: req.IsSuperuser,
	}, req.Password)
	if err != nil {
		writeUserError(c, err)
		return
	}
	if req.Password != nil {
		apierr.Logger(c).Infow("password reset by admin", "user_id", id, "admin_id", caller.UserID)
	}

	resp, err := h.userResponse(ctx, *user)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteUser removes a user that no longer owns any records (admin only)
// @Summary Delete user
// @Tags admin
// @Param id path int true "User ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} apierr.Response
// @Failure 409 {object} apierr.Response "User still owns records"
// @Security BearerAuth
// @Router /admin/users/{id} [delete]
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	// Prevent admin from deleting themselves
	caller, _ := auth.GetIdentity(c)
	if id == caller.UserID {
		c.JSON(http.StatusBadRequest, apierr.Response{Error: "Cannot delete yourself"})
		return
	}

	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		writeUserError(c, err)
		return
	}

	apierr.Logger(c).Infow("user deleted", "user_id", id, "admin_id", caller.UserID)
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// GetStats returns system-wide statistics (admin only)
// @Summary System statistics
// @Tags admin
// @Produce json
// @Success 200 {object} accounts.Stats
// @Security BearerAuth
// @Router /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.users.Stats(c.Request.Context())
	if err != nil {
		apierr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group.
// The group must already require a superuser.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.GET("/users/:id", h.GetUser)
	rg.PUT("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)
}
