package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/pantry/pkg/pantry/accounts"
	"github.com/mikepea/pantry/pkg/pantry/apierr"
	"github.com/mikepea/pantry/pkg/pantry/models"
)

// Handler handles authentication requests
type Handler struct {
	users  *accounts.Store
	tokens *TokenIssuer
}

// NewHandler creates a new auth handler
func NewHandler(users *accounts.Store, tokens *TokenIssuer) *Handler {
	return &Handler{users: users, tokens: tokens}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=5"`
	Name     string `json:"name" binding:"max=255"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest rotates the caller's credential
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=5"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

// NewUserResponse maps a user to its public representation
func NewUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	}
}

// Register handles user registration
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} apierr.Response "Validation error"
// @Failure 409 {object} apierr.Response "Email already registered"
// @Router /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !apierr.Bind(c, &req) {
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), req.Email, req.Password, accounts.WithName(req.Name))
	switch {
	case errors.Is(err, accounts.ErrEmailTaken):
		apierr.Write(c, apierr.WithStatus(http.StatusConflict, err))
		return
	case errors.Is(err, accounts.ErrInvalidArgument):
		apierr.Write(c, apierr.WithStatus(http.StatusBadRequest, err))
		return
	case err != nil:
		apierr.Write(c, err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// Login handles user login
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} apierr.Response "Invalid credentials"
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !apierr.Bind(c, &req) {
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		Unauthorized(c, "Invalid email or password")
		return
	}
	if err != nil {
		apierr.Write(c, err)
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := h.tokens.GenerateToken(user)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(status, AuthResponse{Token: token, User: NewUserResponse(user)})
}

// Me returns the current authenticated user
// @Summary Get current user
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Security BearerAuth
// @Router /auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	id, ok := MustIdentity(c)
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), id.UserID)
	if err != nil {
		Unauthorized(c, "Invalid token")
		return
	}

	c.JSON(http.StatusOK, NewUserResponse(user))
}

// ChangePassword rotates the caller's password after checking the old one
// @Summary Change password
// @Tags auth
// @Accept json
// @Param request body ChangePasswordRequest true "Old and new password"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /auth/password [put]
func (h *Handler) ChangePassword(c *gin.Context) {
	id, ok := MustIdentity(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !apierr.Bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.users.Authenticate(ctx, id.Email, req.OldPassword); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, apierr.Response{
			Error:  "Invalid input",
			Fields: map[string]string{"old_password": "Wrong password."},
		})
		return
	}

	if err := h.users.SetPassword(ctx, id.UserID, req.NewPassword); err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// Logout handles user logout (client-side token invalidation)
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)

	authed := rg.Group("", AuthMiddleware(h.tokens, h.users))
	authed.GET("/me", h.Me)
	authed.PUT("/password", h.ChangePassword)
}
