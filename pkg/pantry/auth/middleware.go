package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/pantry/pkg/pantry/apierr"
	"github.com/mikepea/pantry/pkg/pantry/models"
	"github.com/mikepea/pantry/pkg/pantry/scope"
)

// ContextKeyIdentity is the key for the resolved caller in gin context
const ContextKeyIdentity = "identity"

// UserLookup loads the account a credential refers to
type UserLookup interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Unauthorized aborts the request with a 401 response
func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, apierr.Response{Error: msg})
}

// ResolveJWT validates a session token and loads the active user it names.
func ResolveJWT(ctx context.Context, tokens *TokenIssuer, users UserLookup, token string) (*models.User, error) {
	claims, err := tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	user, err := users.Get(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// AuthMiddleware accepts JWT session tokens only and sets the identity in context
func AuthMiddleware(tokens *TokenIssuer, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			Unauthorized(c, "Authorization header required")
			return
		}

		user, err := ResolveJWT(c.Request.Context(), tokens, users, token)
		if err != nil {
			if err == ErrExpiredToken {
				Unauthorized(c, "Token has expired")
			} else {
				Unauthorized(c, "Invalid token")
			}
			return
		}

		SetIdentity(c, user)
		c.Next()
	}
}

// RequireSuperuser rejects callers without the superuser flag
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			Unauthorized(c, "Authentication required")
			return
		}

		if !id.IsSuperuser {
			c.AbortWithStatusJSON(http.StatusForbidden, apierr.Response{Error: "Admin access required"})
			return
		}

		c.Next()
	}
}

// SetIdentity stores user as the caller identity
func SetIdentity(c *gin.Context, user *models.User) {
	c.Set(ContextKeyIdentity, scope.Identity{
		UserID:      user.ID,
		Email:       user.Email,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	})
}

// GetIdentity returns the caller identity from the gin context
func GetIdentity(c *gin.Context) (scope.Identity, bool) {
	v, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return scope.Identity{}, false
	}
	id, ok := v.(scope.Identity)
	return id, ok && id.Valid()
}

// MustIdentity returns the caller identity, writing a 401 when there is none.
// Handlers return immediately when ok is false.
func MustIdentity(c *gin.Context) (id scope.Identity, ok bool) {
	id, ok = GetIdentity(c)
	if !ok {
		apierr.Write(c, scope.ErrUnauthorized)
	}
	return id, ok
}
