// Package server wires the HTTP API: routing, authentication groups and the
// request middleware, plus the http.Server lifecycle.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mikepea/pantry/pkg/pantry/accounts"
	"github.com/mikepea/pantry/pkg/pantry/admin"
	"github.com/mikepea/pantry/pkg/pantry/apierr"
	"github.com/mikepea/pantry/pkg/pantry/apikeys"
	"github.com/mikepea/pantry/pkg/pantry/auth"
	"github.com/mikepea/pantry/pkg/pantry/ingredients"
	"github.com/mikepea/pantry/pkg/pantry/media"
	"github.com/mikepea/pantry/pkg/pantry/recipes"
	"github.com/mikepea/pantry/pkg/pantry/tags"
)

// Deps are the collaborators the router hands to the resource handlers.
type Deps struct {
	DB             *gorm.DB
	Tokens         *auth.TokenIssuer
	Media          media.Store
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// NewRouter builds the gin engine serving the whole API.
func NewRouter(d Deps) *gin.Engine {
	apierr.Setup()

	lg := d.Logger
	if lg == nil {
		lg = zap.NewNop()
	}

	r := gin.New()
	r.Use(requestLogger(lg), recovery(lg))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "pantry"})
	}
	r.GET("/health", health)

	users := accounts.NewStore(d.DB)

	api := r.Group("/api")
	{
		api.GET("/health", health)

		// Auth routes (public, /me and /password need a session token)
		auth.NewHandler(users, d.Tokens).RegisterRoutes(api.Group("/auth"))

		// Accepts JWT or API key
		combinedAuth := apikeys.CombinedAuthMiddleware(d.DB, d.Tokens, users)

		// API keys are managed with a session token only
		apikeys.NewHandler(d.DB).RegisterRoutes(api.Group("", auth.AuthMiddleware(d.Tokens, users)))

		owned := api.Group("", combinedAuth)
		tags.NewHandler(d.DB).RegisterRoutes(owned)
		ingredients.NewHandler(d.DB).RegisterRoutes(owned)
		recipes.NewHandler(d.DB, d.Media, d.MaxUploadBytes).RegisterRoutes(owned)

		// Admin routes (JWT only, superuser required)
		adminGroup := api.Group("/admin", auth.AuthMiddleware(d.Tokens, users), auth.RequireSuperuser())
		admin.NewHandler(d.DB, users).RegisterRoutes(adminGroup)
	}

	return r
}
