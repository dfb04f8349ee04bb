package tags

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mikepea/pantry/pkg/pantry/apierr"
	"github.com/mikepea/pantry/pkg/pantry/auth"
	"github.com/mikepea/pantry/pkg/pantry/models"
	"github.com/mikepea/pantry/pkg/pantry/scope"
)

var _ scope.Resource[models.Tag, string] = (*scope.Registry[models.Tag, *models.Tag])(nil)

// Handler handles tag-related requests
type Handler struct {
	tags *scope.Registry[models.Tag, *models.Tag]
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{tags: scope.NewRegistry[models.Tag](db)}
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// CreateTagRequest represents the request to create a tag
type CreateTagRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// NewTagResponse maps a tag to its public representation
func NewTagResponse(t models.Tag) TagResponse {
	return TagResponse{ID: t.ID, Name: t.Name}
}

// List returns the caller's tags, name descending
// @Summary List tags
// @Tags tags
// @Produce json
// @Success 200 {array} TagResponse
// @Failure 401 {object} apierr.Response
// @Security BearerAuth
// @Router /tags [get]
func (h *Handler) List(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}

	tags, err := h.tags.List(c.Request.Context(), id)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	resp := make([]TagResponse, len(tags))
	for i, t := range tags {
		resp[i] = NewTagResponse(t)
	}
	c.JSON(http.StatusOK, resp)
}

// Create adds a tag owned by the caller
// @Summary Create tag
// @Tags tags
// @Accept json
// @Produce json
// @Param request body CreateTagRequest true "Tag"
// @Success 201 {object} TagResponse
// @Failure 400 {object} apierr.Response
// @Failure 401 {object} apierr.Response
// @Security BearerAuth
// @Router /tags [post]
func (h *Handler) Create(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}

	var req CreateTagRequest
	if !apierr.Bind(c, &req) {
		return
	}

	tag, err := h.tags.Create(c.Request.Context(), id, req.Name)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewTagResponse(*tag))
}

// RegisterRoutes registers tag routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
	rg.POST("/tags", h.Create)
}
