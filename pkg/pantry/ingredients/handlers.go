package ingredients

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mikepea/pantry/pkg/pantry/apierr"
	"github.com/mikepea/pantry/pkg/pantry/auth"
	"github.com/mikepea/pantry/pkg/pantry/models"
	"github.com/mikepea/pantry/pkg/pantry/scope"
)

var _ scope.Resource[models.Ingredient, string] = (*scope.Registry[models.Ingredient, *models.Ingredient])(nil)

// Handler handles ingredient-related requests
type Handler struct {
	ingredients *scope.Registry[models.Ingredient, *models.Ingredient]
}

// NewHandler creates a new ingredients handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{ingredients: scope.NewRegistry[models.Ingredient](db)}
}

// IngredientResponse represents an ingredient in API responses
type IngredientResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// CreateIngredientRequest represents the request to create an ingredient
type CreateIngredientRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// NewIngredientResponse maps an ingredient to its public representation
func NewIngredientResponse(i models.Ingredient) IngredientResponse {
	return IngredientResponse{ID: i.ID, Name: i.Name}
}

// List returns the caller's ingredients, name descending
// @Summary List ingredients
// @Tags ingredients
// @Produce json
// @Success 200 {array} IngredientResponse
// @Failure 401 {object} apierr.Response
// @Security BearerAuth
// @Router /ingredients [get]
func (h *Handler) List(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}

	ingredients, err := h.ingredients.List(c.Request.Context(), id)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	resp := make([]IngredientResponse, len(ingredients))
	for i, ing := range ingredients {
		resp[i] = NewIngredientResponse(ing)
	}
	c.JSON(http.StatusOK, resp)
}

// Create adds an ingredient owned by the caller
// @Summary Create ingredient
// @Tags ingredients
// @Accept json
// @Produce json
// @Param request body CreateIngredientRequest true "Ingredient"
// @Success 201 {object} IngredientResponse
// @Failure 400 {object} apierr.Response
// @Failure 401 {object} apierr.Response
// @Security BearerAuth
// @Router /ingredients [post]
func (h *Handler) Create(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}

	var req CreateIngredientRequest
	if !apierr.Bind(c, &req) {
		return
	}

	ingredient, err := h.ingredients.Create(c.Request.Context(), id, req.Name)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewIngredientResponse(*ingredient))
}

// RegisterRoutes registers ingredient routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ingredients", h.List)
	rg.POST("/ingredients", h.Create)
}
