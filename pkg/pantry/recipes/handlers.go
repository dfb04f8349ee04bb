package recipes

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mikepea/pantry/pkg/pantry/apierr"
	"github.com/mikepea/pantry/pkg/pantry/auth"
	"github.com/mikepea/pantry/pkg/pantry/ingredients"
	"github.com/mikepea/pantry/pkg/pantry/media"
	"github.com/mikepea/pantry/pkg/pantry/models"
	"github.com/mikepea/pantry/pkg/pantry/scope"
	"github.com/mikepea/pantry/pkg/pantry/tags"
)

// ErrImageTooLarge is returned when an upload exceeds the configured limit
var ErrImageTooLarge = errors.New("image exceeds the upload size limit")

// Handler handles recipe requests
type Handler struct {
	recipes   *Catalog
	media     media.Store
	maxUpload int64
}

// NewHandler creates a new recipes handler. Images are written to store and
// uploads larger than maxUploadBytes are rejected.
func NewHandler(db *gorm.DB, store media.Store, maxUploadBytes int64) *Handler {
	return &Handler{recipes: NewCatalog(db), media: store, maxUpload: maxUploadBytes}
}

// RecipeRequest is the body of create and full update
type RecipeRequest struct {
	Title       string           `json:"title" binding:"required,max=255"`
	TimeMinutes *int             `json:"time_minutes" binding:"required"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Link        string           `json:"link" binding:"max=255"`
	Tags        []uint           `json:"tags"`
	Ingredients []uint           `json:"ingredients"`
}

func (r RecipeRequest) input() RecipeInput {
	return RecipeInput{
		Title:       r.Title,
		TimeMinutes: *r.TimeMinutes,
		Price:       *r.Price,
		Link:        r.Link,
		Tags:        r.Tags,
		Ingredients: r.Ingredients,
	}
}

// PatchRecipeRequest is the body of a partial update
type PatchRecipeRequest struct {
	Title       *string          `json:"title" binding:"omitempty,max=255"`
	TimeMinutes *int             `json:"time_minutes"`
	Price       *decimal.Decimal `json:"price"`
	Link        *string          `json:"link" binding:"omitempty,max=255"`
	Tags        *[]uint          `json:"tags"`
	Ingredients *[]uint          `json:"ingredients"`
}

func (r PatchRecipeRequest) patch() RecipePatch {
	return RecipePatch{
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price,
		Link:        r.Link,
		Tags:        r.Tags,
		Ingredients: r.Ingredients,
	}
}

// RecipeSummary is the list representation: related records by id only
type RecipeSummary struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	TimeMinutes int    `json:"time_minutes"`
	Price       string `json:"price"`
	Link        string `json:"link"`
	Image       string `json:"image"`
	Tags        []uint `json:"tags"`
	Ingredients []uint `json:"ingredients"`
}

// RecipeDetail is the single-recipe representation with related records embedded
type RecipeDetail struct {
	ID          uint                             `json:"id"`
	Title       string                           `json:"title"`
	TimeMinutes int                              `json:"time_minutes"`
	Price       string                           `json:"price"`
	Link        string                           `json:"link"`
	Image       string                           `json:"image"`
	Tags        []tags.TagResponse               `json:"tags"`
	Ingredients []ingredients.IngredientResponse `json:"ingredients"`
}

// RecipeImageResponse is returned by an image upload
type RecipeImageResponse struct {
	ID    uint   `json:"id"`
	Image string `json:"image"`
}

func NewRecipeSummary(r models.Recipe) RecipeSummary {
	s := RecipeSummary{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price.StringFixed(2),
		Link:        r.Link,
		Image:       r.Image,
		Tags:        make([]uint, len(r.Tags)),
		Ingredients: make([]uint, len(r.Ingredients)),
	}
	for i, t := range r.Tags {
		s.Tags[i] = t.ID
	}
	for i, ing := range r.Ingredients {
		s.Ingredients[i] = ing.ID
	}
	return s
}

func NewRecipeDetail(r models.Recipe) RecipeDetail {
	d := RecipeDetail{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price.StringFixed(2),
		Link:        r.Link,
		Image:       r.Image,
		Tags:        make([]tags.TagResponse, len(r.Tags)),
		Ingredients: make([]ingredients.IngredientResponse, len(r.Ingredients)),
	}
	for i, t := range r.Tags {
		d.Tags[i] = tags.NewTagResponse(t)
	}
	for i, ing := range r.Ingredients {
		d.Ingredients[i] = ingredients.NewIngredientResponse(ing)
	}
	return d
}

func recipeID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apierr.Write(c, scope.ErrNotFound)
		return 0, false
	}
	return uint(id), true
}

func parseIDs(field, raw string) ([]uint, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, scope.Invalid(field, "Enter a comma-separated list of ids.")
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// List returns the caller's recipes, newest first
// @Summary List recipes
// @Tags recipes
// @Produce json
// @Param tags query string false "Comma-separated tag ids"
// @Param ingredients query string false "Comma-separated ingredient ids"
// @Success 200 {array} RecipeSummary
// @Failure 401 {object} apierr.Response
// @Security BearerAuth
// @Router /recipes [get]
func (h *Handler) List(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}

	var f ListFilter
	var err error
	if f.Tags, err = parseIDs("tags", c.Query("tags")); err != nil {
		apierr.Write(c, err)
		return
	}
	if f.Ingredients, err = parseIDs("ingredients", c.Query("ingredients")); err != nil {
		apierr.Write(c, err)
		return
	}

	recipes, err := h.recipes.Filter(c.Request.Context(), id, f)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	resp := make([]RecipeSummary, len(recipes))
	for i, r := range recipes {
		resp[i] = NewRecipeSummary(r)
	}
	c.JSON(http.StatusOK, resp)
}

// Create adds a recipe owned by the caller
// @Summary Create recipe
// @Tags recipes
// @Accept json
// @Produce json
// @Param request body RecipeRequest true "Recipe"
// @Success 201 {object} RecipeDetail
// @Failure 400 {object} apierr.Response
// @Security BearerAuth
// @Router /recipes [post]
func (h *Handler) Create(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}

	var req RecipeRequest
	if !apierr.Bind(c, &req) {
		return
	}

	recipe, err := h.recipes.Create(c.Request.Context(), id, req.input())
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewRecipeDetail(*recipe))
}

// Get returns a recipe with its tags and ingredients
// @Summary Get recipe
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 200 {object} RecipeDetail
// @Failure 404 {object} apierr.Response
// @Security BearerAuth
// @Router /recipes/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}
	rid, ok := recipeID(c)
	if !ok {
		return
	}

	recipe, err := h.recipes.Get(c.Request.Context(), id, rid)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, NewRecipeDetail(*recipe))
}

// Update replaces a recipe
// @Summary Update recipe
// @Tags recipes
// @Accept json
// @Produce json
// @Param id path int true "Recipe ID"
// @Param request body RecipeRequest true "Recipe"
// @Success 200 {object} RecipeDetail
// @Failure 400 {object} apierr.Response
// @Failure 404 {object} apierr.Response
// @Security BearerAuth
// @Router /recipes/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}
	rid, ok := recipeID(c)
	if !ok {
		return
	}

	var req RecipeRequest
	if !apierr.Bind(c, &req) {
		return
	}

	recipe, err := h.recipes.Update(c.Request.Context(), id, rid, req.input())
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, NewRecipeDetail(*recipe))
}

// Patch partially updates a recipe
// @Summary Patch recipe
// @Tags recipes
// @Accept json
// @Produce json
// @Param id path int true "Recipe ID"
// @Param request body PatchRecipeRequest true "Changed fields"
// @Success 200 {object} RecipeDetail
// @Failure 400 {object} apierr.Response
// @Failure 404 {object} apierr.Response
// @Security BearerAuth
// @Router /recipes/{id} [patch]
func (h *Handler) Patch(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}
	rid, ok := recipeID(c)
	if !ok {
		return
	}

	var req PatchRecipeRequest
	if !apierr.Bind(c, &req) {
		return
	}

	recipe, err := h.recipes.Patch(c.Request.Context(), id, rid, req.patch())
	if err != nil {
		apierr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, NewRecipeDetail(*recipe))
}

// Delete removes a recipe
// @Summary Delete recipe
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 404 {object} apierr.Response
// @Security BearerAuth
// @Router /recipes/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}
	rid, ok := recipeID(c)
	if !ok {
		return
	}

	if err := h.recipes.Delete(c.Request.Context(), id, rid); err != nil {
		apierr.Write(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UploadImage stores an image for a recipe and records its path
// @Summary Upload recipe image
// @Tags recipes
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Recipe ID"
// @Param image formData file true "Image file"
// @Success 200 {object} RecipeImageResponse
// @Failure 400 {object} apierr.Response
// @Failure 404 {object} apierr.Response
// @Security BearerAuth
// @Router /recipes/{id}/upload-image [post]
func (h *Handler) UploadImage(c *gin.Context) {
	id, ok := auth.MustIdentity(c)
	if !ok {
		return
	}
	rid, ok := recipeID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.recipes.Get(ctx, id, rid); err != nil {
		apierr.Write(c, err)
		return
	}

	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierr.Write(c, apierr.WithStatus(http.StatusRequestEntityTooLarge, ErrImageTooLarge))
			return
		}
		apierr.Write(c, scope.Required("image"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		apierr.Write(c, err)
		return
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil || !strings.HasPrefix(mt.String(), "image/") {
		apierr.Write(c, scope.Invalid("image", "Upload a valid image. The file you uploaded was either not an image or a corrupted image."))
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		apierr.Write(c, err)
		return
	}

	path := media.RecipeImagePath(fh.Filename)
	if err := h.media.Save(ctx, path, f, mt.String()); err != nil {
		apierr.Write(c, err)
		return
	}

	recipe, err := h.recipes.SetImage(ctx, id, rid, path)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	apierr.Logger(c).Infow("recipe image stored", "recipe_id", recipe.ID, "path", path)
	c.JSON(http.StatusOK, RecipeImageResponse{ID: recipe.ID, Image: recipe.Image})
}

// RegisterRoutes registers recipe routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/recipes", h.List)
	rg.POST("/recipes", h.Create)
	rg.GET("/recipes/:id", h.Get)
	rg.PUT("/recipes/:id", h.Update)
	rg.PATCH("/recipes/:id", h.Patch)
	rg.DELETE("/recipes/:id", h.Delete)
	rg.POST("/recipes/:id/upload-image", h.UploadImage)
}
