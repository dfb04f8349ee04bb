// Package recipes is the recipe catalog: per-user recipes that reference
// tags and ingredients, with list, detail, update, delete and image upload.
package recipes

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mikepea/pantry/pkg/pantry/models"
	"github.com/mikepea/pantry/pkg/pantry/scope"
)

var maxPrice = decimal.New(100000, 0)

// RecipeInput is the full set of writable recipe fields.
type RecipeInput struct {
	Title       string
	TimeMinutes int
	Price       decimal.Decimal
	Link        string
	Tags        []uint
	Ingredients []uint
}

// RecipePatch is a partial update. Nil fields are left unchanged; a non-nil
// Tags or Ingredients replaces the whole set.
type RecipePatch struct {
	Title       *string
	TimeMinutes *int
	Price       *decimal.Decimal
	Link        *string
	Tags        *[]uint
	Ingredients *[]uint
}

// ListFilter narrows a recipe listing to recipes carrying any of the given
// tags and any of the given ingredients.
type ListFilter struct {
	Tags        []uint
	Ingredients []uint
}

// Catalog stores recipes scoped to their owners.
type Catalog struct {
	db *gorm.DB
}

var _ scope.Resource[models.Recipe, RecipeInput] = (*Catalog)(nil)

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

func preloadByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func (c *Catalog) withRelations() *gorm.DB {
	return c.db.Preload("Tags", preloadByID).Preload("Ingredients", preloadByID)
}

// List returns the caller's recipes, newest first.
func (c *Catalog) List(ctx context.Context, id scope.Identity) ([]models.Recipe, error) {
	return c.Filter(ctx, id, ListFilter{})
}

// Filter returns the caller's recipes matching f, newest first.
func (c *Catalog) Filter(ctx context.Context, id scope.Identity, f ListFilter) ([]models.Recipe, error) {
	q := c.withRelations()
	if len(f.Tags) > 0 {
		q = q.Where("id IN (?)", c.db.Table("recipe_tags").Select("recipe_id").Where("tag_id IN ?", f.Tags))
	}
	if len(f.Ingredients) > 0 {
		q = q.Where("id IN (?)", c.db.Table("recipe_ingredients").Select("recipe_id").Where("ingredient_id IN ?", f.Ingredients))
	}
	return scope.List[models.Recipe](ctx, q, id, scope.OrderByIDDesc)
}

// Get returns one of the caller's recipes with its tags and ingredients.
func (c *Catalog) Get(ctx context.Context, id scope.Identity, recipeID uint) (*models.Recipe, error) {
	return scope.Get[models.Recipe](ctx, c.withRelations(), id, recipeID)
}

// Create stores a new recipe owned by the caller.
func (c *Catalog) Create(ctx context.Context, id scope.Identity, in RecipeInput) (*models.Recipe, error) {
	if !id.Valid() {
		return nil, scope.ErrUnauthorized
	}

	recipe := &models.Recipe{}
	applyInput(recipe, in)
	if err := validate(recipe); err != nil {
		return nil, err
	}

	var recipeID uint
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, ingredients, err := resolve(tx, id, in.Tags, in.Ingredients)
		if err != nil {
			return err
		}
		if err := scope.Create(ctx, tx.Omit("Tags", "Ingredients"), id, recipe); err != nil {
			return err
		}
		recipeID = recipe.ID
		return replaceRelations(tx, recipe, tags, ingredients)
	})
	if err != nil {
		return nil, err
	}

	return c.Get(ctx, id, recipeID)
}

// Update replaces every writable field of one of the caller's recipes.
// Omitted tag or ingredient lists clear the set.
func (c *Catalog) Update(ctx context.Context, id scope.Identity, recipeID uint, in RecipeInput) (*models.Recipe, error) {
	tagIDs, ingredientIDs := in.Tags, in.Ingredients
	if tagIDs == nil {
		tagIDs = []uint{}
	}
	if ingredientIDs == nil {
		ingredientIDs = []uint{}
	}

	return c.Patch(ctx, id, recipeID, RecipePatch{
		Title:       &in.Title,
		TimeMinutes: &in.TimeMinutes,
		Price:       &in.Price,
		Link:        &in.Link,
		Tags:        &tagIDs,
		Ingredients: &ingredientIDs,
	})
}

// Patch applies a partial update to one of the caller's recipes.
func (c *Catalog) Patch(ctx context.Context, id scope.Identity, recipeID uint, p RecipePatch) (*models.Recipe, error) {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := scope.Get[models.Recipe](ctx, tx, id, recipeID)
		if err != nil {
			return err
		}

		applyPatch(recipe, p)
		if err := validate(recipe); err != nil {
			return err
		}

		var tagIDs, ingredientIDs []uint
		if p.Tags != nil {
			tagIDs = *p.Tags
		}
		if p.Ingredients != nil {
			ingredientIDs = *p.Ingredients
		}
		tags, ingredients, err := resolve(tx, id, tagIDs, ingredientIDs)
		if err != nil {
			return err
		}

		if err := scope.Save(ctx, tx, id, recipe); err != nil {
			return err
		}

		if p.Tags != nil {
			if err := tx.Model(recipe).Association("Tags").Replace(tags); err != nil {
				return errors.Wrap(err, "replace tags")
			}
		}
		if p.Ingredients != nil {
			if err := tx.Model(recipe).Association("Ingredients").Replace(ingredients); err != nil {
				return errors.Wrap(err, "replace ingredients")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c.Get(ctx, id, recipeID)
}

// Delete removes one of the caller's recipes and its tag and ingredient
// links. The tags and ingredients themselves are kept.
func (c *Catalog) Delete(ctx context.Context, id scope.Identity, recipeID uint) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := scope.Get[models.Recipe](ctx, tx, id, recipeID)
		if err != nil {
			return err
		}
		if err := tx.Select("Tags", "Ingredients").Delete(recipe).Error; err != nil {
			return errors.Wrap(err, "delete recipe")
		}
		return nil
	})
}

// SetImage records the storage path of the recipe's image.
func (c *Catalog) SetImage(ctx context.Context, id scope.Identity, recipeID uint, path string) (*models.Recipe, error) {
	recipe, err := scope.Get[models.Recipe](ctx, c.db, id, recipeID)
	if err != nil {
		return nil, err
	}

	if err := c.db.WithContext(ctx).Model(recipe).UpdateColumn("image", path).Error; err != nil {
		return nil, errors.Wrap(err, "set recipe image")
	}

	return c.Get(ctx, id, recipeID)
}

func applyInput(r *models.Recipe, in RecipeInput) {
	r.Title = strings.TrimSpace(in.Title)
	r.TimeMinutes = in.TimeMinutes
	r.Price = in.Price
	r.Link = strings.TrimSpace(in.Link)
}

func applyPatch(r *models.Recipe, p RecipePatch) {
	if p.Title != nil {
		r.Title = strings.TrimSpace(*p.Title)
	}
	if p.TimeMinutes != nil {
		r.TimeMinutes = *p.TimeMinutes
	}
	if p.Price != nil {
		r.Price = *p.Price
	}
	if p.Link != nil {
		r.Link = strings.TrimSpace(*p.Link)
	}
}

func validate(r *models.Recipe) error {
	switch {
	case r.Title == "":
		return scope.Required("title")
	case len(r.Title) > 255:
		return scope.Invalid("title", "Ensure this field has no more than 255 characters.")
	case r.TimeMinutes < 0:
		return scope.Invalid("time_minutes", "Ensure this value is greater than or equal to 0.")
	case r.Price.IsNegative():
		return scope.Invalid("price", "Ensure this value is greater than or equal to 0.")
	case !r.Price.Equal(r.Price.Round(2)):
		return scope.Invalid("price", "Ensure that there are no more than 2 decimal places.")
	case r.Price.GreaterThanOrEqual(maxPrice):
		return scope.Invalid("price", "Ensure that there are no more than 7 digits in total.")
	}

	if r.Link != "" {
		u, err := url.ParseRequestURI(r.Link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return scope.Invalid("link", "Enter a valid URL.")
		}
	}
	return nil
}

// resolve loads the referenced tags and ingredients. Every id must name a
// record owned by id; another owner's record is reported like a missing one.
func resolve(tx *gorm.DB, id scope.Identity, tagIDs, ingredientIDs []uint) ([]models.Tag, []models.Ingredient, error) {
	tags := make([]models.Tag, 0, len(tagIDs))
	if err := loadAll(tx, id, "tags", dedupe(tagIDs), &tags); err != nil {
		return nil, nil, err
	}

	ingredients := make([]models.Ingredient, 0, len(ingredientIDs))
	if err := loadAll(tx, id, "ingredients", dedupe(ingredientIDs), &ingredients); err != nil {
		return nil, nil, err
	}

	return tags, ingredients, nil
}

func loadAll[T any](tx *gorm.DB, owner scope.Identity, field string, ids []uint, dst *[]T) error {
	if len(ids) == 0 {
		return nil
	}

	var found []uint
	if err := scope.OwnedBy(tx.Model(new(T)), owner).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return errors.Wrapf(err, "check %s", field)
	}
	if len(found) != len(ids) {
		exists := make(map[uint]bool, len(found))
		for _, id := range found {
			exists[id] = true
		}
		for _, id := range ids {
			if !exists[id] {
				return scope.Invalid(field, fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
			}
		}
	}

	if err := scope.OwnedBy(tx.Model(new(T)), owner).Where("id IN ?", ids).Order("id").Find(dst).Error; err != nil {
		return errors.Wrapf(err, "load %s", field)
	}
	return nil
}

func dedupe(ids []uint) []uint {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func replaceRelations(tx *gorm.DB, recipe *models.Recipe, tags []models.Tag, ingredients []models.Ingredient) error {
	if len(tags) > 0 {
		if err := tx.Model(recipe).Association("Tags").Replace(tags); err != nil {
			return errors.Wrap(err, "set tags")
		}
	}
	if len(ingredients) > 0 {
		if err := tx.Model(recipe).Association("Ingredients").Replace(ingredients); err != nil {
			return errors.Wrap(err, "set ingredients")
		}
	}
	return nil
}
