package costing

import (
	"go-cost-ledger/internal/apperr"
	"go-cost-ledger/internal/models"

	"gorm.io/gorm"
)

// maxDepth bounds the component graph recursion. Real menus nest two or three
// levels deep; anything past this is a modelling mistake, not a menu.
const maxDepth = 32

// UsageLine accumulates one ingredient's share of a resolution.
// Quantity is in the ingredient's usage unit.
type UsageLine struct {
	Ingredient models.Ingredient `json:"ingredient"`
	Quantity   float64           `json:"quantity"`
	Cost       float64           `json:"cost"`
}

// Resolution is the result of walking a recipe's bill of materials:
// total leaf-ingredient usage plus total material cost.
type Resolution struct {
	Usage     map[uint]*UsageLine `json:"usage"` // keyed by ingredient id
	TotalCost float64             `json:"total_cost"`
}

// NewResolution returns an empty resolution, ready to merge into.
func NewResolution() *Resolution {
	return &Resolution{Usage: make(map[uint]*UsageLine)}
}

// Merge folds another resolution into this one. Accumulation is commutative,
// so the merge order of sibling lines does not affect the result.
func (res *Resolution) Merge(other *Resolution) {
	for id, line := range other.Usage {
		if existing, ok := res.Usage[id]; ok {
			existing.Quantity += line.Quantity
			existing.Cost += line.Cost
		} else {
			copied := *line
			res.Usage[id] = &copied
		}
	}
	res.TotalCost += other.TotalCost
}

// Resolver walks the recipe component graph against an in-memory snapshot of
// the owner's recipes, components and ingredients. The snapshot is loaded once
// per operation into keyed maps so resolution never re-scans the store.
type Resolver struct {
	recipes     map[uint]*models.Recipe
	ingredients map[uint]*models.Ingredient
	components  map[uint][]models.RecipeComponent
}

// NewResolver loads the owner's full BOM graph from the store.
func NewResolver(db *gorm.DB, ownerID uint) (*Resolver, error) {
	var recipes []models.Recipe
	if err := db.Where("owner_id = ?", ownerID).Find(&recipes).Error; err != nil {
		return nil, apperr.Unavailable("loading recipes: %v", err)
	}

	var ingredients []models.Ingredient
	if err := db.Where("owner_id = ?", ownerID).Find(&ingredients).Error; err != nil {
		return nil, apperr.Unavailable("loading ingredients: %v", err)
	}

	recipeIDs := make([]uint, 0, len(recipes))
	for _, rec := range recipes {
		recipeIDs = append(recipeIDs, rec.ID)
	}
	var components []models.RecipeComponent
	if len(recipeIDs) > 0 {
		if err := db.Where("recipe_id IN ?", recipeIDs).Find(&components).Error; err != nil {
			return nil, apperr.Unavailable("loading recipe components: %v", err)
		}
	}

	r := &Resolver{
		recipes:     make(map[uint]*models.Recipe, len(recipes)),
		ingredients: make(map[uint]*models.Ingredient, len(ingredients)),
		components:  make(map[uint][]models.RecipeComponent, len(recipes)),
	}
	for i := range recipes {
		r.recipes[recipes[i].ID] = &recipes[i]
	}
	for i := range ingredients {
		r.ingredients[ingredients[i].ID] = &ingredients[i]
	}
	for _, comp := range components {
		r.components[comp.RecipeID] = append(r.components[comp.RecipeID], comp)
	}
	return r, nil
}

// Ingredient returns the snapshot of one ingredient, if present.
func (r *Resolver) Ingredient(id uint) (*models.Ingredient, bool) {
	ing, ok := r.ingredients[id]
	return ing, ok
}

// Recipe returns the snapshot of one recipe, if present.
func (r *Resolver) Recipe(id uint) (*models.Recipe, bool) {
	rec, ok := r.recipes[id]
	return rec, ok
}

// Resolve computes the leaf-ingredient usage and total material cost of
// producing quantity portions of the given recipe. The walk is depth-first;
// sub-recipe edges multiply quantities downward, ingredient edges accumulate.
// The data model does not forbid cycles, so the walk tracks the recipe ids on
// the current path and fails with a graph error instead of looping forever.
func (r *Resolver) Resolve(recipeID uint, quantity float64) (*Resolution, error) {
	if quantity <= 0 {
		return nil, apperr.InvalidArgument("resolve quantity must be positive, got %g", quantity)
	}

	res := NewResolution()
	path := make(map[uint]bool)
	if err := r.walk(recipeID, quantity, path, 0, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Resolver) walk(recipeID uint, quantity float64, path map[uint]bool, depth int, res *Resolution) error {
	if depth > maxDepth {
		return apperr.Graph("recipe %d nests deeper than %d levels", recipeID, maxDepth)
	}
	if path[recipeID] {
		return apperr.Graph("recipe %d is part of a component cycle", recipeID)
	}
	if _, ok := r.recipes[recipeID]; !ok {
		return apperr.NotFound("recipe %d", recipeID)
	}

	path[recipeID] = true
	defer delete(path, recipeID)

	for _, comp := range r.components[recipeID] {
		childQty := comp.Quantity * quantity

		switch comp.ItemType {
		case models.ItemTypeIngredient:
			ing, ok := r.ingredients[comp.ItemID]
			if !ok {
				return apperr.NotFound("ingredient %d referenced by recipe %d", comp.ItemID, recipeID)
			}
			unitCost, err := UnitCost(ing.PurchasePrice, ing.ConversionFactor, ing.LossRate)
			if err != nil {
				return err
			}
			line, ok := res.Usage[ing.ID]
			if !ok {
				line = &UsageLine{Ingredient: *ing}
				res.Usage[ing.ID] = line
			}
			line.Quantity += childQty
			line.Cost += childQty * unitCost
			res.TotalCost += childQty * unitCost

		case models.ItemTypeRecipe:
			if err := r.walk(comp.ItemID, childQty, path, depth+1, res); err != nil {
				return err
			}

		default:
			return apperr.InvalidArgument("component %d has unknown item type %q", comp.ID, comp.ItemType)
		}
	}
	return nil
}
