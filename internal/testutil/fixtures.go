package testutil

import (
	"testing"

	"go-cost-ledger/internal/models"

	"gorm.io/gorm"
)

// TestOwner is the owner id all fixtures default to.
const TestOwner uint = 1

// SeedIngredient inserts a test ingredient with sensible defaults: bought by
// the kilogram at 10000, used by the gram, no spoilage, 10 units on the shelf.
func SeedIngredient(t *testing.T, db *gorm.DB, overrides ...func(*models.Ingredient)) *models.Ingredient {
	t.Helper()

	ing := &models.Ingredient{
		OwnerID:          TestOwner,
		Name:             "Flour",
		PurchasePrice:    10000,
		PurchaseUnit:     "kg",
		UsageUnit:        "g",
		ConversionFactor: 1000,
		LossRate:         0,
		CurrentStock:     10,
		SafetyStock:      2,
	}
	for _, override := range overrides {
		override(ing)
	}

	if err := db.Create(ing).Error; err != nil {
		t.Fatalf("failed to seed ingredient: %v", err)
	}
	return ing
}

// SeedRecipe inserts a test recipe.
func SeedRecipe(t *testing.T, db *gorm.DB, overrides ...func(*models.Recipe)) *models.Recipe {
	t.Helper()

	recipe := &models.Recipe{
		OwnerID:   TestOwner,
		Name:      "Plain Loaf",
		SellPrice: 9000,
	}
	for _, override := range overrides {
		override(recipe)
	}

	if err := db.Create(recipe).Error; err != nil {
		t.Fatalf("failed to seed recipe: %v", err)
	}
	return recipe
}

// SeedComponent links a child item into a parent recipe's bill of materials.
func SeedComponent(t *testing.T, db *gorm.DB, recipeID uint, itemType string, itemID uint, quantity float64) *models.RecipeComponent {
	t.Helper()

	comp := &models.RecipeComponent{
		RecipeID: recipeID,
		ItemType: itemType,
		ItemID:   itemID,
		Quantity: quantity,
	}
	if err := db.Create(comp).Error; err != nil {
		t.Fatalf("failed to seed recipe component: %v", err)
	}
	return comp
}
