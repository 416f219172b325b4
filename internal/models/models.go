package models

import (
	"time"
)

// Adjustment types recorded in the stock ledger.
// The ledger is append-only: corrections are new entries, never edits.
const (
	AdjustmentPurchase   = "purchase"   // inbound supplier delivery
	AdjustmentSpoilage   = "spoilage"   // expired / unusable stock
	AdjustmentCorrection = "correction" // stocktake fix or batch production
	AdjustmentOrder      = "order"      // consumed by a sale
	AdjustmentRefund     = "refund"     // reversal of a cancelled sale
	AdjustmentLoss       = "loss"       // discarded / wasted stock
)

// Order statuses. Cancelled orders are kept (soft transition), never deleted.
const (
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Ingredient - A raw material tracked in the inventory
// Bought in PurchaseUnit (e.g. "kg"), consumed by recipes in UsageUnit (e.g. "g").
// CurrentStock is a cached projection of the stock ledger, in purchase units.
type Ingredient struct {
	ID               uint    `gorm:"primaryKey" json:"id"`
	OwnerID          uint    `gorm:"index" json:"owner_id"`
	Name             string  `json:"name"`
	PurchasePrice    float64 `json:"purchase_price"` // cost per one purchase unit
	PurchaseUnit     string  `json:"purchase_unit"`
	UsageUnit        string  `json:"usage_unit"`
	ConversionFactor float64 `json:"conversion_factor"` // usage units per purchase unit, must be > 0
	LossRate         float64 `json:"loss_rate"`         // spoilage fraction in [0,1)
	CurrentStock     float64 `json:"current_stock"`     // purchase units, may go negative (shortage)
	SafetyStock      float64 `json:"safety_stock"`      // reorder threshold, purchase units
}

// Recipe - A menu item or prep item (sub-recipe) sold or produced in portions
type Recipe struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	OwnerID   uint    `gorm:"index" json:"owner_id"`
	Name      string  `json:"name"`
	SellPrice float64 `json:"sell_price"`
	IsPrep    bool    `json:"is_prep"` // true for sub-recipes not sold directly
}

// Component item types. A component edge points at either an ingredient
// or another recipe (sub-recipe).
const (
	ItemTypeIngredient = "ingredient"
	ItemTypeRecipe     = "recipe"
)

// RecipeComponent - One edge of the bill-of-materials graph
// Quantity is per ONE portion of the parent recipe: in the child's usage unit
// when the child is an ingredient, in child portions when it is a sub-recipe.
type RecipeComponent struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	RecipeID uint    `gorm:"index" json:"recipe_id"` // parent recipe
	ItemType string  `json:"item_type"`              // 'ingredient' or 'recipe'
	ItemID   uint    `json:"item_id"`
	Quantity float64 `json:"quantity"`
}

// StockAdjustmentLog - One immutable entry of the inventory ledger
// Quantity is signed and in purchase units: positive = inbound, negative = consumed.
type StockAdjustmentLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OwnerID        uint      `gorm:"index" json:"owner_id"`
	IngredientID   uint      `gorm:"index" json:"ingredient_id"`
	Quantity       float64   `json:"quantity"`
	AdjustmentType string    `json:"adjustment_type"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// Order - A sale of one or more recipes
// TotalCost is the material cost (COGS) frozen at creation time.
type Order struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OwnerID     uint            `gorm:"index" json:"owner_id"`
	OrderNumber string          `gorm:"uniqueIndex;size:36" json:"order_number"`
	Status      string          `json:"status"`
	TotalAmount float64         `json:"total_amount"`
	TotalCost   float64         `json:"total_cost"`
	SaleDate    time.Time       `gorm:"index" json:"sale_date"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []OrderLineItem `gorm:"foreignKey:OrderID" json:"items"`
}

// OrderLineItem - One recipe line inside an order
type OrderLineItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	OrderID   uint    `gorm:"index" json:"order_id"`
	RecipeID  uint    `json:"recipe_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"` // snapshot of the sell price at sale time
}

// SalesDailyAggregate - Running revenue/COGS totals per owner and day
// Mutated in place on every order create/cancel, not replaced.
type SalesDailyAggregate struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	OwnerID      uint    `gorm:"uniqueIndex:idx_owner_date" json:"owner_id"`
	Date         string  `gorm:"uniqueIndex:idx_owner_date;size:10" json:"date"` // YYYY-MM-DD
	DailyRevenue float64 `json:"daily_revenue"`
	DailyCogs    float64 `json:"daily_cogs"`
}

// Purchase - A supplier transaction
// Line items raise the cached stock and feed the supplier price comparison.
type Purchase struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	OwnerID      uint               `gorm:"index" json:"owner_id"`
	SupplierName string             `gorm:"index" json:"supplier_name"`
	TotalAmount  float64            `json:"total_amount"`
	PurchasedAt  time.Time          `json:"purchased_at"`
	Items        []PurchaseLineItem `gorm:"foreignKey:PurchaseID" json:"items"`
}

// PurchaseLineItem - One ingredient line of a supplier transaction
type PurchaseLineItem struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	PurchaseID   uint    `gorm:"index" json:"purchase_id"`
	IngredientID uint    `gorm:"index" json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`   // purchase units
	UnitPrice    float64 `json:"unit_price"` // per purchase unit
}
