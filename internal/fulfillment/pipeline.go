// Package fulfillment orchestrates the write side of the engine: order
// creation and cancellation, batch production, supplier purchases and manual
// waste entries. Every operation resolves quantities through the costing
// package, appends to the stock ledger and keeps the daily sales aggregate
// in step - all inside a single store transaction, so there is no window
// where an order exists without its stock and aggregate effects.
package fulfillment

import (
	"errors"
	"time"

	"go-cost-ledger/internal/apperr"
	"go-cost-ledger/internal/costing"
	"go-cost-ledger/internal/ledger"
	"go-cost-ledger/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Pipeline wires the resolver and the ledger to the store.
type Pipeline struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// New creates a pipeline over the given store and ledger.
func New(db *gorm.DB, l *ledger.Ledger) *Pipeline {
	return &Pipeline{db: db, ledger: l}
}

// OrderLineRequest is one recipe line of a sale.
type OrderLineRequest struct {
	RecipeID  uint    `json:"recipe_id" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required"`
	UnitPrice float64 `json:"unit_price"`
}

// CreateOrderRequest is the input of CreateOrder.
type CreateOrderRequest struct {
	Items    []OrderLineRequest `json:"items" binding:"required"`
	SaleDate *time.Time         `json:"sale_date"`
}

// CreateOrder records a sale: it resolves every line's ingredient usage and
// material cost, persists the order with its COGS frozen, writes one negative
// 'order' ledger entry per consumed ingredient and rolls revenue and cost
// into the daily aggregate for the sale date.
func (p *Pipeline) CreateOrder(ownerID uint, req CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperr.InvalidArgument("order must have at least one line item")
	}

	// 1. Resolve usage and cost for the whole cart before writing anything.
	resolver, err := costing.NewResolver(p.db, ownerID)
	if err != nil {
		return nil, err
	}

	combined := costing.NewResolution()
	var totalAmount float64
	lineItems := make([]models.OrderLineItem, 0, len(req.Items))
	for _, item := range req.Items {
		res, err := resolver.Resolve(item.RecipeID, item.Quantity)
		if err != nil {
			return nil, err
		}
		combined.Merge(res)
		totalAmount += item.UnitPrice * item.Quantity
		lineItems = append(lineItems, models.OrderLineItem{
			RecipeID:  item.RecipeID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	saleDate := time.Now()
	if req.SaleDate != nil {
		saleDate = *req.SaleDate
	}

	order := &models.Order{
		OwnerID:     ownerID,
		OrderNumber: uuid.NewString(),
		Status:      models.OrderStatusCompleted,
		TotalAmount: totalAmount,
		TotalCost:   combined.TotalCost,
		SaleDate:    saleDate,
		CreatedAt:   time.Now(),
		Items:       lineItems,
	}

	// 2-4. Order, ledger entries and aggregate commit or roll back together.
	err = p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return apperr.Unavailable("creating order: %v", err)
		}

		if err := p.applyUsage(tx, ownerID, combined, -1,
			models.AdjustmentOrder, "order "+order.OrderNumber, saleDate); err != nil {
			return err
		}

		return p.bumpAggregate(tx, ownerID, saleDate, totalAmount, combined.TotalCost)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder transitions an order to cancelled, reverses its ledger effect
// with positive 'refund' entries and subtracts its totals from the daily
// aggregate. Cancelling an already-cancelled order is a no-op.
func (p *Pipeline) CancelOrder(ownerID, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := p.db.Preload("Items").
		Where("owner_id = ?", ownerID).
		First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %d", orderID)
		}
		return nil, apperr.Unavailable("loading order %d: %v", orderID, err)
	}

	if order.Status == models.OrderStatusCancelled {
		return &order, nil
	}

	// Re-resolve the original line items to rebuild the usage map the order
	// was created with. Prices and BOM edits since the sale do not matter
	// for quantities; the aggregate reversal uses the frozen totals.
	resolver, err := costing.NewResolver(p.db, ownerID)
	if err != nil {
		return nil, err
	}
	combined := costing.NewResolution()
	for _, item := range order.Items {
		res, err := resolver.Resolve(item.RecipeID, item.Quantity)
		if err != nil {
			return nil, err
		}
		combined.Merge(res)
	}

	err = p.db.Transaction(func(tx *gorm.DB) error {
		// Guard against a concurrent cancel of the same order: only one
		// transition away from 'completed' can win.
		result := tx.Model(&models.Order{}).
			Where("id = ? AND owner_id = ? AND status = ?", order.ID, ownerID, models.OrderStatusCompleted).
			Update("status", models.OrderStatusCancelled)
		if result.Error != nil {
			return apperr.Unavailable("cancelling order %d: %v", order.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil // lost the race to another cancel; nothing left to do
		}

		if err := p.applyUsage(tx, ownerID, combined, +1,
			models.AdjustmentRefund, "cancel order "+order.OrderNumber, time.Now()); err != nil {
			return err
		}

		return p.bumpAggregate(tx, ownerID, order.SaleDate, -order.TotalAmount, -order.TotalCost)
	})
	if err != nil {
		return nil, err
	}

	order.Status = models.OrderStatusCancelled
	return &order, nil
}

// RecordBatchProduction consumes ingredients for producing quantity portions
// of a recipe in-house (prep batches) with no sales side effects. Entries are
// 'correction'-typed: stock moved without a sale.
func (p *Pipeline) RecordBatchProduction(ownerID, recipeID uint, quantity float64) error {
	resolver, err := costing.NewResolver(p.db, ownerID)
	if err != nil {
		return err
	}
	res, err := resolver.Resolve(recipeID, quantity)
	if err != nil {
		return err
	}

	recipe, _ := resolver.Recipe(recipeID)
	return p.db.Transaction(func(tx *gorm.DB) error {
		return p.applyUsage(tx, ownerID, res, -1,
			models.AdjustmentCorrection, "batch production: "+recipe.Name, time.Now())
	})
}

// PurchaseLineRequest is one ingredient line of a supplier transaction.
type PurchaseLineRequest struct {
	IngredientID uint    `json:"ingredient_id" binding:"required"`
	Quantity     float64 `json:"quantity" binding:"required"` // purchase units
	UnitPrice    float64 `json:"unit_price"`                  // per purchase unit
}

// RecordPurchaseRequest is the input of RecordPurchase.
type RecordPurchaseRequest struct {
	SupplierName string                `json:"supplier_name" binding:"required"`
	PurchasedAt  *time.Time            `json:"purchased_at"`
	Items        []PurchaseLineRequest `json:"items" binding:"required"`
}

// RecordPurchase persists a supplier transaction, raises the cached stock of
// every delivered ingredient through positive 'purchase' ledger entries, and
// leaves the line items behind as price points for sourcing comparison.
func (p *Pipeline) RecordPurchase(ownerID uint, req RecordPurchaseRequest) (*models.Purchase, error) {
	if len(req.Items) == 0 {
		return nil, apperr.InvalidArgument("purchase must have at least one line item")
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, apperr.InvalidArgument("purchase quantity for ingredient %d must be positive", item.IngredientID)
		}
	}

	purchasedAt := time.Now()
	if req.PurchasedAt != nil {
		purchasedAt = *req.PurchasedAt
	}

	purchase := &models.Purchase{
		OwnerID:      ownerID,
		SupplierName: req.SupplierName,
		PurchasedAt:  purchasedAt,
	}
	for _, item := range req.Items {
		purchase.TotalAmount += item.Quantity * item.UnitPrice
		purchase.Items = append(purchase.Items, models.PurchaseLineItem{
			IngredientID: item.IngredientID,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
		})
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(purchase).Error; err != nil {
			return apperr.Unavailable("creating purchase: %v", err)
		}
		for _, item := range req.Items {
			if _, err := p.ledger.Record(tx, ownerID, item.IngredientID, item.Quantity,
				models.AdjustmentPurchase, "delivery from "+req.SupplierName, purchasedAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// RecordWaste writes a manual spoilage/loss/correction entry. Spoilage and
// loss always deduct; corrections carry their own sign (a stocktake can go
// either way).
func (p *Pipeline) RecordWaste(ownerID, ingredientID uint, quantity float64, adjType, reason string) (*models.StockAdjustmentLog, error) {
	switch adjType {
	case models.AdjustmentSpoilage, models.AdjustmentLoss:
		if quantity <= 0 {
			return nil, apperr.InvalidArgument("%s quantity must be positive, got %g", adjType, quantity)
		}
		quantity = -quantity
	case models.AdjustmentCorrection:
		// signed as given
	default:
		return nil, apperr.InvalidArgument("adjustment type %q cannot be recorded manually", adjType)
	}
	return p.ledger.Record(nil, ownerID, ingredientID, quantity, adjType, reason, time.Now())
}

// applyUsage converts every usage line of a resolution from usage units to
// purchase units and writes one signed ledger entry per ingredient.
func (p *Pipeline) applyUsage(tx *gorm.DB, ownerID uint, res *costing.Resolution, sign float64, adjType, reason string, at time.Time) error {
	for id, line := range res.Usage {
		if line.Ingredient.ConversionFactor <= 0 {
			return apperr.InvalidArgument("ingredient %d has non-positive conversion factor", id)
		}
		purchaseQty := line.Quantity / line.Ingredient.ConversionFactor
		if purchaseQty == 0 {
			continue
		}
		if _, err := p.ledger.Record(tx, ownerID, id, sign*purchaseQty, adjType, reason, at); err != nil {
			return err
		}
	}
	return nil
}

// bumpAggregate adds the deltas to the (owner, date) daily aggregate,
// creating the row if it does not exist yet. The increments are relative
// expressions so concurrent orders on the same day cannot trample each other.
func (p *Pipeline) bumpAggregate(tx *gorm.DB, ownerID uint, saleDate time.Time, revenueDelta, cogsDelta float64) error {
	agg := models.SalesDailyAggregate{
		OwnerID:      ownerID,
		Date:         saleDate.Format("2006-01-02"),
		DailyRevenue: revenueDelta,
		DailyCogs:    cogsDelta,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"daily_revenue": gorm.Expr("daily_revenue + ?", revenueDelta),
			"daily_cogs":    gorm.Expr("daily_cogs + ?", cogsDelta),
		}),
	}).Create(&agg).Error
	if err != nil {
		return apperr.Unavailable("updating daily aggregate: %v", err)
	}
	return nil
}
