package fulfillment_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"go-cost-ledger/internal/apperr"
	"go-cost-ledger/internal/fulfillment"
	"go-cost-ledger/internal/ledger"
	"go-cost-ledger/internal/models"
	"go-cost-ledger/internal/testutil"

	"gorm.io/gorm"
)

const tolerance = 1e-9

// setupPipeline seeds the reference menu: flour at 10000/kg, recipe A using
// 200 g per portion, recipe B holding two portions of A.
func setupPipeline(t *testing.T) (*fulfillment.Pipeline, *gorm.DB, *models.Ingredient, *models.Recipe, *models.Recipe) {
	t.Helper()
	db := testutil.NewTestDB(t)
	pipeline := fulfillment.New(db, ledger.New(db, ledger.Options{}))

	ing := testutil.SeedIngredient(t, db)
	recipeA := testutil.SeedRecipe(t, db)
	recipeB := testutil.SeedRecipe(t, db, func(r *models.Recipe) { r.Name = "Loaf Set" })
	testutil.SeedComponent(t, db, recipeA.ID, models.ItemTypeIngredient, ing.ID, 200)
	testutil.SeedComponent(t, db, recipeB.ID, models.ItemTypeRecipe, recipeA.ID, 2)
	return pipeline, db, ing, recipeA, recipeB
}

func reloadIngredient(t *testing.T, db *gorm.DB, id uint) models.Ingredient {
	t.Helper()
	var ing models.Ingredient
	if err := db.First(&ing, id).Error; err != nil {
		t.Fatalf("failed to reload ingredient: %v", err)
	}
	return ing
}

func dailyAggregate(t *testing.T, db *gorm.DB, date time.Time) models.SalesDailyAggregate {
	t.Helper()
	var agg models.SalesDailyAggregate
	err := db.Where("owner_id = ? AND date = ?", testutil.TestOwner, date.Format("2006-01-02")).
		First(&agg).Error
	if err != nil {
		t.Fatalf("failed to load daily aggregate: %v", err)
	}
	return agg
}

func ledgerSum(t *testing.T, db *gorm.DB, ingredientID uint) float64 {
	t.Helper()
	var sum float64
	err := db.Model(&models.StockAdjustmentLog{}).
		Where("ingredient_id = ?", ingredientID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&sum).Error
	if err != nil {
		t.Fatalf("failed to sum ledger: %v", err)
	}
	return sum
}

func TestPipeline_CreateOrder(t *testing.T) {
	pipeline, db, ing, _, recipeB := setupPipeline(t)

	order, err := pipeline.CreateOrder(testutil.TestOwner, fulfillment.CreateOrderRequest{
		Items: []fulfillment.OrderLineRequest{
			{RecipeID: recipeB.ID, Quantity: 1, UnitPrice: 18000},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("order persisted with frozen cost", func(t *testing.T) {
		if order.Status != models.OrderStatusCompleted {
			t.Errorf("expected status completed, got %s", order.Status)
		}
		if order.TotalAmount != 18000 {
			t.Errorf("expected revenue 18000, got %g", order.TotalAmount)
		}
		// 2 portions of A = 400 g at 10 per gram
		if math.Abs(order.TotalCost-4000) > tolerance {
			t.Errorf("expected COGS 4000, got %g", order.TotalCost)
		}
		if order.OrderNumber == "" {
			t.Error("expected an order number")
		}
		var count int64
		db.Model(&models.OrderLineItem{}).Where("order_id = ?", order.ID).Count(&count)
		if count != 1 {
			t.Errorf("expected 1 line item, got %d", count)
		}
	})

	t.Run("stock deducted in purchase units", func(t *testing.T) {
		// 400 g / 1000 g-per-kg = 0.4 kg off the shelf
		if got := reloadIngredient(t, db, ing.ID).CurrentStock; math.Abs(got-9.6) > tolerance {
			t.Errorf("expected stock 9.6, got %g", got)
		}
	})

	t.Run("order-typed ledger entry written", func(t *testing.T) {
		var entries []models.StockAdjustmentLog
		db.Where("ingredient_id = ?", ing.ID).Find(&entries)
		if len(entries) != 1 {
			t.Fatalf("expected 1 ledger entry, got %d", len(entries))
		}
		if entries[0].AdjustmentType != models.AdjustmentOrder {
			t.Errorf("expected type order, got %s", entries[0].AdjustmentType)
		}
		if math.Abs(entries[0].Quantity+0.4) > tolerance {
			t.Errorf("expected quantity -0.4, got %g", entries[0].Quantity)
		}
	})

	t.Run("daily aggregate accumulated", func(t *testing.T) {
		agg := dailyAggregate(t, db, order.SaleDate)
		if agg.DailyRevenue != 18000 {
			t.Errorf("expected daily revenue 18000, got %g", agg.DailyRevenue)
		}
		if math.Abs(agg.DailyCogs-4000) > tolerance {
			t.Errorf("expected daily COGS 4000, got %g", agg.DailyCogs)
		}
	})

	t.Run("second order on the same day adds up", func(t *testing.T) {
		if _, err := pipeline.CreateOrder(testutil.TestOwner, fulfillment.CreateOrderRequest{
			Items: []fulfillment.OrderLineRequest{
				{RecipeID: recipeB.ID, Quantity: 1, UnitPrice: 18000},
			},
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		agg := dailyAggregate(t, db, order.SaleDate)
		if agg.DailyRevenue != 36000 {
			t.Errorf("expected accumulated revenue 36000, got %g", agg.DailyRevenue)
		}
	})

	t.Run("empty order rejected", func(t *testing.T) {
		_, err := pipeline.CreateOrder(testutil.TestOwner, fulfillment.CreateOrderRequest{})
		if !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})

	t.Run("unknown recipe leaves no partial writes", func(t *testing.T) {
		before := reloadIngredient(t, db, ing.ID).CurrentStock
		_, err := pipeline.CreateOrder(testutil.TestOwner, fulfillment.CreateOrderRequest{
			Items: []fulfillment.OrderLineRequest{
				{RecipeID: 99999, Quantity: 1, UnitPrice: 100},
			},
		})
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if got := reloadIngredient(t, db, ing.ID).CurrentStock; got != before {
			t.Errorf("stock must be untouched, was %g now %g", before, got)
		}
	})

	t.Run("ledger replay equals cached stock", func(t *testing.T) {
		ing := reloadIngredient(t, db, ing.ID)
		replayed := 10 + ledgerSum(t, db, ing.ID) // fixture starts at 10 with no entries
		if math.Abs(replayed-ing.CurrentStock) > tolerance {
			t.Errorf("replayed %g != cached %g", replayed, ing.CurrentStock)
		}
	})
}

func TestPipeline_CancelOrder(t *testing.T) {
	pipeline, db, ing, recipeA, _ := setupPipeline(t)

	order, err := pipeline.CreateOrder(testutil.TestOwner, fulfillment.CreateOrderRequest{
		Items: []fulfillment.OrderLineRequest{
			{RecipeID: recipeA.ID, Quantity: 3, UnitPrice: 9000},
		},
	})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	t.Run("cancel restores stock and aggregate exactly", func(t *testing.T) {
		cancelled, err := pipeline.CancelOrder(testutil.TestOwner, order.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cancelled.Status != models.OrderStatusCancelled {
			t.Errorf("expected status cancelled, got %s", cancelled.Status)
		}

		if got := reloadIngredient(t, db, ing.ID).CurrentStock; math.Abs(got-10) > tolerance {
			t.Errorf("expected pre-order stock 10 restored, got %g", got)
		}

		agg := dailyAggregate(t, db, order.SaleDate)
		if agg.DailyRevenue != 0 || agg.DailyCogs != 0 {
			t.Errorf("expected aggregate restored to zero, got revenue %g, cogs %g",
				agg.DailyRevenue, agg.DailyCogs)
		}

		var refunds []models.StockAdjustmentLog
		db.Where("adjustment_type = ?", models.AdjustmentRefund).Find(&refunds)
		if len(refunds) != 1 {
			t.Fatalf("expected 1 refund entry, got %d", len(refunds))
		}
		if math.Abs(refunds[0].Quantity-0.6) > tolerance {
			t.Errorf("expected refund of 0.6 purchase units, got %g", refunds[0].Quantity)
		}
	})

	t.Run("cancelling twice is a no-op", func(t *testing.T) {
		var entriesBefore int64
		db.Model(&models.StockAdjustmentLog{}).Count(&entriesBefore)

		again, err := pipeline.CancelOrder(testutil.TestOwner, order.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again.Status != models.OrderStatusCancelled {
			t.Errorf("expected status cancelled, got %s", again.Status)
		}

		var entriesAfter int64
		db.Model(&models.StockAdjustmentLog{}).Count(&entriesAfter)
		if entriesAfter != entriesBefore {
			t.Errorf("second cancel wrote %d new ledger entries", entriesAfter-entriesBefore)
		}
		if got := reloadIngredient(t, db, ing.ID).CurrentStock; math.Abs(got-10) > tolerance {
			t.Errorf("stock must stay at 10, got %g", got)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		if _, err := pipeline.CancelOrder(testutil.TestOwner, 99999); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestPipeline_RecordBatchProduction(t *testing.T) {
	pipeline, db, ing, recipeA, _ := setupPipeline(t)

	if err := pipeline.RecordBatchProduction(testutil.TestOwner, recipeA.ID, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 5 portions x 200 g = 1000 g = 1 kg
	if got := reloadIngredient(t, db, ing.ID).CurrentStock; math.Abs(got-9) > tolerance {
		t.Errorf("expected stock 9, got %g", got)
	}

	var entries []models.StockAdjustmentLog
	db.Find(&entries)
	if len(entries) != 1 || entries[0].AdjustmentType != models.AdjustmentCorrection {
		t.Fatalf("expected one correction entry, got %+v", entries)
	}

	// No sale happened: no order rows, no aggregate rows.
	var orders, aggs int64
	db.Model(&models.Order{}).Count(&orders)
	db.Model(&models.SalesDailyAggregate{}).Count(&aggs)
	if orders != 0 || aggs != 0 {
		t.Errorf("production must not touch sales: %d orders, %d aggregates", orders, aggs)
	}
}

func TestPipeline_RecordPurchase(t *testing.T) {
	pipeline, db, ing, _, _ := setupPipeline(t)

	purchase, err := pipeline.RecordPurchase(testutil.TestOwner, fulfillment.RecordPurchaseRequest{
		SupplierName: "Mill & Co",
		Items: []fulfillment.PurchaseLineRequest{
			{IngredientID: ing.ID, Quantity: 25, UnitPrice: 9800},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if purchase.TotalAmount != 25*9800 {
		t.Errorf("expected total %g, got %g", 25.0*9800, purchase.TotalAmount)
	}
	if got := reloadIngredient(t, db, ing.ID).CurrentStock; math.Abs(got-35) > tolerance {
		t.Errorf("expected stock 35, got %g", got)
	}

	var entries []models.StockAdjustmentLog
	db.Where("adjustment_type = ?", models.AdjustmentPurchase).Find(&entries)
	if len(entries) != 1 || entries[0].Quantity != 25 {
		t.Fatalf("expected one +25 purchase entry, got %+v", entries)
	}

	t.Run("non-positive quantity rejected", func(t *testing.T) {
		_, err := pipeline.RecordPurchase(testutil.TestOwner, fulfillment.RecordPurchaseRequest{
			SupplierName: "Mill & Co",
			Items: []fulfillment.PurchaseLineRequest{
				{IngredientID: ing.ID, Quantity: -3, UnitPrice: 9800},
			},
		})
		if !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})

	t.Run("unknown ingredient rolls the purchase back", func(t *testing.T) {
		var before int64
		db.Model(&models.Purchase{}).Count(&before)
		_, err := pipeline.RecordPurchase(testutil.TestOwner, fulfillment.RecordPurchaseRequest{
			SupplierName: "Mystery Goods",
			Items: []fulfillment.PurchaseLineRequest{
				{IngredientID: 99999, Quantity: 1, UnitPrice: 100},
			},
		})
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		var after int64
		db.Model(&models.Purchase{}).Count(&after)
		if after != before {
			t.Errorf("failed purchase must not persist, count went %d -> %d", before, after)
		}
	})
}

func TestPipeline_RecordWaste(t *testing.T) {
	pipeline, db, ing, _, _ := setupPipeline(t)

	t.Run("spoilage deducts", func(t *testing.T) {
		entry, err := pipeline.RecordWaste(testutil.TestOwner, ing.ID, 2, models.AdjustmentSpoilage, "past best-before")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry.Quantity != -2 {
			t.Errorf("expected signed quantity -2, got %g", entry.Quantity)
		}
		if got := reloadIngredient(t, db, ing.ID).CurrentStock; math.Abs(got-8) > tolerance {
			t.Errorf("expected stock 8, got %g", got)
		}
	})

	t.Run("correction keeps its sign", func(t *testing.T) {
		entry, err := pipeline.RecordWaste(testutil.TestOwner, ing.ID, 1.5, models.AdjustmentCorrection, "stocktake")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry.Quantity != 1.5 {
			t.Errorf("expected +1.5, got %g", entry.Quantity)
		}
	})

	t.Run("negative spoilage rejected", func(t *testing.T) {
		if _, err := pipeline.RecordWaste(testutil.TestOwner, ing.ID, -1, models.AdjustmentSpoilage, ""); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})

	t.Run("order type cannot be booked manually", func(t *testing.T) {
		if _, err := pipeline.RecordWaste(testutil.TestOwner, ing.ID, 1, models.AdjustmentOrder, ""); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})
}

func TestPipeline_LedgerConsistency(t *testing.T) {
	// Mixed workload; afterwards the replayed ledger must equal the cache.
	pipeline, db, ing, recipeA, recipeB := setupPipeline(t)

	if _, err := pipeline.RecordPurchase(testutil.TestOwner, fulfillment.RecordPurchaseRequest{
		SupplierName: "Mill & Co",
		Items:        []fulfillment.PurchaseLineRequest{{IngredientID: ing.ID, Quantity: 5, UnitPrice: 10000}},
	}); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	order, err := pipeline.CreateOrder(testutil.TestOwner, fulfillment.CreateOrderRequest{
		Items: []fulfillment.OrderLineRequest{
			{RecipeID: recipeA.ID, Quantity: 2, UnitPrice: 9000},
			{RecipeID: recipeB.ID, Quantity: 1, UnitPrice: 18000},
		},
	})
	if err != nil {
		t.Fatalf("order failed: %v", err)
	}
	if _, err := pipeline.RecordWaste(testutil.TestOwner, ing.ID, 1, models.AdjustmentLoss, "dropped"); err != nil {
		t.Fatalf("waste failed: %v", err)
	}
	if _, err := pipeline.CancelOrder(testutil.TestOwner, order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	cached := reloadIngredient(t, db, ing.ID).CurrentStock
	replayed := 10 + ledgerSum(t, db, ing.ID) // fixture seeds 10 outside the ledger
	if math.Abs(cached-replayed) > tolerance {
		t.Errorf("cached stock %g diverged from replayed ledger %g", cached, replayed)
	}
}
