package ledger_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"go-cost-ledger/internal/apperr"
	"go-cost-ledger/internal/ledger"
	"go-cost-ledger/internal/models"
	"go-cost-ledger/internal/testutil"

	"gorm.io/gorm"
)

func currentStock(t *testing.T, db *gorm.DB, id uint) float64 {
	t.Helper()
	var ing models.Ingredient
	if err := db.First(&ing, id).Error; err != nil {
		t.Fatalf("failed to reload ingredient: %v", err)
	}
	return ing.CurrentStock
}

func TestLedger_Record(t *testing.T) {
	db := testutil.NewTestDB(t)
	l := ledger.New(db, ledger.Options{})
	ing := testutil.SeedIngredient(t, db) // starts at 10

	t.Run("positive adjustment raises the balance", func(t *testing.T) {
		entry, err := l.Record(nil, testutil.TestOwner, ing.ID, 5, models.AdjustmentPurchase, "delivery", time.Time{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry.Quantity != 5 || entry.AdjustmentType != models.AdjustmentPurchase {
			t.Errorf("entry not recorded as given: %+v", entry)
		}
		if entry.CreatedAt.IsZero() {
			t.Error("expected a timestamp to be filled in")
		}
		if got := currentStock(t, db, ing.ID); got != 15 {
			t.Errorf("expected stock 15, got %g", got)
		}
	})

	t.Run("negative adjustment may take the balance below zero", func(t *testing.T) {
		if _, err := l.Record(nil, testutil.TestOwner, ing.ID, -20, models.AdjustmentOrder, "big sale", time.Time{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := currentStock(t, db, ing.ID); got != -5 {
			t.Errorf("expected shortage of -5, got %g", got)
		}
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		if _, err := l.Record(nil, testutil.TestOwner, ing.ID, 0, models.AdjustmentCorrection, "", time.Time{}); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})

	t.Run("unknown ingredient", func(t *testing.T) {
		if _, err := l.Record(nil, testutil.TestOwner, 99999, 1, models.AdjustmentPurchase, "", time.Time{}); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("other owner's ingredient is invisible", func(t *testing.T) {
		if _, err := l.Record(nil, testutil.TestOwner+1, ing.ID, 1, models.AdjustmentPurchase, "", time.Time{}); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestLedger_DisallowNegativeStock(t *testing.T) {
	db := testutil.NewTestDB(t)
	l := ledger.New(db, ledger.Options{DisallowNegativeStock: true})
	ing := testutil.SeedIngredient(t, db) // starts at 10

	t.Run("overdraft rejected as conflict", func(t *testing.T) {
		if _, err := l.Record(nil, testutil.TestOwner, ing.ID, -20, models.AdjustmentOrder, "", time.Time{}); !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
		if got := currentStock(t, db, ing.ID); got != 10 {
			t.Errorf("balance must be untouched after a rejected overdraft, got %g", got)
		}
		var count int64
		db.Model(&models.StockAdjustmentLog{}).Count(&count)
		if count != 0 {
			t.Errorf("no entry may be appended for a rejected overdraft, found %d", count)
		}
	})

	t.Run("draining to exactly zero is allowed", func(t *testing.T) {
		if _, err := l.Record(nil, testutil.TestOwner, ing.ID, -10, models.AdjustmentOrder, "", time.Time{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := currentStock(t, db, ing.ID); got != 0 {
			t.Errorf("expected stock 0, got %g", got)
		}
	})
}

func TestLedger_History(t *testing.T) {
	db := testutil.NewTestDB(t)
	l := ledger.New(db, ledger.Options{})
	flour := testutil.SeedIngredient(t, db)
	sugar := testutil.SeedIngredient(t, db, func(i *models.Ingredient) { i.Name = "Sugar" })

	base := time.Now().Add(-3 * time.Hour)
	steps := []struct {
		ingredientID uint
		qty          float64
		at           time.Time
	}{
		{flour.ID, 4, base},
		{sugar.ID, 2, base.Add(time.Hour)},
		{flour.ID, -1, base.Add(2 * time.Hour)},
	}
	for _, step := range steps {
		if _, err := l.Record(nil, testutil.TestOwner, step.ingredientID, step.qty, models.AdjustmentCorrection, "seed", step.at); err != nil {
			t.Fatalf("failed to seed history: %v", err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		entries, err := l.History(testutil.TestOwner, nil, 0, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
		if entries[0].Quantity != -1 || entries[2].Quantity != 4 {
			t.Errorf("expected newest-first ordering, got %+v", entries)
		}
	})

	t.Run("filter by ingredient", func(t *testing.T) {
		entries, err := l.History(testutil.TestOwner, &sugar.ID, 0, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 1 || entries[0].IngredientID != sugar.ID {
			t.Errorf("expected only sugar's entry, got %+v", entries)
		}
	})

	t.Run("limit and since", func(t *testing.T) {
		entries, err := l.History(testutil.TestOwner, nil, 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected limit to cap at 1, got %d", len(entries))
		}

		since := base.Add(30 * time.Minute)
		entries, err = l.History(testutil.TestOwner, nil, 0, &since)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("expected 2 entries since cutoff, got %d", len(entries))
		}
	})
}

func TestLedger_Rebuild(t *testing.T) {
	db := testutil.NewTestDB(t)
	l := ledger.New(db, ledger.Options{})
	ing := testutil.SeedIngredient(t, db, func(i *models.Ingredient) { i.CurrentStock = 0 })

	for _, qty := range []float64{8, -2.5, -0.5, 3} {
		if _, err := l.Record(nil, testutil.TestOwner, ing.ID, qty, models.AdjustmentCorrection, "seed", time.Time{}); err != nil {
			t.Fatalf("failed to seed ledger: %v", err)
		}
	}

	t.Run("replaying the ledger matches the cache", func(t *testing.T) {
		if got := currentStock(t, db, ing.ID); math.Abs(got-8) > 1e-9 {
			t.Fatalf("expected cached stock 8, got %g", got)
		}
		balance, err := l.Rebuild(testutil.TestOwner, ing.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(balance-8) > 1e-9 {
			t.Errorf("expected rebuilt balance 8, got %g", balance)
		}
	})

	t.Run("rebuild recovers from cache drift", func(t *testing.T) {
		// Simulate drift: something clobbered the cached balance.
		if err := db.Model(&models.Ingredient{}).Where("id = ?", ing.ID).
			UpdateColumn("current_stock", 999).Error; err != nil {
			t.Fatalf("failed to inject drift: %v", err)
		}

		balance, err := l.Rebuild(testutil.TestOwner, ing.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(balance-8) > 1e-9 {
			t.Errorf("expected rebuilt balance 8, got %g", balance)
		}
		if got := currentStock(t, db, ing.ID); math.Abs(got-8) > 1e-9 {
			t.Errorf("expected cache overwritten to 8, got %g", got)
		}
	})

	t.Run("unknown ingredient", func(t *testing.T) {
		if _, err := l.Rebuild(testutil.TestOwner, 99999); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}
