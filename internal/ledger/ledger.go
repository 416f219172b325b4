// Package ledger maintains the append-only inventory movement log and the
// cached running balance on each ingredient. The log is the source of truth;
// the cached balance is a projection of it and can be rebuilt by replay.
package ledger

import (
	"time"

	"go-cost-ledger/internal/apperr"
	"go-cost-ledger/internal/models"

	"gorm.io/gorm"
)

// Options configures ledger policy.
type Options struct {
	// DisallowNegativeStock rejects adjustments that would take the cached
	// balance below zero. Off by default: negative stock is a real-world
	// shortage indicator, not an error.
	DisallowNegativeStock bool
}

// Ledger appends stock movements and keeps the cached balances in step.
type Ledger struct {
	db   *gorm.DB
	opts Options
}

// New creates a ledger over the given store.
func New(db *gorm.DB, opts Options) *Ledger {
	return &Ledger{db: db, opts: opts}
}

// Record appends one adjustment entry and applies its signed quantity to the
// ingredient's cached balance. The balance update is a relative expression
// evaluated by the store, so concurrent writers against the same ingredient
// cannot lose each other's updates.
//
// When tx is nil the two writes run in their own transaction; callers that
// already hold one (the fulfillment pipeline) pass it in so the entry commits
// or rolls back with the rest of their work.
func (l *Ledger) Record(tx *gorm.DB, ownerID, ingredientID uint, signedQty float64, adjType, reason string, at time.Time) (*models.StockAdjustmentLog, error) {
	if signedQty == 0 {
		return nil, apperr.InvalidArgument("adjustment quantity must not be zero (ambiguous intent)")
	}

	var entry *models.StockAdjustmentLog
	record := func(tx *gorm.DB) error {
		var err error
		entry, err = l.record(tx, ownerID, ingredientID, signedQty, adjType, reason, at)
		return err
	}

	if tx != nil {
		if err := record(tx); err != nil {
			return nil, err
		}
		return entry, nil
	}
	if err := l.db.Transaction(record); err != nil {
		return nil, err
	}
	return entry, nil
}

func (l *Ledger) record(tx *gorm.DB, ownerID, ingredientID uint, signedQty float64, adjType, reason string, at time.Time) (*models.StockAdjustmentLog, error) {
	// 1. Apply the balance as a server-side relative update. The WHERE clause
	// doubles as the existence check; with the negative-stock policy on, it
	// also guards the floor, and a raced-out or insufficient update shows up
	// as zero affected rows.
	update := tx.Model(&models.Ingredient{}).
		Where("id = ? AND owner_id = ?", ingredientID, ownerID)
	if l.opts.DisallowNegativeStock {
		update = update.Where("current_stock + ? >= 0", signedQty)
	}
	result := update.UpdateColumn("current_stock", gorm.Expr("current_stock + ?", signedQty))
	if result.Error != nil {
		return nil, apperr.Unavailable("updating cached stock: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.Ingredient{}).
			Where("id = ? AND owner_id = ?", ingredientID, ownerID).
			Count(&count).Error; err != nil {
			return nil, apperr.Unavailable("checking ingredient %d: %v", ingredientID, err)
		}
		if count == 0 {
			return nil, apperr.NotFound("ingredient %d", ingredientID)
		}
		return nil, apperr.Conflict("adjustment of %g would take ingredient %d below zero stock", signedQty, ingredientID)
	}

	// 2. Append the entry. Entries are immutable: corrections are new rows.
	if at.IsZero() {
		at = time.Now()
	}
	entry := &models.StockAdjustmentLog{
		OwnerID:        ownerID,
		IngredientID:   ingredientID,
		Quantity:       signedQty,
		AdjustmentType: adjType,
		Reason:         reason,
		CreatedAt:      at,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, apperr.Unavailable("appending ledger entry: %v", err)
	}
	return entry, nil
}

// History returns ledger entries newest first, optionally filtered to one
// ingredient and/or a start time.
func (l *Ledger) History(ownerID uint, ingredientID *uint, limit int, since *time.Time) ([]models.StockAdjustmentLog, error) {
	query := l.db.Where("owner_id = ?", ownerID)
	if ingredientID != nil {
		query = query.Where("ingredient_id = ?", *ingredientID)
	}
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.StockAdjustmentLog
	if err := query.Order("created_at desc, id desc").Find(&entries).Error; err != nil {
		return nil, apperr.Unavailable("loading ledger history: %v", err)
	}
	return entries, nil
}

// Rebuild replays the full ledger for one ingredient and overwrites the
// cached balance with the replayed sum. Recovery path for cache drift; the
// replay and the overwrite run in one transaction so a concurrent adjustment
// cannot slip between them.
func (l *Ledger) Rebuild(ownerID, ingredientID uint) (float64, error) {
	var balance float64
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Ingredient{}).
			Where("id = ? AND owner_id = ?", ingredientID, ownerID).
			Count(&count).Error; err != nil {
			return apperr.Unavailable("checking ingredient %d: %v", ingredientID, err)
		}
		if count == 0 {
			return apperr.NotFound("ingredient %d", ingredientID)
		}

		if err := tx.Model(&models.StockAdjustmentLog{}).
			Where("owner_id = ? AND ingredient_id = ?", ownerID, ingredientID).
			Select("COALESCE(SUM(quantity), 0)").
			Scan(&balance).Error; err != nil {
			return apperr.Unavailable("replaying ledger for ingredient %d: %v", ingredientID, err)
		}

		if err := tx.Model(&models.Ingredient{}).
			Where("id = ? AND owner_id = ?", ingredientID, ownerID).
			UpdateColumn("current_stock", balance).Error; err != nil {
			return apperr.Unavailable("writing rebuilt stock for ingredient %d: %v", ingredientID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}
