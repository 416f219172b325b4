// Package analytics derives reports from the stock ledger, the sales history
// and the recipe component graph: loss/shrinkage, stock depletion forecasts,
// supplier price comparison and procurement suggestions. Everything here is
// read-only; joins across collections go through keyed maps built once per
// report, never repeated row scans.
package analytics

import (
	"math"
	"sort"
	"time"

	"go-cost-ledger/internal/apperr"
	"go-cost-ledger/internal/costing"
	"go-cost-ledger/internal/models"

	"gorm.io/gorm"
)

// Defaults used when a caller does not override the report windows.
const (
	DefaultWindowDays    = 14
	DefaultHorizonDays   = 14
	DefaultThresholdDays = 7.0
)

// Engine computes reports against the store.
type Engine struct {
	db *gorm.DB
}

// New creates an analytics engine over the given store.
func New(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// LossRow is one ingredient's line of the loss report. Quantities are in the
// ingredient's usage unit; LossValue prices the loss in purchase units.
type LossRow struct {
	IngredientID     uint    `json:"ingredient_id"`
	IngredientName   string  `json:"ingredient_name"`
	UsageUnit        string  `json:"usage_unit"`
	TheoreticalUsage float64 `json:"theoretical_usage"`
	ActualLoss       float64 `json:"actual_loss"`
	LossRate         float64 `json:"loss_rate"`
	LossValue        float64 `json:"loss_value"`
}

// LossReport compares theoretical ingredient usage (every completed sale in
// the window resolved through the BOM) with the loss actually booked in the
// ledger as spoilage or discard entries. Ingredients with neither usage nor
// loss are left out; rows come back sorted by loss value, worst first.
func (e *Engine) LossReport(ownerID uint, periodDays int) ([]LossRow, error) {
	if periodDays <= 0 {
		periodDays = DefaultWindowDays
	}
	since := time.Now().AddDate(0, 0, -periodDays)

	// 1. Theoretical usage: resolve every sold recipe against its quantity.
	resolver, err := costing.NewResolver(e.db, ownerID)
	if err != nil {
		return nil, err
	}

	soldQty, err := e.soldQuantities(ownerID, since)
	if err != nil {
		return nil, err
	}

	theoretical := costing.NewResolution()
	for recipeID, qty := range soldQty {
		res, err := resolver.Resolve(recipeID, qty)
		if err != nil {
			return nil, err
		}
		theoretical.Merge(res)
	}

	// 2. Actual loss: spoilage/loss entries in the window, converted from
	// purchase units into usage units.
	var lossEntries []models.StockAdjustmentLog
	err = e.db.Where("owner_id = ? AND created_at >= ? AND adjustment_type IN ?",
		ownerID, since, []string{models.AdjustmentSpoilage, models.AdjustmentLoss}).
		Find(&lossEntries).Error
	if err != nil {
		return nil, apperr.Unavailable("loading loss entries: %v", err)
	}

	lossPurchaseUnits := make(map[uint]float64)
	for _, entry := range lossEntries {
		lossPurchaseUnits[entry.IngredientID] += math.Abs(entry.Quantity)
	}

	// 3. Join both sides by ingredient id.
	rows := make([]LossRow, 0)
	seen := make(map[uint]bool)
	appendRow := func(ing models.Ingredient, theoreticalUsage float64) {
		lossQty := lossPurchaseUnits[ing.ID]
		lossUsage := lossQty * ing.ConversionFactor
		if theoreticalUsage == 0 && lossUsage == 0 {
			return
		}
		rows = append(rows, LossRow{
			IngredientID:     ing.ID,
			IngredientName:   ing.Name,
			UsageUnit:        ing.UsageUnit,
			TheoreticalUsage: theoreticalUsage,
			ActualLoss:       lossUsage,
			LossRate:         lossUsage / (theoreticalUsage + lossUsage),
			LossValue:        lossQty * ing.PurchasePrice,
		})
		seen[ing.ID] = true
	}

	for _, line := range theoretical.Usage {
		appendRow(line.Ingredient, line.Quantity)
	}
	for id := range lossPurchaseUnits {
		if seen[id] {
			continue
		}
		ing, ok := resolver.Ingredient(id)
		if !ok {
			continue // loss booked against a since-removed ingredient
		}
		appendRow(*ing, 0)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].LossValue > rows[j].LossValue })
	return rows, nil
}

// DepletionRow is one at-risk ingredient of the depletion forecast.
// DailyRate and stock figures are in purchase units.
type DepletionRow struct {
	IngredientID   uint    `json:"ingredient_id"`
	IngredientName string  `json:"ingredient_name"`
	PurchaseUnit   string  `json:"purchase_unit"`
	CurrentStock   float64 `json:"current_stock"`
	DailyRate      float64 `json:"daily_rate"`
	DaysRemaining  float64 `json:"days_remaining"`
}

// DepletionForecast predicts how many days of stock remain per ingredient,
// from the actual consumption booked in the ledger over a trailing window.
// Only ingredients below the threshold are surfaced, soonest-out first; an
// ingredient with stock but no recent consumption never runs out and is
// never surfaced.
func (e *Engine) DepletionForecast(ownerID uint, windowDays int, thresholdDays float64) ([]DepletionRow, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if thresholdDays <= 0 {
		thresholdDays = DefaultThresholdDays
	}

	consumption, err := e.consumptionPerDay(ownerID, windowDays)
	if err != nil {
		return nil, err
	}

	var ingredients []models.Ingredient
	if err := e.db.Where("owner_id = ?", ownerID).Find(&ingredients).Error; err != nil {
		return nil, apperr.Unavailable("loading ingredients: %v", err)
	}

	rows := make([]DepletionRow, 0)
	for _, ing := range ingredients {
		rate := consumption[ing.ID]
		var daysRemaining float64
		switch {
		case rate > 0:
			daysRemaining = ing.CurrentStock / rate
		case ing.CurrentStock > 0:
			continue // no consumption, stock lasts indefinitely
		default:
			daysRemaining = 0 // empty and idle: already out
		}
		if daysRemaining >= thresholdDays {
			continue
		}
		rows = append(rows, DepletionRow{
			IngredientID:   ing.ID,
			IngredientName: ing.Name,
			PurchaseUnit:   ing.PurchaseUnit,
			CurrentStock:   ing.CurrentStock,
			DailyRate:      rate,
			DaysRemaining:  daysRemaining,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].DaysRemaining < rows[j].DaysRemaining })
	return rows, nil
}

// SourcingRow is one multi-supplier ingredient with a positive saving between
// its cheapest and most expensive supplier.
type SourcingRow struct {
	IngredientID     uint    `json:"ingredient_id"`
	IngredientName   string  `json:"ingredient_name"`
	PurchaseUnit     string  `json:"purchase_unit"`
	CheapestSupplier string  `json:"cheapest_supplier"`
	CheapestPrice    float64 `json:"cheapest_price"`
	PriciestSupplier string  `json:"priciest_supplier"`
	PriciestPrice    float64 `json:"priciest_price"`
	SavingPerUnit    float64 `json:"saving_per_unit"`
	SavingPercent    int     `json:"saving_percent"`
}

// SourcingReport averages historical purchase prices per (ingredient,
// supplier) and, for ingredients bought from two or more suppliers, reports
// the saving between the cheapest and most expensive average. Only positive
// savings are surfaced, biggest first.
func (e *Engine) SourcingReport(ownerID uint) ([]SourcingRow, error) {
	type supplierAvg struct {
		IngredientID uint
		SupplierName string
		AvgPrice     float64
	}
	var averages []supplierAvg
	err := e.db.Model(&models.PurchaseLineItem{}).
		Select("purchase_line_items.ingredient_id, purchases.supplier_name, AVG(purchase_line_items.unit_price) as avg_price").
		Joins("JOIN purchases ON purchases.id = purchase_line_items.purchase_id").
		Where("purchases.owner_id = ?", ownerID).
		Group("purchase_line_items.ingredient_id, purchases.supplier_name").
		Scan(&averages).Error
	if err != nil {
		return nil, apperr.Unavailable("aggregating purchase prices: %v", err)
	}

	perIngredient := make(map[uint][]supplierAvg)
	for _, avg := range averages {
		perIngredient[avg.IngredientID] = append(perIngredient[avg.IngredientID], avg)
	}

	var ingredients []models.Ingredient
	if err := e.db.Where("owner_id = ?", ownerID).Find(&ingredients).Error; err != nil {
		return nil, apperr.Unavailable("loading ingredients: %v", err)
	}
	byID := make(map[uint]models.Ingredient, len(ingredients))
	for _, ing := range ingredients {
		byID[ing.ID] = ing
	}

	rows := make([]SourcingRow, 0)
	for id, suppliers := range perIngredient {
		if len(suppliers) < 2 {
			continue
		}
		cheapest, priciest := suppliers[0], suppliers[0]
		for _, s := range suppliers[1:] {
			if s.AvgPrice < cheapest.AvgPrice {
				cheapest = s
			}
			if s.AvgPrice > priciest.AvgPrice {
				priciest = s
			}
		}
		saving := priciest.AvgPrice - cheapest.AvgPrice
		if saving <= 0 {
			continue
		}
		ing := byID[id]
		rows = append(rows, SourcingRow{
			IngredientID:     id,
			IngredientName:   ing.Name,
			PurchaseUnit:     ing.PurchaseUnit,
			CheapestSupplier: cheapest.SupplierName,
			CheapestPrice:    cheapest.AvgPrice,
			PriciestSupplier: priciest.SupplierName,
			PriciestPrice:    priciest.AvgPrice,
			SavingPerUnit:    saving,
			SavingPercent:    int(math.Round(saving / priciest.AvgPrice * 100)),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].SavingPerUnit > rows[j].SavingPerUnit })
	return rows, nil
}

// ProcurementRow is one purchase suggestion of the procurement forecast.
// Quantities are in purchase units.
type ProcurementRow struct {
	IngredientID   uint    `json:"ingredient_id"`
	IngredientName string  `json:"ingredient_name"`
	PurchaseUnit   string  `json:"purchase_unit"`
	CurrentStock   float64 `json:"current_stock"`
	SafetyStock    float64 `json:"safety_stock"`
	DailyRate      float64 `json:"daily_rate"`
	DaysRemaining  float64 `json:"days_remaining"`
	SuggestedQty   float64 `json:"suggested_qty"`
}

// ProcurementForecast suggests purchase quantities for ingredients about to
// run short: enough to cover the forward horizon at the recent consumption
// rate plus the safety stock, minus what is already on hand. The rate comes
// purely from negative ledger entries, never from resolver output.
func (e *Engine) ProcurementForecast(ownerID uint, windowDays, horizonDays int, thresholdDays float64) ([]ProcurementRow, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	if thresholdDays <= 0 {
		thresholdDays = DefaultThresholdDays
	}

	consumption, err := e.consumptionPerDay(ownerID, windowDays)
	if err != nil {
		return nil, err
	}

	var ingredients []models.Ingredient
	if err := e.db.Where("owner_id = ?", ownerID).Find(&ingredients).Error; err != nil {
		return nil, apperr.Unavailable("loading ingredients: %v", err)
	}

	rows := make([]ProcurementRow, 0)
	for _, ing := range ingredients {
		rate := consumption[ing.ID]
		if rate <= 0 {
			continue
		}
		daysRemaining := ing.CurrentStock / rate
		if daysRemaining >= thresholdDays {
			continue
		}
		suggested := rate*float64(horizonDays) + ing.SafetyStock - ing.CurrentStock
		if suggested <= 0 {
			continue
		}
		rows = append(rows, ProcurementRow{
			IngredientID:   ing.ID,
			IngredientName: ing.Name,
			PurchaseUnit:   ing.PurchaseUnit,
			CurrentStock:   ing.CurrentStock,
			SafetyStock:    ing.SafetyStock,
			DailyRate:      rate,
			DaysRemaining:  daysRemaining,
			SuggestedQty:   math.Ceil(suggested),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].DaysRemaining < rows[j].DaysRemaining })
	return rows, nil
}

// SalesSummaryRow is one day of the daily aggregate range report.
type SalesSummaryRow struct {
	Date         string  `json:"date"`
	DailyRevenue float64 `json:"daily_revenue"`
	DailyCogs    float64 `json:"daily_cogs"`
	GrossMargin  float64 `json:"gross_margin"`
}

// SalesSummary returns the daily revenue/COGS aggregates for a trailing
// number of days, newest first.
func (e *Engine) SalesSummary(ownerID uint, periodDays int) ([]SalesSummaryRow, error) {
	if periodDays <= 0 {
		periodDays = DefaultWindowDays
	}
	since := time.Now().AddDate(0, 0, -periodDays).Format("2006-01-02")

	var aggs []models.SalesDailyAggregate
	err := e.db.Where("owner_id = ? AND date >= ?", ownerID, since).
		Order("date desc").
		Find(&aggs).Error
	if err != nil {
		return nil, apperr.Unavailable("loading daily aggregates: %v", err)
	}

	rows := make([]SalesSummaryRow, 0, len(aggs))
	for _, agg := range aggs {
		rows = append(rows, SalesSummaryRow{
			Date:         agg.Date,
			DailyRevenue: agg.DailyRevenue,
			DailyCogs:    agg.DailyCogs,
			GrossMargin:  agg.DailyRevenue - agg.DailyCogs,
		})
	}
	return rows, nil
}

// soldQuantities sums completed-order line quantities per recipe since the
// given time.
func (e *Engine) soldQuantities(ownerID uint, since time.Time) (map[uint]float64, error) {
	type soldLine struct {
		RecipeID uint
		Total    float64
	}
	var lines []soldLine
	err := e.db.Model(&models.OrderLineItem{}).
		Select("order_line_items.recipe_id, SUM(order_line_items.quantity) as total").
		Joins("JOIN orders ON orders.id = order_line_items.order_id").
		Where("orders.owner_id = ? AND orders.status = ? AND orders.sale_date >= ?",
			ownerID, models.OrderStatusCompleted, since).
		Group("order_line_items.recipe_id").
		Scan(&lines).Error
	if err != nil {
		return nil, apperr.Unavailable("aggregating sold quantities: %v", err)
	}

	sold := make(map[uint]float64, len(lines))
	for _, line := range lines {
		sold[line.RecipeID] = line.Total
	}
	return sold, nil
}

// consumptionPerDay averages the outbound ledger quantity (purchase units)
// per ingredient over a trailing window of days.
func (e *Engine) consumptionPerDay(ownerID uint, windowDays int) (map[uint]float64, error) {
	since := time.Now().AddDate(0, 0, -windowDays)

	type consumed struct {
		IngredientID uint
		Total        float64
	}
	var totals []consumed
	err := e.db.Model(&models.StockAdjustmentLog{}).
		Select("ingredient_id, SUM(-quantity) as total").
		Where("owner_id = ? AND created_at >= ? AND quantity < 0", ownerID, since).
		Group("ingredient_id").
		Scan(&totals).Error
	if err != nil {
		return nil, apperr.Unavailable("aggregating consumption: %v", err)
	}

	rates := make(map[uint]float64, len(totals))
	for _, c := range totals {
		rates[c.IngredientID] = c.Total / float64(windowDays)
	}
	return rates, nil
}
