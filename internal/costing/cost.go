// Package costing resolves material costs: the per-unit cost primitive and
// the recursive bill-of-materials resolver built on top of it.
package costing

import (
	"go-cost-ledger/internal/apperr"
)

// floorDivisor caps the spoilage divisor when the loss rate is at or above 1.
// A loss rate of 1 means "everything spoils", which has no real unit economics;
// the floor only exists so degenerate rows yield a finite positive cost instead
// of dividing by zero. Callers should treat such rows as data entry errors.
const floorDivisor = 0.001

// UnitCost converts a purchase-unit price into a usage-unit cost.
//
// An ingredient bought at purchasePrice per purchase unit, with
// conversionFactor usage units per purchase unit and a spoilage fraction of
// lossRate, costs (purchasePrice / conversionFactor) / (1 - lossRate) per
// usable usage unit. Example: 10000 per kg, 1000 g per kg, no loss -> 10.0
// per gram.
func UnitCost(purchasePrice, conversionFactor, lossRate float64) (float64, error) {
	if conversionFactor <= 0 {
		return 0, apperr.InvalidArgument("conversion factor must be positive, got %g", conversionFactor)
	}
	if lossRate < 0 {
		return 0, apperr.InvalidArgument("loss rate must not be negative, got %g", lossRate)
	}

	divisor := 1 - lossRate
	if lossRate >= 1 {
		divisor = floorDivisor
	}

	return (purchasePrice / conversionFactor) / divisor, nil
}
