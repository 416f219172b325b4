package handlers

import (
	"net/http"
	"strconv"

	"go-cost-ledger/internal/analytics"
	"go-cost-ledger/internal/database"
	"go-cost-ledger/internal/middleware"

	"github.com/gin-gonic/gin"
)

// intQuery reads an integer query parameter, falling back on bad input.
func intQuery(c *gin.Context, name string, fallback int) int {
	value, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return value
}

// --- GET: /api/reports/loss ---
// GetLossReport compares theoretical ingredient usage (sales resolved through
// the recipe graph) against booked spoilage/loss, worst offenders first.
func GetLossReport(c *gin.Context) {
	periodDays := intQuery(c, "period_days", analytics.DefaultWindowDays)

	rows, err := analytics.New(database.DB).LossReport(middleware.OwnerID(c), periodDays)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"period_days": periodDays, "items": rows})
}

// --- GET: /api/reports/depletion ---
// GetDepletionForecast lists ingredients predicted to run out within the
// threshold, based on recent ledger consumption.
func GetDepletionForecast(c *gin.Context) {
	windowDays := intQuery(c, "window_days", analytics.DefaultWindowDays)
	thresholdDays := float64(intQuery(c, "threshold_days", int(analytics.DefaultThresholdDays)))

	rows, err := analytics.New(database.DB).DepletionForecast(middleware.OwnerID(c), windowDays, thresholdDays)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"window_days": windowDays, "items": rows})
}

// --- GET: /api/reports/sourcing ---
// GetSourcingReport compares average purchase prices across suppliers.
func GetSourcingReport(c *gin.Context) {
	rows, err := analytics.New(database.DB).SourcingReport(middleware.OwnerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": rows})
}

// --- GET: /api/reports/procurement ---
// GetProcurementForecast suggests purchase quantities for ingredients about
// to run short.
func GetProcurementForecast(c *gin.Context) {
	windowDays := intQuery(c, "window_days", analytics.DefaultWindowDays)
	horizonDays := intQuery(c, "horizon_days", analytics.DefaultHorizonDays)
	thresholdDays := float64(intQuery(c, "threshold_days", int(analytics.DefaultThresholdDays)))

	rows, err := analytics.New(database.DB).ProcurementForecast(middleware.OwnerID(c), windowDays, horizonDays, thresholdDays)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"window_days": windowDays, "horizon_days": horizonDays, "items": rows})
}

// --- GET: /api/reports/sales ---
// GetSalesSummary returns the daily revenue/COGS aggregates, newest first.
func GetSalesSummary(c *gin.Context) {
	periodDays := intQuery(c, "period_days", analytics.DefaultWindowDays)

	rows, err := analytics.New(database.DB).SalesSummary(middleware.OwnerID(c), periodDays)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"period_days": periodDays, "days": rows})
}
