package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go-cost-ledger/internal/database"
	"go-cost-ledger/internal/fulfillment"
	"go-cost-ledger/internal/middleware"
	"go-cost-ledger/internal/models"

	"github.com/gin-gonic/gin"
)

// --- GET: /api/ingredients ---
// ListIngredients returns the inventory with cached balances.
func ListIngredients(c *gin.Context) {
	var ingredients []models.Ingredient
	result := database.DB.Where("owner_id = ?", middleware.OwnerID(c)).
		Order("name").
		Find(&ingredients)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ingredients"})
		return
	}

	c.JSON(http.StatusOK, ingredients)
}

// --- POST: /api/purchases ---
// RecordPurchase books a supplier delivery: stock goes up through the ledger
// and the line items become price points for the sourcing report.
func RecordPurchase(c *gin.Context) {
	var req fulfillment.RecordPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	purchase, err := newPipeline().RecordPurchase(middleware.OwnerID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, purchase)
}

// AdjustmentRequest is the body of the manual stock adjustment endpoint.
type AdjustmentRequest struct {
	IngredientID uint    `json:"ingredient_id" binding:"required"`
	Quantity     float64 `json:"quantity" binding:"required"` // purchase units
	Type         string  `json:"type" binding:"required"`     // spoilage, loss or correction
	Reason       string  `json:"reason"`
}

// --- POST: /api/stock/adjustments ---
// RecordAdjustment books spoilage, discarded stock or a stocktake correction.
func RecordAdjustment(c *gin.Context) {
	var req AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	entry, err := newPipeline().RecordWaste(middleware.OwnerID(c), req.IngredientID, req.Quantity, req.Type, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// --- GET: /api/stock/ledger ---
// GetLedger returns adjustment entries newest first. Optional query params:
// ingredient_id, limit (default 100), since (RFC 3339).
func GetLedger(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	var ingredientID *uint
	if raw := c.Query("ingredient_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ingredient_id"})
			return
		}
		parsed := uint(id)
		ingredientID = &parsed
	}

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC 3339"})
			return
		}
		since = &parsed
	}

	entries, err := newLedger().History(middleware.OwnerID(c), ingredientID, limit, since)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// --- POST: /api/stock/:id/rebuild ---
// RebuildStock replays the full ledger of one ingredient and overwrites its
// cached balance. Recovery endpoint for cache drift.
func RebuildStock(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ingredient ID"})
		return
	}

	balance, err := newLedger().Rebuild(middleware.OwnerID(c), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ingredient_id": id,
		"current_stock": balance,
	})
}
