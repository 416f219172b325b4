package handlers

import (
	"net/http"
	"strconv"

	"go-cost-ledger/internal/database"
	"go-cost-ledger/internal/fulfillment"
	"go-cost-ledger/internal/middleware"
	"go-cost-ledger/internal/models"

	"github.com/gin-gonic/gin"
)

// --- POST: /api/orders ---
// CreateOrder records a sale: resolves ingredient usage through the recipe
// graph, freezes the material cost, deducts stock and updates the daily totals.
func CreateOrder(c *gin.Context) {
	var req fulfillment.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	order, err := newPipeline().CreateOrder(middleware.OwnerID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// --- POST: /api/orders/:id/cancel ---
// CancelOrder reverses a sale's stock and aggregate effects. Cancelling an
// already-cancelled order just returns it again.
func CancelOrder(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := newPipeline().CancelOrder(middleware.OwnerID(c), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// --- GET: /api/orders ---
// ListOrders returns the most recent orders, newest first.
func ListOrders(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	var orders []models.Order
	result := database.DB.Preload("Items").
		Where("owner_id = ?", middleware.OwnerID(c)).
		Order("created_at desc").
		Limit(limit).
		Find(&orders)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

// ProductionRequest is the body of the batch production endpoint.
type ProductionRequest struct {
	RecipeID uint    `json:"recipe_id" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required"`
}

// --- POST: /api/production ---
// RecordProduction books in-house production of a prep recipe: same resolver
// walk as a sale, but correction-typed stock entries and no revenue.
func RecordProduction(c *gin.Context) {
	var req ProductionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := newPipeline().RecordBatchProduction(middleware.OwnerID(c), req.RecipeID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Production recorded"})
}
