package main

import (
	"log"
	"os"
	"strings"
	"time"

	"go-cost-ledger/internal/database"
	"go-cost-ledger/internal/handlers"
	"go-cost-ledger/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found")
	}

	database.Connect()
	r := gin.Default()

	// The dashboard frontend runs on its own origin in development.
	origins := []string{"http://localhost:5173"}
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		origins = strings.Split(raw, ",")
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Owner-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "online"}) })

	// Every engine operation is scoped to one owner's books.
	api := r.Group("/api")
	api.Use(middleware.OwnerScope())
	{
		// Fulfillment
		api.POST("/orders", handlers.CreateOrder)
		api.POST("/orders/:id/cancel", handlers.CancelOrder)
		api.GET("/orders", handlers.ListOrders)
		api.POST("/production", handlers.RecordProduction)
		api.POST("/purchases", handlers.RecordPurchase)

		// Inventory & ledger
		api.GET("/ingredients", handlers.ListIngredients)
		api.POST("/stock/adjustments", handlers.RecordAdjustment)
		api.GET("/stock/ledger", handlers.GetLedger)
		api.POST("/stock/:id/rebuild", handlers.RebuildStock)

		// Analytics
		api.GET("/reports/loss", handlers.GetLossReport)
		api.GET("/reports/depletion", handlers.GetDepletionForecast)
		api.GET("/reports/sourcing", handlers.GetSourcingReport)
		api.GET("/reports/procurement", handlers.GetProcurementForecast)
		api.GET("/reports/sales", handlers.GetSalesSummary)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("Server starting on :" + port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
