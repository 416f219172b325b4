package database

import (
	"log"
	"os"
	"time"

	"go-cost-ledger/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the MySQL connection from DB_DSN and syncs the schema.
// Retries a few times so the server survives a database that is still
// starting up next to it.
func Connect() {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("Error: DB_DSN not set. Please configure your database.")
	}

	var err error
	for i := 0; i < 5; i++ {
		DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err == nil {
			break
		}
		log.Printf("Failed to connect to database. Retrying in 2 seconds... (%d/5)", i+1)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatal("Failed to connect to database after 5 attempts:", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatal("Failed to sync database schema:", err)
	}
	log.Println("Database connected and schema synced")
}

// Migrate syncs the engine's schema onto the given connection. Split out of
// Connect so tests can run it against their own database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Ingredient{},
		&models.Recipe{},
		&models.RecipeComponent{},
		&models.StockAdjustmentLog{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.SalesDailyAggregate{},
		&models.Purchase{},
		&models.PurchaseLineItem{},
	)
}
