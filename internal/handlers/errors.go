package handlers

import (
	"errors"
	"net/http"
	"os"

	"go-cost-ledger/internal/apperr"
	"go-cost-ledger/internal/database"
	"go-cost-ledger/internal/fulfillment"
	"go-cost-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
)

// respondError maps engine error kinds to HTTP statuses. Retryable kinds
// (conflict, store unavailable) are flagged so clients know a retry can help.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrGraph):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"error":     err.Error(),
		"retryable": apperr.Retryable(err),
	})
}

// newLedger builds the shared ledger with the policy configured in .env.
func newLedger() *ledger.Ledger {
	return ledger.New(database.DB, ledger.Options{
		DisallowNegativeStock: os.Getenv("DISALLOW_NEGATIVE_STOCK") == "true",
	})
}

// newPipeline builds the fulfillment pipeline over the shared connection.
func newPipeline() *fulfillment.Pipeline {
	return fulfillment.New(database.DB, newLedger())
}
