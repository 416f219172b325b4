package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// OwnerScope resolves which owner's books a request operates on.
//
// The surrounding application authenticates users upstream and forwards the
// resolved owner id in the X-Owner-ID header; the engine only scopes by it.
// Requests without a parseable owner id are rejected before they reach any
// handler.
func OwnerScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Read the owner id forwarded by the API gateway
		header := c.GetHeader("X-Owner-ID")
		if header == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Owner-ID header is required"})
			c.Abort()
			return
		}

		// 2. Parse and validate
		ownerID, err := strconv.ParseUint(header, 10, 64)
		if err != nil || ownerID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Owner-ID must be a positive integer"})
			c.Abort()
			return
		}

		// 3. Store it in the context for the handlers
		c.Set("ownerID", uint(ownerID))
		c.Next()
	}
}

// OwnerID reads the owner id placed in the context by OwnerScope.
func OwnerID(c *gin.Context) uint {
	return c.MustGet("ownerID").(uint)
}
