// internal/interfaces/http/handlers/respond.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/checkout"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/order"
)

// respondError maps domain errors onto HTTP statuses. Unrecognized errors
// become 500 with a generic message so storage details never leak to
// clients.
func respondError(c *gin.Context, err error) {
	var oos *inventory.OutOfStockError
	var aborted *checkout.AbortedError

	switch {
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": err.Error(),
		})

	case errors.As(err, &oos):
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
			"details": gin.H{
				"product_id": oos.ProductID,
				"requested":  oos.Requested,
				"available":  oos.Available,
			},
		})

	case errors.As(err, &aborted):
		c.JSON(http.StatusConflict, gin.H{
			"error":         err.Error(),
			"failing_items": aborted.FailingItems,
		})

	case errors.Is(err, cart.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{
			"error": err.Error(),
		})

	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, catalog.ErrInvalidPrice),
		errors.Is(err, catalog.ErrInvalidStock),
		errors.Is(err, catalog.ErrCategoryNameTaken),
		errors.Is(err, catalog.ErrCategoryHasProducts):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})

	case errors.Is(err, checkout.ErrTransactionConflict):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": err.Error(),
		})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}

// parseIDParam parses a numeric path parameter
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
		})
		return 0, false
	}
	return uint(id), true
}
