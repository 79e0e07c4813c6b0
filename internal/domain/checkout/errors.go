// internal/domain/checkout/errors.go
package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyCart is returned when checkout is attempted on a cart with no lines
	ErrEmptyCart = errors.New("cart is empty")

	// ErrTransactionConflict is returned when the checkout transaction kept
	// colliding with concurrent checkouts and ran out of retry attempts
	ErrTransactionConflict = errors.New("checkout conflicted with concurrent transactions")
)

// FailingItem identifies a cart line that could not be fulfilled
type FailingItem struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// AbortedError reports a checkout rolled back because stock could not cover
// the cart. It lists every failing line, not just the first, so the caller
// can fix the whole cart in one pass.
type AbortedError struct {
	FailingItems []FailingItem
}

func (e *AbortedError) Error() string {
	names := make([]string, 0, len(e.FailingItems))
	for _, item := range e.FailingItems {
		names = append(names, fmt.Sprintf("%s (requested %d, available %d)",
			item.ProductName, item.Requested, item.Available))
	}
	return "checkout aborted, insufficient stock: " + strings.Join(names, ", ")
}
