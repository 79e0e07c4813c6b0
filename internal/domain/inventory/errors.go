// internal/domain/inventory/errors.go
package inventory

import "fmt"

// OutOfStockError reports a requested quantity that exceeds the stock
// available at validation time. Available carries the current stock level so
// callers can suggest a correction.
type OutOfStockError struct {
	ProductID uint
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
