// internal/domain/inventory/guard.go
package inventory

import (
	"errors"
	"fmt"

	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"gorm.io/gorm"
)

// Guard mediates every stock-affecting operation. Cart edits use the advisory
// Validate check; checkout uses ReserveAndDecrement, the only code path that
// mutates stock.
type Guard struct {
	db *gorm.DB
}

// NewGuard creates a new inventory guard
func NewGuard(db *gorm.DB) *Guard {
	return &Guard{db: db}
}

// Validate decides whether the requested quantity is satisfiable right now.
// The answer is advisory outside a checkout transaction: stock can change
// between this check and checkout, which re-validates authoritatively.
func (g *Guard) Validate(productID uint, requested int) error {
	return g.ValidateWithin(g.db, productID, requested)
}

// ValidateWithin runs the same check on an explicit database handle so cart
// mutations can validate inside their own transaction scope.
func (g *Guard) ValidateWithin(tx *gorm.DB, productID uint, requested int) error {
	available, err := currentStock(tx, productID)
	if err != nil {
		return err
	}
	if requested > available {
		return &OutOfStockError{
			ProductID: productID,
			Requested: requested,
			Available: available,
		}
	}
	return nil
}

// ReserveAndDecrement decrements stock by quantity iff enough stock remains.
// It must only be called within a checkout transaction: the conditional
// UPDATE takes the row's write lock and re-evaluates the stock predicate
// there, so two competing checkouts for the last units can never both
// succeed. On failure nothing is mutated.
func (g *Guard) ReserveAndDecrement(tx *gorm.DB, productID uint, quantity int) error {
	result := tx.Model(&catalog.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return fmt.Errorf("failed to decrement stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		available, err := currentStock(tx, productID)
		if err != nil {
			return err
		}
		return &OutOfStockError{
			ProductID: productID,
			Requested: quantity,
			Available: available,
		}
	}
	return nil
}

func currentStock(tx *gorm.DB, productID uint) (int, error) {
	var product catalog.Product
	err := tx.Select("id", "stock").Where("id = ?", productID).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, catalog.ErrProductNotFound
		}
		return 0, fmt.Errorf("failed to read stock: %w", err)
	}
	return product.Stock, nil
}
