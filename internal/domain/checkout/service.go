// internal/domain/checkout/service.go
package checkout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"gorm.io/gorm"
)

// Service converts a cart into an order. The whole conversion runs as a
// single database transaction: stock decrements, order creation, and cart
// clearing all commit together or not at all. Stock is the authoritative
// gate here; whatever was validated at cart time is re-checked against live
// rows before anything is written.
type Service struct {
	db           *gorm.DB
	config       *config.Config
	cartService  *cart.Service
	orderService *order.Service
	guard        *inventory.Guard
}

// NewService creates a new checkout service
func NewService(db *gorm.DB, cfg *config.Config, cartService *cart.Service, orderService *order.Service) *Service {
	return &Service{
		db:           db,
		config:       cfg,
		cartService:  cartService,
		orderService: orderService,
		guard:        inventory.NewGuard(db),
	}
}

// Execute runs checkout for the user's cart. Transient conflicts with
// concurrent checkouts are retried with linear backoff up to the configured
// attempt limit; business failures (empty cart, insufficient stock) are
// returned immediately.
func (s *Service) Execute(userID uint) (*order.Order, error) {
	empty, err := s.cartEmpty(userID)
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, ErrEmptyCart
	}

	maxAttempts := s.config.Checkout.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		created, err := s.attempt(userID)
		if err == nil {
			s.cartService.InvalidateBadge(userID)
			logrus.WithFields(logrus.Fields{
				"user_id":      userID,
				"order_number": created.OrderNumber,
				"total":        created.Total.String(),
				"attempt":      attempt,
			}).Info("checkout completed")
			return created, nil
		}

		if !isConflict(err) {
			return nil, err
		}

		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"attempt": attempt,
		}).Warn("checkout transaction conflict, retrying")
		if attempt < maxAttempts {
			time.Sleep(s.config.Checkout.RetryBackoff * time.Duration(attempt))
		}
	}

	return nil, ErrTransactionConflict
}

// cartEmpty rejects an empty cart before any write transaction is opened.
// The in-transaction snapshot remains the authoritative check.
func (s *Service) cartEmpty(userID uint) (bool, error) {
	var userCart cart.Cart
	if err := s.db.Where("user_id = ?", userID).First(&userCart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to load cart: %w", err)
	}

	var lines int64
	if err := s.db.Model(&cart.CartLine{}).Where("cart_id = ?", userCart.ID).Count(&lines).Error; err != nil {
		return false, fmt.Errorf("failed to count cart lines: %w", err)
	}
	return lines == 0, nil
}

// attempt performs one full checkout transaction
func (s *Service) attempt(userID uint) (*order.Order, error) {
	var created *order.Order

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var userCart cart.Cart
		if err := tx.Where("user_id = ?", userID).First(&userCart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEmptyCart
			}
			return fmt.Errorf("failed to load cart: %w", err)
		}

		// Lines are processed in ascending product id order so concurrent
		// checkouts touch product rows in the same sequence
		var lines []cart.CartLine
		err := tx.Preload("Product").
			Where("cart_id = ?", userCart.ID).
			Order("product_id ASC").
			Find(&lines).Error
		if err != nil {
			return fmt.Errorf("failed to load cart lines: %w", err)
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		// Probe every line even after a failure so the abort reports all
		// shortfalls at once. The rollback undoes any decrements made here.
		var failing []FailingItem
		orderLines := make([]order.OrderLine, 0, len(lines))
		for _, line := range lines {
			if line.Product == nil {
				failing = append(failing, FailingItem{
					ProductID: line.ProductID,
					Requested: line.Quantity,
					Available: 0,
				})
				continue
			}

			if err := s.guard.ReserveAndDecrement(tx, line.ProductID, line.Quantity); err != nil {
				var oos *inventory.OutOfStockError
				switch {
				case errors.As(err, &oos):
					failing = append(failing, FailingItem{
						ProductID:   line.ProductID,
						ProductName: line.Product.Name,
						Requested:   oos.Requested,
						Available:   oos.Available,
					})
				case errors.Is(err, catalog.ErrProductNotFound):
					failing = append(failing, FailingItem{
						ProductID:   line.ProductID,
						ProductName: line.Product.Name,
						Requested:   line.Quantity,
						Available:   0,
					})
				default:
					return err
				}
				continue
			}

			orderLines = append(orderLines, order.OrderLine{
				ProductID:   line.ProductID,
				ProductName: line.Product.Name,
				UnitPrice:   line.Product.Price,
				Quantity:    line.Quantity,
			})
		}

		if len(failing) > 0 {
			return &AbortedError{FailingItems: failing}
		}

		newOrder, err := s.orderService.CreateWithin(tx, userID, orderLines)
		if err != nil {
			return err
		}

		if err := tx.Where("cart_id = ?", userCart.ID).Delete(&cart.CartLine{}).Error; err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}

		created = newOrder
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// isConflict reports whether the error is a transient serialization failure
// worth retrying. Covers postgres serialization and deadlock aborts plus
// sqlite lock contention.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "40001") ||
		strings.Contains(msg, "40P01") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
