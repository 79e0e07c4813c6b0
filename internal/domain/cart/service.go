// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"gorm.io/gorm"
)

// Service handles cart business logic. Every operation acts on the
// requesting user's own cart; every mutation runs in a transaction against
// the persisted line state and is validated by the inventory guard before it
// commits.
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	config      *config.Config
	guard       *inventory.Guard
}

// NewService creates a new cart service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		config:      cfg,
		guard:       inventory.NewGuard(db),
	}
}

// LineView represents a cart line with current product details. Subtotal is
// computed from the current product price at read time, never cached.
type LineView struct {
	LineID    uint             `json:"line_id"`
	ProductID uint             `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Product   *catalog.Product `json:"product,omitempty"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	Subtotal  decimal.Decimal  `json:"subtotal"`
	Available bool             `json:"available"`
}

// View represents a cart with its lines and derived totals
type View struct {
	CartID    uint            `json:"cart_id"`
	UserID    uint            `json:"user_id"`
	Lines     []LineView      `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// Add puts quantity units of a product into the user's cart. If a line for
// the product already exists its quantity is increased; carts never hold two
// lines for the same product. The resulting target quantity is validated
// against current stock before anything is written: an add that exceeds
// stock fails entirely, with no partial add.
func (s *Service) Add(userID, productID uint, quantity int) (*View, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		userCart, err := getOrCreateCart(tx, userID)
		if err != nil {
			return err
		}

		var line CartLine
		result := tx.Where("cart_id = ? AND product_id = ?", userCart.ID, productID).First(&line)

		target := quantity
		exists := result.Error == nil
		if exists {
			target = line.Quantity + quantity
		} else if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to read cart line: %w", result.Error)
		}

		if err := s.guard.ValidateWithin(tx, productID, target); err != nil {
			return err
		}

		if exists {
			// Increment against the persisted row, not the value read above
			return tx.Model(&CartLine{}).Where("id = ?", line.ID).
				UpdateColumn("quantity", gorm.Expr("quantity + ?", quantity)).Error
		}
		return tx.Create(&CartLine{
			CartID:    userCart.ID,
			ProductID: productID,
			Quantity:  quantity,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateBadge(userID)
	return s.ViewCart(userID)
}

// UpdateQuantity sets a line's quantity. A new quantity of zero or below
// removes the line. When the new quantity exceeds current stock the update
// fails with an out-of-stock error and the prior quantity is left unchanged.
func (s *Service) UpdateQuantity(userID, productID uint, newQuantity int) (*View, error) {
	if newQuantity <= 0 {
		return s.Remove(userID, productID)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		userCart, err := getOrCreateCart(tx, userID)
		if err != nil {
			return err
		}

		var line CartLine
		result := tx.Where("cart_id = ? AND product_id = ?", userCart.ID, productID).First(&line)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return ErrLineNotFound
			}
			return fmt.Errorf("failed to read cart line: %w", result.Error)
		}

		if err := s.guard.ValidateWithin(tx, productID, newQuantity); err != nil {
			return err
		}

		return tx.Model(&CartLine{}).Where("id = ?", line.ID).
			UpdateColumn("quantity", newQuantity).Error
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateBadge(userID)
	return s.ViewCart(userID)
}

// Remove deletes the line for a product. Removing an absent line is a no-op,
// not an error.
func (s *Service) Remove(userID, productID uint) (*View, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		userCart, err := getOrCreateCart(tx, userID)
		if err != nil {
			return err
		}
		return tx.Where("cart_id = ? AND product_id = ?", userCart.ID, productID).
			Delete(&CartLine{}).Error
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateBadge(userID)
	return s.ViewCart(userID)
}

/// Clear removes all lines from the user's cart. Idempotent: clearing an
// already-empty cart yields the same empty state.
func (s *Service) Clear(userID uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		userCart, err := getOrCreateCart(tx, userID)
		if err != nil {
			return err
		}
		return tx.Where("cart_id = ?", userCart.ID).Delete(&CartLine{}).Error
	})
	if err != nil {
		return err
	}

	s.InvalidateBadge(userID)
	return nil
}

// UpdateLine is the line-addressed variant of UpdateQuantity. The line's
// cart must belong to the requesting user; a mismatch fails with
// ErrForbidden and is logged as a potential misuse signal.
func (s *Service) UpdateLine(userID, lineID uint, newQuantity int) (*View, error) {
	line, err := s.ownedLine(userID, lineID)
	if err != nil {
		return nil, err
	}
	return s.UpdateQuantity(userID, line.ProductID, newQuantity)
}

// RemoveLine is the line-addressed variant of Remove, with the same
// ownership check as UpdateLine.
func (s *Service) RemoveLine(userID, lineID uint) (*View, error) {
	line, err := s.ownedLine(userID, lineID)
	if err != nil {
		return nil, err
	}
	return s.Remove(userID, line.ProductID)
}

// ViewCart retrieves the user's cart with line subtotals and totals computed
// from current product prices. Lines whose product has been deleted are kept
// visible but flagged unavailable and excluded from the total.
func (s *Service) ViewCart(userID uint) (*View, error) {
	userCart, err := getOrCreateCart(s.db, userID)
	if err != nil {
		return nil, err
	}

	var lines []CartLine
	err = s.db.Preload("Product").Preload("Product.Category").
		Where("cart_id = ?", userCart.ID).
		Order("id ASC").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart lines: %w", err)
	}

	view := &View{
		CartID: userCart.ID,
		UserID: userID,
		Lines:  make([]LineView, 0, len(lines)),
		Total:  decimal.Zero,
	}

	for _, line := range lines {
		lv := LineView{
			LineID:    line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Product:   line.Product,
		}
		if line.Product != nil {
			lv.Available = true
			lv.UnitPrice = line.Product.Price
			lv.Subtotal = line.Product.SubtotalFor(line.Quantity)
			view.Total = view.Total.Add(lv.Subtotal)
		}
		view.ItemCount += line.Quantity
		view.Lines = append(view.Lines, lv)
	}

	return view, nil
}

// ItemCount returns the sum of line quantities for the badge-style counter.
// The value is cached in Redis for a short TTL and invalidated on every cart
// mutation; on any cache failure the database answers directly.
func (s *Service) ItemCount(userID uint) (int, error) {
	ctx := context.Background()
	key := badgeKey(userID)

	if s.redisClient != nil {
		if val, err := s.redisClient.Get(ctx, key).Result(); err == nil {
			if count, err := strconv.Atoi(val); err == nil {
				return count, nil
			}
		}
	}

	var total int64
	err := s.db.Model(&CartLine{}).
		Joins("JOIN carts ON carts.id = cart_lines.cart_id").
		Where("carts.user_id = ?", userID).
		Select("COALESCE(SUM(cart_lines.quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count cart items: %w", err)
	}

	if s.redisClient != nil {
		s.redisClient.Set(ctx, key, strconv.FormatInt(total, 10), s.config.Catalog.BadgeCacheTTL)
	}

	return int(total), nil
}

// InvalidateBadge drops the cached badge count after a cart mutation
func (s *Service) InvalidateBadge(userID uint) {
	if s.redisClient == nil {
		return
	}
	s.redisClient.Del(context.Background(), badgeKey(userID))
}

// ownedLine loads a line and verifies its cart belongs to the requesting user
func (s *Service) ownedLine(userID, lineID uint) (*CartLine, error) {
	var line CartLine
	if err := s.db.Where("id = ?", lineID).First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLineNotFound
		}
		return nil, fmt.Errorf("failed to read cart line: %w", err)
	}

	var owner Cart
	if err := s.db.Where("id = ?", line.CartID).First(&owner).Error; err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if owner.UserID != userID {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"cart_id": owner.ID,
			"line_id": lineID,
		}).Warn("cart ownership mismatch")
		return nil, ErrForbidden
	}

	return &line, nil
}

// getOrCreateCart fetches the user's cart, creating it lazily on first use
func getOrCreateCart(tx *gorm.DB, userID uint) (*Cart, error) {
	var userCart Cart
	err := tx.Where(Cart{UserID: userID}).FirstOrCreate(&userCart).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &userCart, nil
}

func badgeKey(userID uint) string {
	return fmt.Sprintf("cart:badge:%d", userID)
}
