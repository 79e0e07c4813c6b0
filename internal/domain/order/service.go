// internal/domain/order/service.go
package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-backend/internal/config"
	"gorm.io/gorm"
)

// ErrOrderNotFound is returned when an order does not exist or does not
// belong to the requesting user
var ErrOrderNotFound = errors.New("order not found")

// Service handles order business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new order service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// Page represents a page of a user's order history
type Page struct {
	Orders     []Order `json:"orders"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalCount int64   `json:"total_count"`
	TotalPages int     `json:"total_pages"`
}

// CreateWithin persists a new order and its lines inside the caller's
// transaction. The checkout transaction calls this after stock has been
// decremented so the order and the decrements commit or roll back together.
func (s *Service) CreateWithin(tx *gorm.DB, userID uint, lines []OrderLine) (*Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("order must have at least one line")
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}

	newOrder := &Order{
		OrderNumber: generateOrderNumber(),
		UserID:      userID,
		Status:      StatusCompleted,
		Total:       total,
		Lines:       lines,
	}

	if err := tx.Create(newOrder).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return newOrder, nil
}

// GetOrder retrieves one of the user's orders with its lines
func (s *Service) GetOrder(userID, orderID uint) (*Order, error) {
	var ord Order
	err := s.db.Preload("Lines").Preload("Lines.Product").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&ord).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &ord, nil
}

// ListForUser retrieves the user's order history, newest first
func (s *Service) ListForUser(userID uint, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	pageSize := s.config.Catalog.PageSize

	query := s.db.Model(&Order{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []Order
	err := query.Preload("Lines").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &Page{
		Orders:     orders,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// generateOrderNumber creates a unique human-readable order number
func generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), suffix)
}
