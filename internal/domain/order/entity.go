// internal/domain/order/entity.go
package order

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"gorm.io/gorm"
)

// Status represents the order status
type Status string

const (
	StatusCompleted Status = "completed"
)

// Order represents a completed checkout. Orders are immutable once written:
// they capture the prices and quantities that were in effect at the moment
// the checkout transaction committed.
type Order struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderNumber string          `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Status      Status          `gorm:"not null;default:'completed'" json:"status"`
	Total       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	Lines []OrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
}

// OrderLine represents a single purchased item. ProductName and UnitPrice
// are snapshots, deliberately denormalized so later catalog edits do not
// rewrite purchase history.
type OrderLine struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     uint            `gorm:"not null;index" json:"order_id"`
	ProductID   uint            `gorm:"not null;index" json:"product_id"`
	ProductName string          `gorm:"not null;size:200" json:"product_name"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"unit_price"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	CreatedAt   time.Time       `json:"created_at"`

	Product *catalog.Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// TableName returns the table name for Order
func (Order) TableName() string {
	return "orders"
}

// TableName returns the table name for OrderLine
func (OrderLine) TableName() string {
	return "order_lines"
}

// Subtotal returns the line's captured price times quantity
func (l *OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
