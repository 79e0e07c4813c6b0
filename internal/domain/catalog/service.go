// internal/domain/catalog/service.go
package catalog

import (
	"errors"
	"fmt"

	"github.com/your-org/storefront-backend/internal/config"
	"gorm.io/gorm"
)

// Service handles read access to the product catalog. Writes are the admin
// collaborator's concern and live in AdminService.
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new catalog service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// ProductPage represents one page of a product listing
type ProductPage struct {
	Products   []Product `json:"products"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalCount int64     `json:"total_count"`
	TotalPages int       `json:"total_pages"`
}

// BrowseRequest represents catalog browsing filters
type BrowseRequest struct {
	CategoryID  *uint  `form:"category"`
	Query       string `form:"q"`
	InStockOnly bool   `form:"in_stock"`
	Page        int    `form:"page"`
}

// GetProduct retrieves a single product with its category
func (s *Service) GetProduct(id uint) (*Product, error) {
	var product Product
	result := s.db.Preload("Category").Where("id = ?", id).First(&product)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", result.Error)
	}
	return &product, nil
}

// CurrentStock returns the authoritative stock level for a product.
// Callers must not cache the value across a validation boundary; stock can
// change between any two reads.
func (s *Service) CurrentStock(productID uint) (int, error) {
	var stock int
	result := s.db.Model(&Product{}).Select("stock").Where("id = ?", productID).Scan(&stock)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to read stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrProductNotFound
	}
	return stock, nil
}

// ListByCategory retrieves one page of a category's products.
// The sequence is finite and restartable: the same page request always
// re-runs the query against current data.
func (s *Service) ListByCategory(categoryID uint, page int) (*ProductPage, error) {
	var category Category
	if err := s.db.Select("id").Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to check category: %w", err)
	}

	return s.Browse(&BrowseRequest{CategoryID: &categoryID, Page: page})
}

// Browse retrieves a filtered, paginated product listing ordered newest first
func (s *Service) Browse(req *BrowseRequest) (*ProductPage, error) {
	pageSize := s.config.Catalog.PageSize
	page := req.Page
	if page < 1 {
		page = 1
	}

	query := s.db.Model(&Product{}).Preload("Category")

	if req.CategoryID != nil {
		query = query.Where("category_id = ?", *req.CategoryID)
	}
	if req.InStockOnly {
		query = query.Where("stock > 0")
	}
	if req.Query != "" {
		like := "%" + req.Query + "%"
		query = query.Where("name LIKE ? OR brand LIKE ? OR model LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	var products []Product
	err := query.
		Order("created_at DESC, id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}

	return &ProductPage{
		Products:   products,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// GetCategories retrieves all categories ordered by name
func (s *Service) GetCategories() ([]Category, error) {
	var categories []Category
	if err := s.db.Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve categories: %w", err)
	}
	return categories, nil
}

// GetCategory retrieves a single category
func (s *Service) GetCategory(id uint) (*Category, error) {
	var category Category
	result := s.db.Where("id = ?", id).First(&category)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to retrieve category: %w", result.Error)
	}
	return &category, nil
}
