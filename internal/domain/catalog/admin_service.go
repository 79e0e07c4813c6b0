// internal/domain/catalog/admin_service.go
package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-backend/internal/config"
	"gorm.io/gorm"
)

// AdminService handles catalog writes. This is the admin collaborator's
// surface; the cart and inventory code only ever reads the catalog.
type AdminService struct {
	db     *gorm.DB
	config *config.Config
}

// NewAdminService creates a new catalog admin service
func NewAdminService(db *gorm.DB, cfg *config.Config) *AdminService {
	return &AdminService{
		db:     db,
		config: cfg,
	}
}

// CategoryCreateRequest represents category creation data
type CategoryCreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CategoryUpdateRequest represents category update data
type CategoryUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// ProductCreateRequest represents product creation data
type ProductCreateRequest struct {
	CategoryID  uint            `json:"category_id" binding:"required"`
	Name        string          `json:"name" binding:"required"`
	Brand       string          `json:"brand"`
	Model       string          `json:"model"`
	Description string          `json:"description"`
	Specs       string          `json:"specs"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url"`
}

// ProductUpdateRequest represents product update data
type ProductUpdateRequest struct {
	CategoryID  *uint            `json:"category_id"`
	Name        *string          `json:"name"`
	Brand       *string          `json:"brand"`
	Model       *string          `json:"model"`
	Description *string          `json:"description"`
	Specs       *string          `json:"specs"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	ImageURL    *string          `json:"image_url"`
}

// CreateCategory creates a new category with a unique, non-empty name
func (s *AdminService) CreateCategory(req *CategoryCreateRequest) (*Category, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("category name is required")
	}

	var existing Category
	if result := s.db.Where("name = ?", req.Name).First(&existing); result.Error == nil {
		return nil, ErrCategoryNameTaken
	}

	category := Category{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.db.Create(&category).Error; err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return &category, nil
}

// UpdateCategory updates an existing category
func (s *AdminService) UpdateCategory(id uint, req *CategoryUpdateRequest) (*Category, error) {
	var category Category
	if result := s.db.Where("id = ?", id).First(&category); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category: %w", result.Error)
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		if *req.Name == "" {
			return nil, fmt.Errorf("category name is required")
		}
		var existing Category
		if result := s.db.Where("name = ? AND id <> ?", *req.Name, id).First(&existing); result.Error == nil {
			return nil, ErrCategoryNameTaken
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}

	if len(updates) > 0 {
		if err := s.db.Model(&category).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update category: %w", err)
		}
	}

	return &category, nil
}

// DeleteCategory deletes a category. Deletion is restricted: a category that
// still has products cannot be removed until its products are reassigned or
// deleted.
func (s *AdminService) DeleteCategory(id uint) error {
	var productCount int64
	s.db.Model(&Product{}).Where("category_id = ?", id).Count(&productCount)
	if productCount > 0 {
		return ErrCategoryHasProducts
	}

	result := s.db.Where("id = ?", id).Delete(&Category{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete category: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// CreateProduct creates a new product in an existing category
func (s *AdminService) CreateProduct(req *ProductCreateRequest) (*Product, error) {
	var category Category
	if result := s.db.Where("id = ?", req.CategoryID).First(&category); result.Error != nil {
		return nil, ErrCategoryNotFound
	}

	if req.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if req.Stock < 0 {
		return nil, ErrInvalidStock
	}

	product := Product{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Brand:       req.Brand,
		Model:       req.Model,
		Description: req.Description,
		Specs:       req.Specs,
		Price:       req.Price.Round(2),
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	}
	if err := s.db.Create(&product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.db.Preload("Category").First(&product, product.ID)
	return &product, nil
}

// UpdateProduct updates an existing product
func (s *AdminService) UpdateProduct(id uint, req *ProductUpdateRequest) (*Product, error) {
	var product Product
	if result := s.db.Where("id = ?", id).First(&product); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", result.Error)
	}

	updates := make(map[string]interface{})
	if req.CategoryID != nil {
		var category Category
		if result := s.db.Where("id = ?", *req.CategoryID).First(&category); result.Error != nil {
			return nil, ErrCategoryNotFound
		}
		updates["category_id"] = *req.CategoryID
	}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Brand != nil {
		updates["brand"] = *req.Brand
	}
	if req.Model != nil {
		updates["model"] = *req.Model
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Specs != nil {
		updates["specs"] = *req.Specs
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		updates["price"] = req.Price.Round(2)
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, ErrInvalidStock
		}
		updates["stock"] = *req.Stock
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}

	if len(updates) > 0 {
		if err := s.db.Model(&product).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update product: %w", err)
		}
	}

	s.db.Preload("Category").First(&product, product.ID)
	return &product, nil
}

// DeleteProduct soft deletes a product. Cart lines keep non-owning
// references; readers tolerate the product disappearing.
func (s *AdminService) DeleteProduct(id uint) error {
	result := s.db.Where("id = ?", id).Delete(&Product{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// AdjustStock applies a relative stock adjustment (restock or correction).
// The adjustment is applied against the persisted row and never lets stock
// go negative.
func (s *AdminService) AdjustStock(productID uint, delta int) (*Product, error) {
	result := s.db.Model(&Product{}).
		Where("id = ? AND stock + ? >= 0", productID, delta).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if result.Error != nil {
		return nil, fmt.Errorf("failed to adjust stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var product Product
		if err := s.db.Where("id = ?", productID).First(&product).Error; err != nil {
			return nil, ErrProductNotFound
		}
		return nil, ErrInvalidStock
	}

	var product Product
	if err := s.db.Where("id = ?", productID).First(&product).Error; err != nil {
		return nil, fmt.Errorf("failed to reload product: %w", err)
	}
	return &product, nil
}
