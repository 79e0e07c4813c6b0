package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryManagement(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAdminService(db, testConfig())

	t.Run("create", func(t *testing.T) {
		category, err := svc.CreateCategory(&CategoryCreateRequest{
			Name:        "Laptops",
			Description: "Notebooks and ultrabooks",
		})
		require.NoError(t, err)
		assert.NotZero(t, category.ID)
	})

	t.Run("duplicate name is rejected", func(t *testing.T) {
		_, err := svc.CreateCategory(&CategoryCreateRequest{Name: "Laptops"})
		assert.ErrorIs(t, err, ErrCategoryNameTaken)
	})

	t.Run("partial update", func(t *testing.T) {
		var category Category
		require.NoError(t, db.Where("name = ?", "Laptops").First(&category).Error)

		desc := "Portable computers"
		updated, err := svc.UpdateCategory(category.ID, &CategoryUpdateRequest{Description: &desc})
		require.NoError(t, err)
		assert.Equal(t, "Laptops", updated.Name, "unset fields keep their value")
		assert.Equal(t, "Portable computers", updated.Description)
	})

	t.Run("delete refuses while products reference it", func(t *testing.T) {
		var category Category
		require.NoError(t, db.Where("name = ?", "Laptops").First(&category).Error)

		_, err := svc.CreateProduct(&ProductCreateRequest{
			CategoryID: category.ID,
			Name:       "Aurora 14 Ultrabook",
			Price:      decimal.NewFromFloat(999.00),
			Stock:      5,
		})
		require.NoError(t, err)

		err = svc.DeleteCategory(category.ID)
		assert.ErrorIs(t, err, ErrCategoryHasProducts)

		var count int64
		require.NoError(t, db.Model(&Category{}).Count(&count).Error)
		assert.EqualValues(t, 1, count, "category must survive the refused delete")
	})

	t.Run("delete succeeds once empty", func(t *testing.T) {
		empty, err := svc.CreateCategory(&CategoryCreateRequest{Name: "Clearance"})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteCategory(empty.ID))
		assert.ErrorIs(t, svc.DeleteCategory(empty.ID), ErrCategoryNotFound)
	})
}

func TestProductManagement(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAdminService(db, testConfig())

	category, err := svc.CreateCategory(&CategoryCreateRequest{Name: "Audio"})
	require.NoError(t, err)

	t.Run("create rounds price to cents", func(t *testing.T) {
		product, err := svc.CreateProduct(&ProductCreateRequest{
			CategoryID: category.ID,
			Name:       "Pulse Wireless Headphones",
			Price:      decimal.NewFromFloat(199.499),
			Stock:      10,
		})
		require.NoError(t, err)
		assert.True(t, product.Price.Equal(decimal.NewFromFloat(199.50)), "got %s", product.Price)
	})

	t.Run("create validates inputs", func(t *testing.T) {
		_, err := svc.CreateProduct(&ProductCreateRequest{
			CategoryID: 9999,
			Name:       "Orphan",
			Price:      decimal.NewFromFloat(1.00),
		})
		assert.ErrorIs(t, err, ErrCategoryNotFound)

		_, err = svc.CreateProduct(&ProductCreateRequest{
			CategoryID: category.ID,
			Name:       "Negative",
			Price:      decimal.NewFromFloat(-1.00),
		})
		assert.ErrorIs(t, err, ErrInvalidPrice)

		_, err = svc.CreateProduct(&ProductCreateRequest{
			CategoryID: category.ID,
			Name:       "Negative stock",
			Price:      decimal.NewFromFloat(1.00),
			Stock:      -1,
		})
		assert.ErrorIs(t, err, ErrInvalidStock)
	})

	t.Run("partial update", func(t *testing.T) {
		var product Product
		require.NoError(t, db.Where("name = ?", "Pulse Wireless Headphones").First(&product).Error)

		price := decimal.NewFromFloat(149.00)
		updated, err := svc.UpdateProduct(product.ID, &ProductUpdateRequest{Price: &price})
		require.NoError(t, err)
		assert.True(t, updated.Price.Equal(price))
		assert.Equal(t, 10, updated.Stock, "unset fields keep their value")
	})

	t.Run("soft delete hides the product from reads", func(t *testing.T) {
		var product Product
		require.NoError(t, db.Where("name = ?", "Pulse Wireless Headphones").First(&product).Error)

		require.NoError(t, svc.DeleteProduct(product.ID))

		readSvc := NewService(db, testConfig())
		_, err := readSvc.GetProduct(product.ID)
		assert.ErrorIs(t, err, ErrProductNotFound)

		assert.ErrorIs(t, svc.DeleteProduct(product.ID), ErrProductNotFound)
	})
}

func TestAdjustStock(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAdminService(db, testConfig())

	category, err := svc.CreateCategory(&CategoryCreateRequest{Name: "Audio"})
	require.NoError(t, err)
	product, err := svc.CreateProduct(&ProductCreateRequest{
		CategoryID: category.ID,
		Name:       "Pulse Wireless Headphones",
		Price:      decimal.NewFromFloat(199.50),
		Stock:      5,
	})
	require.NoError(t, err)

	t.Run("restock", func(t *testing.T) {
		updated, err := svc.AdjustStock(product.ID, 7)
		require.NoError(t, err)
		assert.Equal(t, 12, updated.Stock)
	})

	t.Run("downward correction", func(t *testing.T) {
		updated, err := svc.AdjustStock(product.ID, -12)
		require.NoError(t, err)
		assert.Equal(t, 0, updated.Stock)
	})

	t.Run("never goes negative", func(t *testing.T) {
		_, err := svc.AdjustStock(product.ID, -1)
		assert.ErrorIs(t, err, ErrInvalidStock)

		current, err := svc.AdjustStock(product.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, current.Stock)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := svc.AdjustStock(9999, 1)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})
}
