package inventory

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&catalog.Category{}, &catalog.Product{}))
	return db
}

func createProduct(t *testing.T, db *gorm.DB, stock int) *catalog.Product {
	t.Helper()

	category := catalog.Category{Name: "Audio"}
	require.NoError(t, db.Where(catalog.Category{Name: "Audio"}).FirstOrCreate(&category).Error)

	product := catalog.Product{
		CategoryID: category.ID,
		Name:       "Pulse Wireless Headphones",
		Price:      decimal.NewFromFloat(199.50),
		Stock:      stock,
	}
	require.NoError(t, db.Create(&product).Error)
	return &product
}

func TestValidate(t *testing.T) {
	db := setupTestDB(t)
	guard := NewGuard(db)
	product := createProduct(t, db, 5)

	t.Run("within stock", func(t *testing.T) {
		assert.NoError(t, guard.Validate(product.ID, 5))
	})

	t.Run("exceeds stock", func(t *testing.T) {
		err := guard.Validate(product.ID, 6)
		var oos *OutOfStockError
		require.ErrorAs(t, err, &oos)
		assert.Equal(t, product.ID, oos.ProductID)
		assert.Equal(t, 6, oos.Requested)
		assert.Equal(t, 5, oos.Available)
	})

	t.Run("unknown product", func(t *testing.T) {
		err := guard.Validate(9999, 1)
		assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	})

	t.Run("does not mutate stock", func(t *testing.T) {
		var p catalog.Product
		require.NoError(t, db.First(&p, product.ID).Error)
		assert.Equal(t, 5, p.Stock)
	})
}

func TestReserveAndDecrement(t *testing.T) {
	db := setupTestDB(t)
	guard := NewGuard(db)

	t.Run("decrements when stock suffices", func(t *testing.T) {
		product := createProduct(t, db, 5)

		err := db.Transaction(func(tx *gorm.DB) error {
			return guard.ReserveAndDecrement(tx, product.ID, 3)
		})
		require.NoError(t, err)

		var p catalog.Product
		require.NoError(t, db.First(&p, product.ID).Error)
		assert.Equal(t, 2, p.Stock)
	})

	t.Run("fails without mutation when stock is short", func(t *testing.T) {
		product := createProduct(t, db, 2)

		err := db.Transaction(func(tx *gorm.DB) error {
			return guard.ReserveAndDecrement(tx, product.ID, 3)
		})
		var oos *OutOfStockError
		require.ErrorAs(t, err, &oos)
		assert.Equal(t, 3, oos.Requested)
		assert.Equal(t, 2, oos.Available)

		var p catalog.Product
		require.NoError(t, db.First(&p, product.ID).Error)
		assert.Equal(t, 2, p.Stock)
	})

	t.Run("can drain stock to zero", func(t *testing.T) {
		product := createProduct(t, db, 4)

		err := db.Transaction(func(tx *gorm.DB) error {
			return guard.ReserveAndDecrement(tx, product.ID, 4)
		})
		require.NoError(t, err)

		var p catalog.Product
		require.NoError(t, db.First(&p, product.ID).Error)
		assert.Equal(t, 0, p.Stock)
	})

	t.Run("unknown product", func(t *testing.T) {
		err := db.Transaction(func(tx *gorm.DB) error {
			return guard.ReserveAndDecrement(tx, 9999, 1)
		})
		assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	})
}

func TestReserveAndDecrementConcurrentLastUnit(t *testing.T) {
	db := setupTestDB(t)
	guard := NewGuard(db)
	product := createProduct(t, db, 1)

	var wg sync.WaitGroup
	results := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = db.Transaction(func(tx *gorm.DB) error {
				return guard.ReserveAndDecrement(tx, product.ID, 1)
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var oos *OutOfStockError
		if !errors.As(err, &oos) {
			// Lock contention is an acceptable loss for the second writer
			assert.Contains(t, err.Error(), "locked")
		}
	}
	assert.Equal(t, 1, successes, "exactly one decrement of the last unit may succeed")

	var p catalog.Product
	require.NoError(t, db.First(&p, product.ID).Error)
	assert.Equal(t, 0, p.Stock, "stock must never go negative")
}
