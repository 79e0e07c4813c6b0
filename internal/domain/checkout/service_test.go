package checkout

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/user"
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

	require.NoError(t, db.AutoMigrate(
		&user.User{},
		&catalog.Category{},
		&catalog.Product{},
		&cart.Cart{},
		&cart.CartLine{},
		&order.Order{},
		&order.OrderLine{},
	))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Checkout: config.CheckoutConfig{
			MaxAttempts:  3,
			RetryBackoff: 10 * time.Millisecond,
		},
		Catalog: config.CatalogConfig{
			PageSize:      12,
			BadgeCacheTTL: 30 * time.Second,
		},
	}
}

type fixture struct {
	db       *gorm.DB
	cart     *cart.Service
	checkout *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	cfg := testConfig()
	cartService := cart.NewService(db, nil, cfg)
	orderService := order.NewService(db, cfg)
	return &fixture{
		db:       db,
		cart:     cartService,
		checkout: NewService(db, cfg, cartService, orderService),
	}
}

func (f *fixture) createProduct(t *testing.T, name string, price float64, stock int) *catalog.Product {
	t.Helper()

	var category catalog.Category
	err := f.db.Where(catalog.Category{Name: "Audio"}).FirstOrCreate(&category).Error
	require.NoError(t, err)

	product := catalog.Product{
		CategoryID: category.ID,
		Name:       name,
		Price:      decimal.NewFromFloat(price),
		Stock:      stock,
	}
	require.NoError(t, f.db.Create(&product).Error)
	return &product
}

func (f *fixture) stockOf(t *testing.T, productID uint) int {
	t.Helper()
	var p catalog.Product
	require.NoError(t, f.db.First(&p, productID).Error)
	return p.Stock
}

func TestExecute(t *testing.T) {
	f := newFixture(t)
	phones := f.createProduct(t, "Pulse Wireless Headphones", 10.00, 10)
	stand := f.createProduct(t, "Echo Desk Stand", 5.00, 10)

	_, err := f.cart.Add(1, phones.ID, 2)
	require.NoError(t, err)
	_, err = f.cart.Add(1, stand.ID, 1)
	require.NoError(t, err)

	ord, err := f.checkout.Execute(1)
	require.NoError(t, err)

	t.Run("order captures prices and total", func(t *testing.T) {
		require.Len(t, ord.Lines, 2)
		assert.True(t, ord.Total.Equal(decimal.NewFromFloat(25.00)), "got %s", ord.Total)
		assert.NotEmpty(t, ord.OrderNumber)
		assert.Equal(t, order.StatusCompleted, ord.Status)

		for _, line := range ord.Lines {
			if line.ProductID == phones.ID {
				assert.Equal(t, "Pulse Wireless Headphones", line.ProductName)
				assert.True(t, line.UnitPrice.Equal(decimal.NewFromFloat(10.00)))
				assert.Equal(t, 2, line.Quantity)
			}
		}
	})

	t.Run("stock is decremented", func(t *testing.T) {
		assert.Equal(t, 8, f.stockOf(t, phones.ID))
		assert.Equal(t, 9, f.stockOf(t, stand.ID))
	})

	t.Run("cart is emptied", func(t *testing.T) {
		view, err := f.cart.ViewCart(1)
		require.NoError(t, err)
		assert.Empty(t, view.Lines)
	})

	t.Run("order is persisted and retrievable", func(t *testing.T) {
		orderService := order.NewService(f.db, testConfig())
		got, err := orderService.GetOrder(1, ord.ID)
		require.NoError(t, err)
		assert.Equal(t, ord.OrderNumber, got.OrderNumber)
		assert.Len(t, got.Lines, 2)
	})
}

func TestExecuteEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.checkout.Execute(1)
	assert.ErrorIs(t, err, ErrEmptyCart)

	// A cart that was filled and cleared behaves the same
	product := f.createProduct(t, "Pulse Wireless Headphones", 12.50, 10)
	_, err = f.cart.Add(1, product.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.cart.Clear(1))

	_, err = f.checkout.Execute(1)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestExecuteInvalidatesBadge(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cartService := cart.NewService(db, client, cfg)
	svc := NewService(db, cfg, cartService, order.NewService(db, cfg))

	var category catalog.Category
	require.NoError(t, db.Where(catalog.Category{Name: "Audio"}).FirstOrCreate(&category).Error)
	product := catalog.Product{
		CategoryID: category.ID,
		Name:       "Pulse Wireless Headphones",
		Price:      decimal.NewFromFloat(12.50),
		Stock:      5,
	}
	require.NoError(t, db.Create(&product).Error)

	_, err := cartService.Add(1, product.ID, 2)
	require.NoError(t, err)

	count, err := cartService.ItemCount(1)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.True(t, mr.Exists("cart:badge:1"))

	_, err = svc.Execute(1)
	require.NoError(t, err)

	assert.False(t, mr.Exists("cart:badge:1"))
	count, err = cartService.ItemCount(1)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestExecuteAbortsAtomically(t *testing.T) {
	f := newFixture(t)
	available := f.createProduct(t, "Pulse Wireless Headphones", 12.50, 5)
	soldOut := f.createProduct(t, "Echo Desk Stand", 20.00, 3)

	_, err := f.cart.Add(1, available.ID, 1)
	require.NoError(t, err)
	_, err = f.cart.Add(1, soldOut.ID, 2)
	require.NoError(t, err)

	// Stock drains between cart time and checkout
	require.NoError(t, f.db.Model(&catalog.Product{}).
		Where("id = ?", soldOut.ID).
		Update("stock", 0).Error)

	_, err = f.checkout.Execute(1)
	var aborted *AbortedError
	require.ErrorAs(t, err, &aborted)

	t.Run("failure report names the failing line", func(t *testing.T) {
		require.Len(t, aborted.FailingItems, 1)
		item := aborted.FailingItems[0]
		assert.Equal(t, soldOut.ID, item.ProductID)
		assert.Equal(t, "Echo Desk Stand", item.ProductName)
		assert.Equal(t, 2, item.Requested)
		assert.Equal(t, 0, item.Available)
	})

	t.Run("no stock was taken from any product", func(t *testing.T) {
		assert.Equal(t, 5, f.stockOf(t, available.ID), "rollback must undo the earlier decrement")
		assert.Equal(t, 0, f.stockOf(t, soldOut.ID))
	})

	t.Run("cart is left intact for correction", func(t *testing.T) {
		view, err := f.cart.ViewCart(1)
		require.NoError(t, err)
		assert.Len(t, view.Lines, 2)
	})

	t.Run("no order was created", func(t *testing.T) {
		var count int64
		require.NoError(t, f.db.Model(&order.Order{}).Count(&count).Error)
		assert.EqualValues(t, 0, count)
	})
}

func TestExecuteReportsAllShortfalls(t *testing.T) {
	f := newFixture(t)
	first := f.createProduct(t, "Pulse Wireless Headphones", 12.50, 0)
	second := f.createProduct(t, "Echo Desk Stand", 20.00, 1)

	_, err := f.cart.Add(1, second.ID, 1)
	require.NoError(t, err)
	// Bypass cart validation to simulate stock draining after the add
	var userCart cart.Cart
	require.NoError(t, f.db.Where("user_id = ?", 1).First(&userCart).Error)
	require.NoError(t, f.db.Create(&cart.CartLine{
		CartID:    userCart.ID,
		ProductID: first.ID,
		Quantity:  3,
	}).Error)
	require.NoError(t, f.db.Model(&catalog.Product{}).
		Where("id = ?", second.ID).
		Update("stock", 0).Error)

	_, err = f.checkout.Execute(1)
	var aborted *AbortedError
	require.ErrorAs(t, err, &aborted)
	assert.Len(t, aborted.FailingItems, 2, "every failing line is reported, not just the first")
}

func TestExecuteConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	product := f.createProduct(t, "Pulse Wireless Headphones", 12.50, 1)

	_, err := f.cart.Add(1, product.ID, 1)
	require.NoError(t, err)
	_, err = f.cart.Add(2, product.ID, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.checkout.Execute(uint(i + 1))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		// The loser must see a clean business failure, not silent oversell
		var aborted *AbortedError
		if !errors.As(err, &aborted) {
			assert.ErrorIs(t, err, ErrTransactionConflict)
		}
	}

	assert.Equal(t, 1, successes, "the single unit can only be sold once")
	assert.Equal(t, 0, f.stockOf(t, product.ID))

	var orders int64
	require.NoError(t, f.db.Model(&order.Order{}).Count(&orders).Error)
	assert.EqualValues(t, 1, orders)
}
