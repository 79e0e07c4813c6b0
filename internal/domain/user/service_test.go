package user

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
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

	require.NoError(t, db.AutoMigrate(&User{}))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "storefront-test"},
		JWT: config.JWTConfig{
			Secret:            "test-secret-key-that-is-long-enough!",
			AccessTokenExpiry: time.Hour,
		},
		Security: config.SecurityConfig{BcryptCost: 4},
	}
}

func TestRegister(t *testing.T) {
	svc := NewService(setupTestDB(t), testConfig())

	t.Run("creates account and returns token", func(t *testing.T) {
		resp, err := svc.Register(&RegisterRequest{
			Email:     "Shopper@Example.com",
			Password:  "correct-horse-9",
			FirstName: "Sam",
		})
		require.NoError(t, err)
		assert.Equal(t, "shopper@example.com", resp.User.Email, "email is normalized")
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.NotEqual(t, "correct-horse-9", resp.User.Password, "password is stored hashed")
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(&RegisterRequest{
			Email:    "shopper@example.com",
			Password: "another-pass-42",
		})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := svc.Register(&RegisterRequest{
			Email:    "other@example.com",
			Password: "short",
		})
		assert.Error(t, err)
	})
}

func TestLogin(t *testing.T) {
	svc := NewService(setupTestDB(t), testConfig())

	_, err := svc.Register(&RegisterRequest{
		Email:    "shopper@example.com",
		Password: "correct-horse-9",
	})
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		resp, err := svc.Login(&LoginRequest{
			Email:    "shopper@example.com",
			Password: "correct-horse-9",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotNil(t, resp.User.LastLoginAt)
	})

	t.Run("wrong password and unknown email fail identically", func(t *testing.T) {
		_, err := svc.Login(&LoginRequest{Email: "shopper@example.com", Password: "wrong"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = svc.Login(&LoginRequest{Email: "ghost@example.com", Password: "whatever"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}
