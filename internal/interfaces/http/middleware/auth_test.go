// internal/interfaces/http/middleware/auth_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "storefront-api",
		},
		JWT: config.JWTConfig{
			Secret:            "test-secret-key-that-is-long-enough-for-hs256",
			AccessTokenExpiry: time.Hour,
		},
	}
}

func mintToken(t *testing.T, cfg *config.Config, userID uint, email string, isAdmin bool) string {
	t.Helper()
	token, err := auth.NewJWTManager(cfg).GenerateAccessToken(userID, email, isAdmin)
	require.NoError(t, err)
	return token
}

func TestOptionalAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()

	router := gin.New()
	router.Use(OptionalAuthMiddleware(cfg))
	router.GET("/whoami", func(c *gin.Context) {
		userID, authenticated := GetUserIDFromContext(c)
		email, _ := GetUserEmailFromContext(c)
		c.JSON(http.StatusOK, gin.H{
			"authenticated": authenticated,
			"user_id":       userID,
			"email":         email,
			"is_admin":      IsAdminFromContext(c),
		})
	})

	t.Run("no header passes through unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"authenticated":false`)
	})

	t.Run("valid token populates identity", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, 42, "shopper@example.com", false))
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"authenticated":true`)
		assert.Contains(t, w.Body.String(), `"user_id":42`)
		assert.Contains(t, w.Body.String(), `"email":"shopper@example.com"`)
		assert.Contains(t, w.Body.String(), `"is_admin":false`)
	})

	t.Run("garbage token passes through unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"authenticated":false`)
	})
}

func TestAdminMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()

	router := gin.New()
	router.Use(AuthMiddleware(cfg))
	router.Use(AdminMiddleware())
	router.GET("/restricted", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/restricted", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("non-admin token is forbidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/restricted", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, 42, "shopper@example.com", false))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin token is allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/restricted", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, 1, "admin@example.com", true))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAdminMiddlewareWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// AdminMiddleware on its own must not let an anonymous request through
	router := gin.New()
	router.Use(AdminMiddleware())
	router.GET("/restricted", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/restricted", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
