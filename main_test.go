package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"market/internal/config"
	"market/internal/events"
	"market/internal/models"
	"market/internal/repositories"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repositories.OpenDB("sqlite", "file:"+uuid.New().String()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, repositories.Migrate(db))
	return db
}

func newTestConfig(t *testing.T) config.Config {
	t.Helper()
	v := viper.New()
	v.Set("JWT_SECRET", "test_jwt_secret")
	v.Set("UPLOAD_DIR", t.TempDir())
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	return cfg
}

func TestHealthCheck(t *testing.T) {
	app := NewApp(newTestConfig(t), newTestDB(t), events.NopPublisher{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.Equal(t, "disabled", body["rabbitmq"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := NewApp(newTestConfig(t), newTestDB(t), events.NopPublisher{}, zap.NewNop())

	for _, path := range []string{"/api/v1/products", "/api/v1/cart", "/api/v1/orders", "/api/v1/payments", "/api/v1/shipments", "/api/v1/favorites"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestSeedProducts_OnlyIntoEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewGORMStore(newTestDB(t))

	seedProducts(ctx, store.Products(), zap.NewNop())
	products, err := store.Products().GetAll(ctx, models.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, products, 4)

	seedProducts(ctx, store.Products(), zap.NewNop())
	products, err = store.Products().GetAll(ctx, models.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, products, 4)
}

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewGORMStore(newTestDB(t))

	seedAdmin(ctx, store.Users(), "admin-secret", zap.NewNop())
	seedAdmin(ctx, store.Users(), "admin-secret", zap.NewNop())

	admin, err := store.Users().GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.NotEqual(t, "admin-secret", admin.Password)
}
