package services_test

import (
	"context"
	"fmt"
	"testing"

	"market/internal/events"
	"market/internal/models"
	"market/internal/policy"
	"market/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// eventOfType matches a published event by its routing key.
func eventOfType(eventType string) interface{} {
	return mock.MatchedBy(func(e events.Event) bool { return e.Type == eventType })
}

// newTestStore opens a private in-memory SQLite database. A single
// connection serializes transactions the way row locks would.
func newTestStore(t *testing.T) (*repositories.GORMStore, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := repositories.OpenDB("sqlite", dsn)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repositories.Migrate(db))
	return repositories.NewGORMStore(db), db
}

func createUser(t *testing.T, store repositories.Store, role models.Role) policy.Actor {
	t.Helper()
	name := "user-" + uuid.New().String()[:8]
	user := &models.User{
		Username: name,
		Email:    name + "@example.com",
		Password: "hashed",
		Role:     role,
		Address:  "1 Market Street",
	}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return policy.Actor{UserID: user.ID, Role: role}
}

func createProduct(t *testing.T, store repositories.Store, name string, price int64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:  name,
		Price: decimal.NewFromInt(price),
		Stock: stock,
	}
	require.NoError(t, store.Products().Create(context.Background(), product))
	return product
}

func reload(t *testing.T, store repositories.Store, id string) *models.Product {
	t.Helper()
	product, err := store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return product
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func decimalEqual(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.NewFromInt(want).Equal(got), "expected %d, got %s", want, got)
}
