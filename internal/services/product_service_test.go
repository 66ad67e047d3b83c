package services_test

import (
	"context"
	"fmt"
	"testing"

	"market/internal/apperr"
	"market/internal/models"
	"market/internal/policy"
	"market/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProductRepository) AddSold(ctx context.Context, id string, qty int) (bool, error) {
	args := m.Called(ctx, id, qty)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) ReturnStock(ctx context.Context, id string, qty int) error {
	args := m.Called(ctx, id, qty)
	return args.Error(0)
}

func (m *MockProductRepository) ResetSold(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProductRepository) ApplyMarkup(ctx context.Context, multiplier decimal.Decimal) (int64, error) {
	args := m.Called(ctx, multiplier)
	return args.Get(0).(int64), args.Error(1)
}

var (
	staff    = policy.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	customer = policy.Actor{UserID: "user-1", Role: models.RoleCustomer}
)

func newProductService(repo *MockProductRepository) *services.ProductService {
	return services.NewProductService(repo, policy.NewRoleBased(), zap.NewNop())
}

func TestProductService_GetAllProducts(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newProductService(mockRepo)
	ctx := context.Background()

	expectedProducts := []models.Product{
		{ID: "1", Name: "Product A", Price: decimal.NewFromInt(10), Stock: 100},
		{ID: "2", Name: "Product B", Price: decimal.NewFromInt(20), Stock: 50},
	}

	// Customers only ever see enabled products.
	mockRepo.On("GetAll", ctx, models.ProductFilter{Category: "audio", EnabledOnly: true}).Return(expectedProducts, nil).Once()
	products, err := service.GetAllProducts(ctx, customer, models.ProductFilter{Category: "audio"})
	assert.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, expectedProducts, products)

	mockRepo.On("GetAll", ctx, models.ProductFilter{}).Return(expectedProducts[:1], nil).Once()
	products, err = service.GetAllProducts(ctx, staff, models.ProductFilter{})
	assert.NoError(t, err)
	assert.Len(t, products, 1)
	mockRepo.AssertExpectations(t)
}

func TestProductService_GetProductByID(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newProductService(mockRepo)
	ctx := context.Background()

	expectedProduct := &models.Product{ID: "1", Name: "Product A", Price: decimal.NewFromInt(10), Stock: 100}

	// Test successful retrieval
	mockRepo.On("GetByID", ctx, "1").Return(expectedProduct, nil).Once()
	product, err := service.GetProductByID(ctx, customer, "1")
	assert.NoError(t, err)
	assert.Equal(t, expectedProduct, product)

	// Test product not found
	mockRepo.On("GetByID", ctx, "99").Return(nil, apperr.NotFound("product", "99")).Once()
	product, err = service.GetProductByID(ctx, customer, "99")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Nil(t, product)

	// Disabled products are hidden from customers
	mockRepo.On("GetByID", ctx, "2").Return(&models.Product{ID: "2", Disabled: true}, nil).Once()
	_, err = service.GetProductByID(ctx, customer, "2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newProductService(mockRepo)
	ctx := context.Background()

	newProduct := &models.Product{Name: "New Product", Price: decimal.NewFromInt(50), Stock: 20, Sold: 7}

	// Test successful creation
	mockRepo.On("Create", ctx, newProduct).Return(nil).Once()
	err := service.CreateProduct(ctx, staff, newProduct)
	assert.NoError(t, err)
	assert.Equal(t, 0, newProduct.Sold)

	// Test creation failure (e.g., database error)
	mockRepo.On("Create", ctx, newProduct).Return(fmt.Errorf("database error")).Once()
	err = service.CreateProduct(ctx, staff, newProduct)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
	mockRepo.AssertExpectations(t)

	// Customers cannot manage the catalog
	err = service.CreateProduct(ctx, customer, newProduct)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	err = service.CreateProduct(ctx, staff, &models.Product{Name: "Broken", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	mockRepo.AssertNumberOfCalls(t, "Create", 2)
}

func TestProductService_UpdateProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newProductService(mockRepo)
	ctx := context.Background()

	updatedProduct := &models.Product{ID: "1", Name: "Product A Updated", Price: decimal.NewFromInt(12), Stock: 95}

	// Test successful update
	mockRepo.On("Update", ctx, updatedProduct).Return(nil).Once()
	err := service.UpdateProduct(ctx, staff, updatedProduct)
	assert.NoError(t, err)

	// Test update failure (e.g., product not found in repo)
	missing := &models.Product{ID: "99", Name: "NonExistent", Price: decimal.NewFromInt(1), Stock: 1}
	mockRepo.On("Update", ctx, missing).Return(apperr.NotFound("product", "99")).Once()
	err = service.UpdateProduct(ctx, staff, missing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	mockRepo.AssertExpectations(t)
}

func TestProductService_DeleteProduct(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newProductService(mockRepo)
	ctx := context.Background()

	// Test successful deletion
	mockRepo.On("Delete", ctx, "1").Return(nil).Once()
	err := service.DeleteProduct(ctx, staff, "1")
	assert.NoError(t, err)

	// Test deletion failure (e.g., product not found)
	mockRepo.On("Delete", ctx, "99").Return(apperr.NotFound("product", "99")).Once()
	err = service.DeleteProduct(ctx, staff, "99")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	mockRepo.AssertExpectations(t)
}

func TestProductService_UpdatePriceMarksManual(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newProductService(mockRepo)
	ctx := context.Background()

	product := &models.Product{ID: "1", Name: "Amp", Price: decimal.NewFromInt(100)}
	mockRepo.On("GetByID", ctx, "1").Return(product, nil).Once()
	mockRepo.On("Update", ctx, mock.MatchedBy(func(p *models.Product) bool {
		return p.ManualPrice && p.Price.Equal(decimal.RequireFromString("89.90"))
	})).Return(nil).Once()

	updated, err := service.UpdatePrice(ctx, staff, "1", decimal.RequireFromString("89.9"))
	assert.NoError(t, err)
	assert.True(t, updated.ManualPrice)

	_, err = service.UpdatePrice(ctx, staff, "1", decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	mockRepo.AssertExpectations(t)
}

func TestProductService_ResetSoldAndBulkMarkup(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := newProductService(mockRepo)
	ctx := context.Background()

	mockRepo.On("ResetSold", ctx, "1").Return(nil).Once()
	mockRepo.On("GetByID", ctx, "1").Return(&models.Product{ID: "1", Stock: 12}, nil).Once()
	avail, err := service.ResetSold(ctx, staff, "1")
	assert.NoError(t, err)
	assert.Equal(t, 12, avail.Quantity)

	mockRepo.On("ApplyMarkup", ctx, mock.MatchedBy(func(m decimal.Decimal) bool {
		return m.Equal(decimal.RequireFromString("1.25"))
	})).Return(int64(3), nil).Once()
	n, err := service.BulkMarkup(ctx, staff, decimal.NewFromInt(25))
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = service.BulkMarkup(ctx, staff, decimal.NewFromInt(-100))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = service.BulkMarkup(ctx, customer, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	mockRepo.AssertExpectations(t)
}
