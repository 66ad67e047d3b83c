package services

import (
	"context"

	"market/internal/apperr"
	"market/internal/models"
	"market/internal/policy"
	"market/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// ProductService handles business logic related to products.
type ProductService struct {
	repo   repositories.ProductRepository
	policy policy.Policy
	logger *zap.Logger
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, pol policy.Policy, logger *zap.Logger) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{
		repo:   repo,
		policy: pol,
		logger: logger,
	}
}

// GetAllProducts retrieves the products matching filter. Customers never
// see disabled products.
func (s *ProductService) GetAllProducts(ctx context.Context, actor policy.Actor, filter models.ProductFilter) ([]models.Product, error) {
	if !actor.IsStaff() {
		filter.EnabledOnly = true
	}
	return s.repo.GetAll(ctx, filter)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, actor policy.Actor, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Disabled && !actor.IsStaff() {
		return nil, apperr.NotFound("product", id)
	}
	return product, nil
}

// CreateProduct creates a new product. The sold counter always starts at zero.
func (s *ProductService) CreateProduct(ctx context.Context, actor policy.Actor, product *models.Product) error {
	if err := s.policy.Authorize(actor, policy.ProductManage, policy.Resource{Kind: "product"}); err != nil {
		return err
	}
	if err := validatePricing(product); err != nil {
		return err
	}
	product.Sold = 0
	if err := s.repo.Create(ctx, product); err != nil {
		return err
	}
	s.logger.Info("product created", zap.String("product_id", product.ID), zap.String("name", product.Name))
	return nil
}

// UpdateProduct updates the catalog fields of an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, actor policy.Actor, product *models.Product) error {
	if err := s.policy.Authorize(actor, policy.ProductManage, policy.Resource{Kind: "product", ID: product.ID}); err != nil {
		return err
	}
	if err := validatePricing(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, product)
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, actor policy.Actor, id string) error {
	if err := s.policy.Authorize(actor, policy.ProductManage, policy.Resource{Kind: "product", ID: id}); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// UpdatePrice sets a manual price that bulk markups will leave alone.
func (s *ProductService) UpdatePrice(ctx context.Context, actor policy.Actor, id string, price decimal.Decimal) (*models.Product, error) {
	if err := s.policy.Authorize(actor, policy.ProductManage, policy.Resource{Kind: "product", ID: id}); err != nil {
		return nil, err
	}
	if price.IsNegative() {
		return nil, apperr.Validation("price must not be negative")
	}
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Price = price.Round(2)
	product.ManualPrice = true
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// ResetSold zeroes the sold counter after the supplier stock was refreshed.
func (s *ProductService) ResetSold(ctx context.Context, actor policy.Actor, id string) (models.Availability, error) {
	if err := s.policy.Authorize(actor, policy.ProductManage, policy.Resource{Kind: "product", ID: id}); err != nil {
		return models.Availability{}, err
	}
	if err := s.repo.ResetSold(ctx, id); err != nil {
		return models.Availability{}, err
	}
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.Availability{}, err
	}
	s.logger.Info("sold counter reset", zap.String("product_id", id))
	return product.Available(), nil
}

// BulkMarkup reprices every non-manual product with a supplier price to
// supplier_price * (1 + percentage/100) and returns how many were updated.
func (s *ProductService) BulkMarkup(ctx context.Context, actor policy.Actor, percentage decimal.Decimal) (int64, error) {
	if err := s.policy.Authorize(actor, policy.ProductManage, policy.Resource{Kind: "product"}); err != nil {
		return 0, err
	}
	if percentage.LessThanOrEqual(hundred.Neg()) {
		return 0, apperr.Validation("percentage must be greater than -100")
	}
	multiplier := decimal.NewFromInt(1).Add(percentage.Div(hundred))
	n, err := s.repo.ApplyMarkup(ctx, multiplier)
	if err != nil {
		return 0, err
	}
	s.logger.Info("bulk markup applied", zap.String("percentage", percentage.String()), zap.Int64("updated", n))
	return n, nil
}

func validatePricing(p *models.Product) error {
	if p.Price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	if p.OfferPrice.Valid && p.OfferPrice.Decimal.IsNegative() {
		return apperr.Validation("offer price must not be negative")
	}
	if p.Stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	return nil
}
