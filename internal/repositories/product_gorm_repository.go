package repositories

import (
	"context"
	"fmt"
	"strings"

	"market/internal/apperr"
	"market/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Columns a catalog update may write. Sold is owned by the inventory ledger.
var productEditableColumns = []string{
	"name", "description", "category", "price", "supplier_price", "manual_price",
	"on_sale", "offer_price", "stock", "unlimited", "disabled", "updated_at",
}

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// GetAll retrieves the products matching filter, ordered by name.
func (r *GORMProductRepository) GetAll(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.Name != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Name)+"%")
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}
	if filter.EnabledOnly {
		q = q.Where("disabled = ?", false)
	}

	var products []models.Product
	if err := q.Order("name").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "product", id)
	}
	return &product, nil
}

// GetByIDForUpdate is GetByID with SELECT ... FOR UPDATE. Dialects without
// row locks (SQLite) drop the clause and rely on their database-wide write lock.
func (r *GORMProductRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, lookupErr(err, "product", id)
	}
	return &product, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update writes the catalog fields of an existing product.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	res := r.db.WithContext(ctx).Model(product).Select(productEditableColumns).Updates(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product", product.ID)
	}
	return nil
}

// Delete deletes a product by its ID from the database.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product", id)
	}
	return nil
}

func (r *GORMProductRepository) AddSold(ctx context.Context, id string, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Where("unlimited = ? OR stock - sold >= ?", true, qty).
		UpdateColumn("sold", gorm.Expr("sold + ?", qty))
	if res.Error != nil {
		return false, fmt.Errorf("failed to record sale for product %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GORMProductRepository) ReturnStock(ctx context.Context, id string, qty int) error {
	// Both SET expressions read the pre-update row.
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"stock": gorm.Expr("stock + CASE WHEN sold >= ? THEN 0 ELSE ? - sold END", qty, qty),
			"sold":  gorm.Expr("CASE WHEN sold >= ? THEN sold - ? ELSE 0 END", qty, qty),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to return stock for product %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product", id)
	}
	return nil
}

func (r *GORMProductRepository) ResetSold(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("sold", 0)
	if res.Error != nil {
		return fmt.Errorf("failed to reset sold counter for product %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product", id)
	}
	return nil
}

func (r *GORMProductRepository) ApplyMarkup(ctx context.Context, multiplier decimal.Decimal) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("manual_price = ? AND supplier_price IS NOT NULL", false).
		Update("price", gorm.Expr("ROUND(supplier_price * ?, 2)", multiplier))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to apply markup: %w", res.Error)
	}
	return res.RowsAffected, nil
}
