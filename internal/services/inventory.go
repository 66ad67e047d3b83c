package services

import (
	"context"

	"market/internal/apperr"
	"market/internal/models"
	"market/internal/repositories"
)

// InventoryLedger tracks sellable stock as base stock minus sold units.
// Bind it to the product repository of the running transaction so that
// reservations roll back together with the rest of the operation.
type InventoryLedger struct {
	products repositories.ProductRepository
}

// NewInventoryLedger creates a ledger over products.
func NewInventoryLedger(products repositories.ProductRepository) *InventoryLedger {
	return &InventoryLedger{products: products}
}

// Available returns the current availability of a product.
func (l *InventoryLedger) Available(ctx context.Context, productID string) (models.Availability, error) {
	product, err := l.products.GetByID(ctx, productID)
	if err != nil {
		return models.Availability{}, err
	}
	return product.Available(), nil
}

// Check validates qty against an already loaded product without writing.
// It is the optimistic first pass; Reserve repeats the check under a lock.
func (l *InventoryLedger) Check(product *models.Product, qty int) error {
	if qty <= 0 {
		return apperr.InvalidQuantity(qty)
	}
	if avail := product.Available(); !avail.Covers(qty) {
		return apperr.InsufficientStock(product.ID, product.Name, avail.Quantity)
	}
	return nil
}

// Reserve locks the product row, re-validates availability against the
// fresh row and records the sale. The returned product reflects the state
// read under the lock and is the pricing source for the caller.
func (l *InventoryLedger) Reserve(ctx context.Context, productID string, qty int) (*models.Product, error) {
	product, err := l.products.GetByIDForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := l.Check(product, qty); err != nil {
		return nil, err
	}
	if err := l.RecordSale(ctx, product, qty); err != nil {
		return nil, err
	}
	product.Sold += qty
	return product, nil
}

// RecordSale increments the sold counter with a compare-and-set, so it
// fails with InsufficientStock even where the row lock is a no-op.
func (l *InventoryLedger) RecordSale(ctx context.Context, product *models.Product, qty int) error {
	if qty <= 0 {
		return apperr.InvalidQuantity(qty)
	}
	ok, err := l.products.AddSold(ctx, product.ID, qty)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	available := 0
	if fresh, err := l.products.GetByID(ctx, product.ID); err == nil {
		available = fresh.Available().Quantity
	}
	return apperr.InsufficientStock(product.ID, product.Name, available)
}

// Release returns qty units of a product to the sellable pool.
func (l *InventoryLedger) Release(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return nil
	}
	return l.products.ReturnStock(ctx, productID, qty)
}
