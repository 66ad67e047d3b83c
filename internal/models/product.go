package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the store.
//
// Stock is the base count received from the supplier and Sold the units already
// committed to orders. Neither is ever written outside the inventory ledger.
type Product struct {
	ID            string              `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name          string              `json:"name" gorm:"type:varchar(100);index" validate:"required,min=3,max=100"`
	Description   string              `json:"description" validate:"omitempty,max=500"`
	Category      string              `json:"category" gorm:"type:varchar(100);index" validate:"omitempty,max=100"`
	Price         decimal.Decimal     `json:"price" gorm:"type:decimal(10,2);not null"`
	SupplierPrice decimal.NullDecimal `json:"supplier_price" gorm:"type:decimal(10,2)"`
	ManualPrice   bool                `json:"manual_price" gorm:"not null;default:false"`
	OnSale        bool                `json:"on_sale" gorm:"not null;default:false"`
	OfferPrice    decimal.NullDecimal `json:"offer_price" gorm:"type:decimal(10,2)"`
	Stock         int                 `json:"stock" gorm:"not null;default:0" validate:"gte=0"`
	Sold          int                 `json:"sold" gorm:"not null;default:0"`
	Unlimited     bool                `json:"unlimited" gorm:"not null;default:false"`
	Disabled      bool                `json:"disabled" gorm:"not null;default:false"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Availability is the number of units that can still be sold.
// Unlimited products report Unlimited=true and a meaningless Quantity.
type Availability struct {
	Quantity  int  `json:"quantity"`
	Unlimited bool `json:"unlimited"`
}

// Covers reports whether qty units fit in the availability.
func (a Availability) Covers(qty int) bool {
	return a.Unlimited || qty <= a.Quantity
}

// Available derives the sellable stock from the base count and the sold counter.
func (p *Product) Available() Availability {
	if p.Unlimited {
		return Availability{Unlimited: true}
	}
	n := p.Stock - p.Sold
	if n < 0 {
		n = 0
	}
	return Availability{Quantity: n}
}

// FinalPrice is the unit price customers pay right now.
func (p *Product) FinalPrice() decimal.Decimal {
	if p.OnSale && p.OfferPrice.Valid {
		return p.OfferPrice.Decimal
	}
	return p.Price
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Name        string
	Category    string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	EnabledOnly bool // hides products flagged as disabled
}
