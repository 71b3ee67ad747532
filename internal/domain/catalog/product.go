package catalog

import (
	"strings"
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog's view of a sellable item.
// The stock engine only reads it and writes the InStock flag.
type Product struct {
	shared.BaseEntity
	Code         string
	Name         string
	SellingPrice decimal.Decimal
	InStock      bool
	// ListedAt holds the locations the product is sold from, in priority order
	ListedAt []uuid.UUID
}

// NewProduct creates a new product listed at the given locations
func NewProduct(code, name string, price decimal.Decimal, listedAt ...uuid.UUID) (*Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.Newf(shared.ErrInvalidInput, "product code cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.Newf(shared.ErrInvalidInput, "product name cannot be empty")
	}
	if price.IsNegative() {
		return nil, shared.Newf(shared.ErrInvalidInput, "selling price cannot be negative")
	}
	return &Product{
		BaseEntity:   shared.NewBaseEntity(),
		Code:         strings.ToUpper(code),
		Name:         name,
		SellingPrice: price,
		ListedAt:     listedAt,
	}, nil
}

// IsListedAt returns true if the product is sold from the location
func (p *Product) IsListedAt(locationID uuid.UUID) bool {
	for _, id := range p.ListedAt {
		if id == locationID {
			return true
		}
	}
	return false
}

// SetInStock updates the stock flag, returns false if nothing changed
func (p *Product) SetInStock(inStock bool) bool {
	if p.InStock == inStock {
		return false
	}
	p.InStock = inStock
	p.UpdatedAt = time.Now()
	return true
}
