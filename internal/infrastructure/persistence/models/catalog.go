package models

import (
	"github.com/erp/stocksync/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product domain entity.
type ProductModel struct {
	BaseModel
	Code         string                 `gorm:"type:varchar(50);not null;uniqueIndex:idx_product_code"`
	Name         string                 `gorm:"type:varchar(200);not null"`
	SellingPrice decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	InStock      bool                   `gorm:"not null;default:false"`
	Locations    []ProductLocationModel `gorm:"foreignKey:ProductID;references:ID"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ProductLocationModel lists a product at a location. Priority 0 is the primary location.
type ProductLocationModel struct {
	ProductID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	LocationID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Priority   int       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductLocationModel) TableName() string {
	return "product_locations"
}

// ToDomain converts the persistence model to a domain Product entity.
// Locations must be sorted by priority.
func (m *ProductModel) ToDomain() *catalog.Product {
	p := &catalog.Product{
		BaseEntity:   m.BaseModel.ToDomain(),
		Code:         m.Code,
		Name:         m.Name,
		SellingPrice: m.SellingPrice,
		InStock:      m.InStock,
	}
	if len(m.Locations) > 0 {
		p.ListedAt = make([]uuid.UUID, len(m.Locations))
		for i, l := range m.Locations {
			p.ListedAt[i] = l.LocationID
		}
	}
	return p
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.Code = p.Code
	m.Name = p.Name
	m.SellingPrice = p.SellingPrice
	m.InStock = p.InStock
	m.Locations = make([]ProductLocationModel, len(p.ListedAt))
	for i, loc := range p.ListedAt {
		m.Locations[i] = ProductLocationModel{ProductID: p.ID, LocationID: loc, Priority: i}
	}
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}
