package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus represents the sync provenance of a canonical product
type SyncStatus string

const (
	SyncStatusSynced   SyncStatus = "SYNCED"
	SyncStatusNotFound SyncStatus = "NOT_FOUND"
	SyncStatusError    SyncStatus = "ERROR"
)

// ProductType represents the broad category of a product
type ProductType string

const (
	ProductTypeShoes       ProductType = "SHOES"
	ProductTypeApparel     ProductType = "APPAREL"
	ProductTypeAccessories ProductType = "ACCESSORIES"
	ProductTypeOther       ProductType = "OTHER"
)

// Gender target values stored in Product.GenderTargets
const (
	GenderMens   = "mens"
	GenderWomens = "womens"
	GenderKids   = "kids"
)

// Product is the canonical catalog record, keyed by parent SKU.
// It is created and updated exclusively by the reconciliation engine;
// deactivation is a separate explicit operation and never happens
// as a side effect of a sync run.
type Product struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ParentSKU string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_products_parent_sku" json:"parentSku"`

	// Shared catalog fields
	Name        string     `gorm:"type:varchar(500);not null" json:"name"`
	Brand       string     `gorm:"type:varchar(255);index:idx_products_brand" json:"brand,omitempty"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Images      StringList `gorm:"type:jsonb;default:'[]'" json:"images,omitempty"`

	// Categorization
	CategoryID    *uuid.UUID  `gorm:"type:uuid;index:idx_products_category" json:"categoryId,omitempty"`
	ProductType   ProductType `gorm:"type:varchar(50);default:'OTHER'" json:"productType"`
	GenderTargets StringList  `gorm:"type:jsonb;default:'[]'" json:"genderTargets,omitempty"`

	// Derived from variants; recomputed on every reconciliation
	TotalStock     int        `gorm:"default:0" json:"totalStock"`
	AvailableSizes StringList `gorm:"type:jsonb;default:'[]'" json:"availableSizes,omitempty"`

	// Physical attributes from the catalog feed
	Weight float64 `gorm:"type:decimal(10,3);default:0" json:"weight,omitempty"`
	Length float64 `gorm:"type:decimal(10,2);default:0" json:"length,omitempty"`
	Width  float64 `gorm:"type:decimal(10,2);default:0" json:"width,omitempty"`
	Height float64 `gorm:"type:decimal(10,2);default:0" json:"height,omitempty"`

	// Status
	IsActive bool `gorm:"default:true;index:idx_products_active" json:"isActive"`

	// Sync provenance
	ExternalSKU  *string    `gorm:"type:varchar(255);index:idx_products_external_sku" json:"externalSku,omitempty"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	SyncStatus   SyncStatus `gorm:"type:varchar(50);default:'SYNCED';index:idx_products_sync_status" json:"syncStatus"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`

	// Relationships
	Category *Category        `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Variants []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
}

// TableName specifies the table name for Product
func (Product) TableName() string {
	return "catalog_products"
}

// ProductVariant is one size/stock/price combination under a parent SKU.
type ProductVariant struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index:idx_variants_product" json:"productId"`

	SKU           string  `gorm:"type:varchar(255);not null;uniqueIndex:idx_variants_sku" json:"sku"`
	Size          string  `gorm:"type:varchar(20)" json:"size,omitempty"`
	StockQuantity int     `gorm:"default:0" json:"stockQuantity"`
	Price         float64 `gorm:"type:decimal(12,2);not null" json:"price"`

	// Sale window
	SalePrice     *float64   `gorm:"type:decimal(12,2)" json:"salePrice,omitempty"`
	SaleStartDate *time.Time `json:"saleStartDate,omitempty"`
	SaleEndDate   *time.Time `json:"saleEndDate,omitempty"`
	SaleShow      bool       `gorm:"default:false" json:"saleShow"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for ProductVariant
func (ProductVariant) TableName() string {
	return "catalog_product_variants"
}

// Category groups products by product type
type Category struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_categories_name" json:"name"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for Category
func (Category) TableName() string {
	return "catalog_categories"
}
