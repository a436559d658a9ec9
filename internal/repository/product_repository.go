package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-sync-service/internal/models"
)

var ErrNotFound = errors.New("not found")

// ProductRepositoryInterface defines catalog store operations so the
// reconciliation engine can be tested against a mock.
type ProductRepositoryInterface interface {
	GetByParentSKU(ctx context.Context, parentSKU string) (*models.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	ReplaceVariants(ctx context.Context, productID uuid.UUID, variants []models.ProductVariant) error
	UpdateVariantStock(ctx context.Context, sku string, stockQuantity int) error
	FindOrCreateCategory(ctx context.Context, name string) (*models.Category, error)
	List(ctx context.Context, opts ListOptions) ([]models.Product, int64, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	MarkMissingNotFound(ctx context.Context, seenParentSKUs []string) (int64, error)
}

// ListOptions controls catalog listing
type ListOptions struct {
	Limit      int
	Offset     int
	Brand      string
	SyncStatus models.SyncStatus
	ActiveOnly bool
	Search     string
}

// ProductRepository handles catalog database operations
type ProductRepository struct {
	db *gorm.DB
}

var _ ProductRepositoryInterface = (*ProductRepository)(nil)

// NewProductRepository creates a new product repository
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByParentSKU retrieves a product with its variants by parent SKU
func (r *ProductRepository) GetByParentSKU(ctx context.Context, parentSKU string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Preload("Variants").
		Where("parent_sku = ?", parentSKU).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// GetByID retrieves a product with its variants and category by ID
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Preload("Variants").Preload("Category").
		First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// Create inserts a new product together with its variants
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Update saves all mutable product fields
func (r *ProductRepository) Update(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// ReplaceVariants swaps the product's variant set atomically. The
// delete-and-insert runs in one transaction so a concurrent reader
// never observes a partial variant set.
func (r *ProductRepository) ReplaceVariants(ctx context.Context, productID uuid.UUID, variants []models.ProductVariant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}
		if len(variants) == 0 {
			return nil
		}
		for i := range variants {
			variants[i].ProductID = productID
		}
		return tx.Create(&variants).Error
	})
}

// UpdateVariantStock sets the stock quantity of one variant by SKU
func (r *ProductRepository) UpdateVariantStock(ctx context.Context, sku string, stockQuantity int) error {
	result := r.db.WithContext(ctx).Model(&models.ProductVariant{}).
		Where("sku = ?", sku).Update("stock_quantity", stockQuantity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindOrCreateCategory returns the category with the given name,
// creating it on first sight
func (r *ProductRepository) FindOrCreateCategory(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).
		Where(models.Category{Name: name}).
		FirstOrCreate(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// List retrieves catalog products with pagination and filters
func (r *ProductRepository) List(ctx context.Context, opts ListOptions) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Product{})
	if opts.Brand != "" {
		query = query.Where("brand = ?", opts.Brand)
	}
	if opts.SyncStatus != "" {
		query = query.Where("sync_status = ?", opts.SyncStatus)
	}
	if opts.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		query = query.Where("name ILIKE ? OR parent_sku ILIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit).Offset(opts.Offset)
	}

	if err := query.Preload("Variants").Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// SetActive flips the active flag of one product
func (r *ProductRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkMissingNotFound flags synced products absent from the current
// batch as NOT_FOUND. Catalog fields are left untouched. An empty seen
// list is a no-op: it would otherwise flag the whole catalog.
func (r *ProductRepository) MarkMissingNotFound(ctx context.Context, seenParentSKUs []string) (int64, error) {
	if len(seenParentSKUs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("sync_status = ?", models.SyncStatusSynced).
		Where("parent_sku NOT IN ?", seenParentSKUs).
		Update("sync_status", models.SyncStatusNotFound)
	return result.RowsAffected, result.Error
}
