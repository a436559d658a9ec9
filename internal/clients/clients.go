package clients

import (
	"context"
	"fmt"

	"catalog-sync-service/internal/models"
)

// RawRecord is one row as received from a source, keyed by the catalog
// feed header vocabulary. Records are ephemeral: they exist only until
// normalization.
type RawRecord map[string]string

// Header vocabulary shared by all source adapters. Adapters that speak
// a different upstream schema map their fields onto these keys.
const (
	FieldName          = "name"
	FieldParentSKU     = "sku_parent"
	FieldSKU           = "sku"
	FieldAvailableSize = "available_sizes"
	FieldPrice         = "price"
	FieldSalePrice     = "sale_price"
	FieldStockQuantity = "stock_quantity"
	FieldProductType   = "product_type"
	FieldBrand         = "brand"
	FieldDescription   = "description"
	FieldWeight        = "weight"
	FieldLength        = "length"
	FieldWidth         = "width"
	FieldHeight        = "height"
	FieldSaleStartDate = "sale_start_date"
	FieldSaleEndDate   = "sale_end_date"
	FieldSaleShow      = "sale_show"
	FieldGender        = "gender"
	FieldRowRef        = "_row"
)

// ImageField returns the header key for the n-th image column (1-based).
func ImageField(n int) string {
	return fmt.Sprintf("images_%d", n)
}

// MaxImageColumns is the number of images_N columns in the feed.
const MaxImageColumns = 5

// SourceClient is the contract every source adapter implements. FetchAll
// performs network I/O only; adapters never mutate canonical state.
type SourceClient interface {
	// Source returns the source this client reads from.
	Source() models.SourceType

	// FetchAll retrieves the full current batch from the source.
	FetchAll(ctx context.Context) ([]RawRecord, error)
}

// FetchError is returned when a source could not be read: network
// failure, timeout, auth rejection, or none of the known response shapes
// matching. A FetchError aborts the sync run before any apply step.
type FetchError struct {
	Source   models.SourceType
	Endpoint string
	Reason   string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("fetch from %s (%s) failed: %s", e.Source, e.Endpoint, e.Reason)
	}
	return fmt.Sprintf("fetch from %s failed: %s", e.Source, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ConfigError is returned when a client is constructed without required
// credentials or configuration. It fails fast, before any network call.
type ConfigError struct {
	Source  models.SourceType
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("source %s is not configured: missing %s", e.Source, e.Missing)
}
