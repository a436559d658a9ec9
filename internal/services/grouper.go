package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/normalize"
)

// ProductAggregate is the grouped form of all variant rows sharing a
// parent SKU, with derived totals.
type ProductAggregate struct {
	ParentSKU     string
	Name          string
	Brand         string
	Description   string
	Images        []string
	ProductType   models.ProductType
	GenderTargets []string
	Weight        float64
	Length        float64
	Width         float64
	Height        float64

	Variants       []models.ProductVariant
	TotalStock     int
	AvailableSizes []string
}

// GroupResult is the outcome of grouping one raw batch.
type GroupResult struct {
	Aggregates []ProductAggregate
	Skipped    int
	Conflicts  int
	Errors     []models.RowError
}

// Grouper resolves raw source records into product aggregates keyed
// by parent SKU.
type Grouper struct {
	log *logrus.Entry
}

// NewGrouper creates a variant grouper.
func NewGrouper() *Grouper {
	return &Grouper{log: logrus.WithField("component", "grouper")}
}

// Group runs two passes over the batch. Pass one buckets rows by
// parent SKU, creating the aggregate shell from the first row seen and
// counting later rows that disagree on shared fields as conflicts.
// Pass two derives total stock and the sorted distinct size set.
func (g *Grouper) Group(records []clients.RawRecord) *GroupResult {
	result := &GroupResult{}
	buckets := make(map[string]*ProductAggregate)
	order := make([]string, 0)
	seenSKUs := make(map[string]string)

	for _, record := range records {
		name := strings.TrimSpace(record[clients.FieldName])
		parentSKU := strings.TrimSpace(record[clients.FieldParentSKU])
		if name == "" || parentSKU == "" {
			result.Skipped++
			g.log.WithField("row", record[clients.FieldRowRef]).Debug("Skipping row with missing identity fields")
			continue
		}

		variant := normalizeVariant(record, parentSKU)
		if firstRef, dup := seenSKUs[variant.SKU]; dup {
			// Variant SKUs must be unique within a batch. The first
			// occurrence wins; later rows are rejected, not merged.
			result.Errors = append(result.Errors, models.RowError{
				Ref:     record[clients.FieldRowRef],
				Message: fmt.Sprintf("duplicate variant SKU %s (first seen at %s)", variant.SKU, firstRef),
			})
			g.log.WithFields(logrus.Fields{
				"sku": variant.SKU,
				"row": record[clients.FieldRowRef],
			}).Warn("Rejecting row with duplicate variant SKU")
			continue
		}
		seenSKUs[variant.SKU] = record[clients.FieldRowRef]

		aggregate, seen := buckets[parentSKU]
		if !seen {
			aggregate = newAggregateShell(parentSKU, record)
			buckets[parentSKU] = aggregate
			order = append(order, parentSKU)
		} else if conflictsWithShell(aggregate, record) {
			// First-seen-wins for shared fields. The conflict is
			// surfaced as a diagnostic count, never silently patched.
			result.Conflicts++
			g.log.WithFields(logrus.Fields{
				"parentSku": parentSKU,
				"row":       record[clients.FieldRowRef],
			}).Warn("Variant row disagrees with product shell")
		}

		aggregate.Variants = append(aggregate.Variants, variant)
	}

	for _, parentSKU := range order {
		aggregate := buckets[parentSKU]
		finalizeAggregate(aggregate)
		result.Aggregates = append(result.Aggregates, *aggregate)
	}
	return result
}

// newAggregateShell captures the shared product fields from the first
// row of a bucket.
func newAggregateShell(parentSKU string, record clients.RawRecord) *ProductAggregate {
	images := make([]string, 0, clients.MaxImageColumns)
	for i := 1; i <= clients.MaxImageColumns; i++ {
		if url := strings.TrimSpace(record[clients.ImageField(i)]); url != "" {
			images = append(images, url)
		}
	}

	return &ProductAggregate{
		ParentSKU:     parentSKU,
		Name:          strings.TrimSpace(record[clients.FieldName]),
		Brand:         strings.TrimSpace(record[clients.FieldBrand]),
		Description:   strings.TrimSpace(record[clients.FieldDescription]),
		Images:        images,
		ProductType:   parseProductType(record[clients.FieldProductType]),
		GenderTargets: parseGenderTargets(record[clients.FieldGender]),
		Weight:        normalize.ParseDecimal(record[clients.FieldWeight]),
		Length:        normalize.ParseDecimal(record[clients.FieldLength]),
		Width:         normalize.ParseDecimal(record[clients.FieldWidth]),
		Height:        normalize.ParseDecimal(record[clients.FieldHeight]),
	}
}

// conflictsWithShell reports whether a later row disagrees with the
// shell on name, brand, or description.
func conflictsWithShell(aggregate *ProductAggregate, record clients.RawRecord) bool {
	name := strings.TrimSpace(record[clients.FieldName])
	if name != "" && name != aggregate.Name {
		return true
	}
	brand := strings.TrimSpace(record[clients.FieldBrand])
	if brand != "" && aggregate.Brand != "" && brand != aggregate.Brand {
		return true
	}
	description := strings.TrimSpace(record[clients.FieldDescription])
	if description != "" && aggregate.Description != "" && description != aggregate.Description {
		return true
	}
	return false
}

func normalizeVariant(record clients.RawRecord, parentSKU string) models.ProductVariant {
	sku := strings.TrimSpace(record[clients.FieldSKU])
	if sku == "" {
		sku = parentSKU
	}

	size := strings.TrimSpace(record[clients.FieldAvailableSize])
	if size == "" {
		if token, ok := normalize.ExtractSizeToken(sku, parentSKU); ok {
			size = token
		}
	}

	// Negative quantities and prices are feed corruption, not valid
	// state. They floor at zero.
	stock := int(normalize.ParseDecimal(record[clients.FieldStockQuantity]))
	if stock < 0 {
		stock = 0
	}
	price := normalize.ParseDecimal(record[clients.FieldPrice])
	if price < 0 {
		price = 0
	}

	variant := models.ProductVariant{
		SKU:           sku,
		Size:          size,
		StockQuantity: stock,
		Price:         price,
		SaleShow:      normalize.ParseBoolean(record[clients.FieldSaleShow]),
		SaleStartDate: normalize.ParseDate(record[clients.FieldSaleStartDate]),
		SaleEndDate:   normalize.ParseDate(record[clients.FieldSaleEndDate]),
	}
	if salePrice := normalize.ParseDecimal(record[clients.FieldSalePrice]); salePrice > 0 {
		variant.SalePrice = &salePrice
	}
	return variant
}

func finalizeAggregate(aggregate *ProductAggregate) {
	total := 0
	sizeSet := make(map[string]struct{})
	for _, v := range aggregate.Variants {
		total += v.StockQuantity
		if v.Size != "" {
			sizeSet[v.Size] = struct{}{}
		}
	}

	sizes := make([]string, 0, len(sizeSet))
	for size := range sizeSet {
		sizes = append(sizes, size)
	}
	sort.Strings(sizes)

	aggregate.TotalStock = total
	aggregate.AvailableSizes = sizes
}

func parseProductType(raw string) models.ProductType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SHOES", "SHOE", "FOOTWEAR":
		return models.ProductTypeShoes
	case "APPAREL", "CLOTHING":
		return models.ProductTypeApparel
	case "ACCESSORIES", "ACCESSORY":
		return models.ProductTypeAccessories
	default:
		return models.ProductTypeOther
	}
}

func parseGenderTargets(raw string) []string {
	targets := make([]string, 0, 3)
	for _, token := range normalize.ParseDelimitedList(raw) {
		switch strings.ToLower(token) {
		case "mens", "men", "male", "m":
			targets = append(targets, models.GenderMens)
		case "womens", "women", "female", "w", "f":
			targets = append(targets, models.GenderWomens)
		case "kids", "children", "child", "k":
			targets = append(targets, models.GenderKids)
		}
	}
	return targets
}
