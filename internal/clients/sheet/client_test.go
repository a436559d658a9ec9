package sheet

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
)

func writeTempFeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFetchAllCSV(t *testing.T) {
	feed := "Name,SKU Parent,SKU,Available Size,Price,Stock Quantity,Brand,Image 1,Image 2\n" +
		"Runner Pro,SBK001,SBK001-S,S,\"1.299.000\",3,Aerostride,https://cdn/x1.jpg,https://cdn/x2.jpg\n" +
		"Runner Pro,SBK001,SBK001-M,M,\"1.299.000\",5,Aerostride,,\n" +
		",,,,,,,,\n"

	client := NewClient(writeTempFeed(t, "feed.csv", feed), 5*time.Second)
	assert.Equal(t, models.SourceSheet, client.Source())

	records, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "Runner Pro", first[clients.FieldName])
	assert.Equal(t, "SBK001", first[clients.FieldParentSKU])
	assert.Equal(t, "SBK001-S", first[clients.FieldSKU])
	assert.Equal(t, "S", first[clients.FieldAvailableSize])
	assert.Equal(t, "1.299.000", first[clients.FieldPrice])
	assert.Equal(t, "3", first[clients.FieldStockQuantity])
	assert.Equal(t, "https://cdn/x1.jpg", first[clients.ImageField(1)])
	assert.Equal(t, "https://cdn/x2.jpg", first[clients.ImageField(2)])
	assert.Equal(t, "row 2", first[clients.FieldRowRef])
	assert.Equal(t, "row 3", records[1][clients.FieldRowRef])
}

func TestFetchAllCSVCanonicalHeaders(t *testing.T) {
	// The feed contract's own underscore header names must map onto
	// the record vocabulary without relying on any alias spelling.
	feed := "name,sku_parent,sku,available_sizes,price,sale_price,stock_quantity,product_type,brand,description,images_1,weight,length,width,height,sale_start_date,sale_end_date,sale_show\n" +
		"Runner Pro,SBK001,SBK001-S,S,1299000,999000,3,Shoes,Aerostride,Light road shoe,https://cdn/x1.jpg,0.4,30,20,12,2026-01-01,2026-01-31,yes\n"

	client := NewClient(writeTempFeed(t, "feed.csv", feed), 5*time.Second)
	records, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "S", record[clients.FieldAvailableSize])
	assert.Equal(t, "999000", record[clients.FieldSalePrice])
	assert.Equal(t, "Light road shoe", record[clients.FieldDescription])
	assert.Equal(t, "https://cdn/x1.jpg", record[clients.ImageField(1)])
	assert.Equal(t, "0.4", record[clients.FieldWeight])
	assert.Equal(t, "2026-01-01", record[clients.FieldSaleStartDate])
	assert.Equal(t, "yes", record[clients.FieldSaleShow])
}

func TestFetchAllCSVHeaderVariants(t *testing.T) {
	feed := "product_name,Parent-SKU,sku,SIZE,price\n" +
		"Trail Jacket,JKT010,JKT010-XL,XL,750000\n"

	client := NewClient(writeTempFeed(t, "feed.csv", feed), 5*time.Second)
	records, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "Trail Jacket", records[0][clients.FieldName])
	assert.Equal(t, "JKT010", records[0][clients.FieldParentSKU])
	assert.Equal(t, "XL", records[0][clients.FieldAvailableSize])
}

func TestFetchAllXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheetName := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheetName, "A1", &[]any{"Name", "SKU Parent", "SKU", "Stock Quantity"}))
	require.NoError(t, f.SetSheetRow(sheetName, "A2", &[]any{"Court Classic", "SNK020", "SNK020-42", 7}))

	path := filepath.Join(t.TempDir(), "feed.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	client := NewClient(path, 5*time.Second)
	records, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "Court Classic", records[0][clients.FieldName])
	assert.Equal(t, "SNK020", records[0][clients.FieldParentSKU])
	assert.Equal(t, "7", records[0][clients.FieldStockQuantity])
}

func TestFetchAllMissingURL(t *testing.T) {
	client := NewClient("", 5*time.Second)
	_, err := client.FetchAll(context.Background())

	var cfgErr *clients.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, models.SourceSheet, cfgErr.Source)
}

func TestFetchAllUnreadableFile(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "missing.csv"), 5*time.Second)
	_, err := client.FetchAll(context.Background())

	var fetchErr *clients.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, models.SourceSheet, fetchErr.Source)
}

func TestFetchAllNoRecognizableColumns(t *testing.T) {
	feed := "foo,bar\n1,2\n"
	client := NewClient(writeTempFeed(t, "feed.csv", feed), 5*time.Second)

	_, err := client.FetchAll(context.Background())
	var fetchErr *clients.FetchError
	require.ErrorAs(t, err, &fetchErr)
}
