package sheet

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
)

var log = logrus.WithField("component", "sheet_client")

// headerAliases maps spreadsheet column headings onto the canonical
// field vocabulary. Matching is case-insensitive after trimming and
// collapsing separators, so "SKU Parent", "sku_parent" and
// "Sku-Parent" all resolve to the same field.
var headerAliases = map[string]string{
	"name":            clients.FieldName,
	"product name":    clients.FieldName,
	"sku parent":      clients.FieldParentSKU,
	"parent sku":      clients.FieldParentSKU,
	"sku":             clients.FieldSKU,
	"available size":  clients.FieldAvailableSize,
	"available sizes": clients.FieldAvailableSize,
	"size":            clients.FieldAvailableSize,
	"sizes":           clients.FieldAvailableSize,
	"price":           clients.FieldPrice,
	"sale price":      clients.FieldSalePrice,
	"stock quantity":  clients.FieldStockQuantity,
	"stock":           clients.FieldStockQuantity,
	"qty":             clients.FieldStockQuantity,
	"product type":    clients.FieldProductType,
	"type":            clients.FieldProductType,
	"brand":           clients.FieldBrand,
	"description":     clients.FieldDescription,
	"weight":          clients.FieldWeight,
	"length":          clients.FieldLength,
	"width":           clients.FieldWidth,
	"height":          clients.FieldHeight,
	"sale start date": clients.FieldSaleStartDate,
	"sale end date":   clients.FieldSaleEndDate,
	"sale show":       clients.FieldSaleShow,
	"gender":          clients.FieldGender,
}

// Client reads the catalog feed from a spreadsheet export. The feed
// URL may be an http(s) endpoint or a local file path; both XLSX and
// CSV payloads are supported.
type Client struct {
	feedURL    string
	httpClient *http.Client
	retrier    *clients.Retrier
}

// NewClient creates a sheet feed client for the given URL or path.
func NewClient(feedURL string, timeout time.Duration) *Client {
	return &Client{
		feedURL:    feedURL,
		httpClient: &http.Client{Timeout: timeout},
		retrier:    clients.NewRetrier(nil),
	}
}

// Source identifies this adapter as the sheet feed.
func (c *Client) Source() models.SourceType {
	return models.SourceSheet
}

// FetchAll downloads the feed and returns one record per data row
// keyed by the canonical field vocabulary. Rows retain their sheet
// position in the row-reference field for error reporting.
func (c *Client) FetchAll(ctx context.Context) ([]clients.RawRecord, error) {
	if c.feedURL == "" {
		return nil, &clients.ConfigError{Source: models.SourceSheet, Missing: "feed URL"}
	}

	data, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := c.parse(data)
	if err != nil {
		return nil, &clients.FetchError{
			Source:   models.SourceSheet,
			Endpoint: c.feedURL,
			Reason:   "unparseable feed",
			Err:      err,
		}
	}
	return rows, nil
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	if !strings.HasPrefix(c.feedURL, "http://") && !strings.HasPrefix(c.feedURL, "https://") {
		data, err := os.ReadFile(c.feedURL)
		if err != nil {
			return nil, &clients.FetchError{
				Source:   models.SourceSheet,
				Endpoint: c.feedURL,
				Reason:   "local feed unreadable",
				Err:      err,
			}
		}
		return data, nil
	}

	var body []byte
	err := c.retrier.Do(ctx, "fetch sheet feed", func(ctx context.Context) (int, time.Duration, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
		if err != nil {
			return 0, 0, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, clients.ParseRetryAfter(resp), nil
		}
		body, err = io.ReadAll(resp.Body)
		return resp.StatusCode, 0, err
	})
	if err != nil {
		return nil, &clients.FetchError{
			Source:   models.SourceSheet,
			Endpoint: c.feedURL,
			Reason:   "feed download failed",
			Err:      err,
		}
	}
	return body, nil
}

func (c *Client) parse(data []byte) ([]clients.RawRecord, error) {
	if isXLSX(data, c.feedURL) {
		return parseXLSX(data)
	}
	return parseCSV(data)
}

// isXLSX detects the format from the zip magic bytes, falling back to
// the file extension for empty or truncated payloads.
func isXLSX(data []byte, feedURL string) bool {
	if len(data) >= 4 && data[0] == 'P' && data[1] == 'K' {
		return true
	}
	return strings.EqualFold(filepath.Ext(feedURL), ".xlsx")
}

func parseXLSX(data []byte) ([]clients.RawRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rowsToRecords(rows)
}

func parseCSV(data []byte) ([]clients.RawRecord, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rowsToRecords(rows)
}

// rowsToRecords maps the header row through the alias table and emits
// one record per non-empty data row. Unknown columns are ignored and
// header positions are resolved per cell, so column order is free.
func rowsToRecords(rows [][]string) ([]clients.RawRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("feed is empty")
	}

	fields := make(map[int]string)
	imageOrdinal := 0
	for i, heading := range rows[0] {
		key := canonicalHeading(heading)
		if key == "" {
			continue
		}
		if field, ok := headerAliases[key]; ok {
			fields[i] = field
			continue
		}
		if strings.HasPrefix(key, "image") {
			imageOrdinal++
			if imageOrdinal <= clients.MaxImageColumns {
				fields[i] = clients.ImageField(imageOrdinal)
			}
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no recognizable columns in header row")
	}

	records := make([]clients.RawRecord, 0, len(rows)-1)
	for rowIdx, row := range rows[1:] {
		record := clients.RawRecord{}
		empty := true
		for col, field := range fields {
			if col >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[col])
			if value != "" {
				empty = false
			}
			record[field] = value
		}
		if empty {
			continue
		}
		// Sheet rows are 1-based and the header occupies row 1.
		record[clients.FieldRowRef] = "row " + strconv.Itoa(rowIdx+2)
		records = append(records, record)
	}

	log.WithField("rows", len(records)).Debug("Parsed sheet feed")
	return records, nil
}

func canonicalHeading(heading string) string {
	h := strings.ToLower(strings.TrimSpace(heading))
	h = strings.ReplaceAll(h, "_", " ")
	h = strings.ReplaceAll(h, "-", " ")
	return strings.Join(strings.Fields(h), " ")
}
