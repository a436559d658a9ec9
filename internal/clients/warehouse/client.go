package warehouse

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
)

var log = logrus.WithField("component", "warehouse_client")

// endpointPaths are tried in priority order until one returns a
// non-empty, parseable product list. Upstream deployments expose the
// inventory under different route generations.
var endpointPaths = []string{
	"/api/v1/master-products",
	"/api/v1/warehouse/inventory",
	"/api/v1/inventory",
}

// Client talks to the marketplace warehouse inventory API. Requests
// are signed per call; the signature is never cached because it binds
// method and path.
type Client struct {
	baseURL    string
	accessKey  string
	secretKey  string
	httpClient *http.Client
	limiter    *rate.Limiter
	retrier    *clients.Retrier
}

// NewClient creates a warehouse API client.
func NewClient(baseURL, accessKey, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		accessKey:  accessKey,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		retrier:    clients.NewRetrier(nil),
	}
}

// Source identifies this adapter as the warehouse inventory API.
func (c *Client) Source() models.SourceType {
	return models.SourceWarehouse
}

// sign computes the request signature over METHOD$PATH$.
func (c *Client) sign(method, path string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(method + "$" + path + "$"))
	return hex.EncodeToString(mac.Sum(nil))
}

// FetchAll pulls the full inventory, walking the endpoint fallbacks
// until one yields products. Earlier endpoint failures are logged but
// not surfaced once a later endpoint succeeds.
func (c *Client) FetchAll(ctx context.Context) ([]clients.RawRecord, error) {
	if c.baseURL == "" || c.accessKey == "" || c.secretKey == "" {
		return nil, &clients.ConfigError{Source: models.SourceWarehouse, Missing: "base URL or credentials"}
	}

	var lastErr error
	for _, path := range endpointPaths {
		products, err := c.fetchEndpoint(ctx, path)
		if err != nil {
			log.WithError(err).WithField("endpoint", path).Warn("Inventory endpoint failed, trying next")
			lastErr = err
			continue
		}
		if len(products) == 0 {
			log.WithField("endpoint", path).Warn("Inventory endpoint returned no products, trying next")
			lastErr = fmt.Errorf("endpoint %s returned no products", path)
			continue
		}
		return convertProducts(products), nil
	}

	return nil, &clients.FetchError{
		Source:   models.SourceWarehouse,
		Endpoint: c.baseURL,
		Reason:   "all inventory endpoints exhausted",
		Err:      lastErr,
	}
}

func (c *Client) fetchEndpoint(ctx context.Context, path string) ([]inventoryProduct, error) {
	var body []byte
	err := c.retrier.Do(ctx, "fetch warehouse inventory", func(ctx context.Context) (int, time.Duration, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, 0, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return 0, 0, err
		}
		req.Header.Set("Authorization", c.accessKey+":"+c.sign(http.MethodGet, path))
		req.Header.Set("Accept", "application/json")

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
		return nil, err
	}
	return decodeProducts(body)
}

// looseNumber accepts both JSON numbers and numeric strings, since
// upstream deployments are inconsistent about quoting.
type looseNumber string

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = looseNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = looseNumber(num.String())
	return nil
}

// inventoryProduct is the upstream product row.
type inventoryProduct struct {
	SKU       string      `json:"sku"`
	ParentSKU string      `json:"parent_sku"`
	Name      string      `json:"name"`
	Stock     looseNumber `json:"stock_quantity"`
	Price     looseNumber `json:"price"`
}

type paginatedResponse struct {
	Content []inventoryProduct `json:"content"`
}

// decodeProducts tries each known response shape in priority order:
// paginated content array, flat array, single object. The first shape
// that decodes wins.
func decodeProducts(body []byte) ([]inventoryProduct, error) {
	var paginated paginatedResponse
	if err := json.Unmarshal(body, &paginated); err == nil && paginated.Content != nil {
		return paginated.Content, nil
	}

	var flat []inventoryProduct
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat, nil
	}

	var single inventoryProduct
	if err := json.Unmarshal(body, &single); err == nil && single.SKU != "" {
		return []inventoryProduct{single}, nil
	}

	return nil, fmt.Errorf("response matches no known inventory shape")
}

// convertProducts maps upstream rows onto the canonical record
// vocabulary so downstream grouping is source-agnostic.
func convertProducts(products []inventoryProduct) []clients.RawRecord {
	records := make([]clients.RawRecord, 0, len(products))
	for i, p := range products {
		record := clients.RawRecord{
			clients.FieldSKU:           p.SKU,
			clients.FieldParentSKU:     p.ParentSKU,
			clients.FieldName:          p.Name,
			clients.FieldStockQuantity: string(p.Stock),
			clients.FieldPrice:         string(p.Price),
			clients.FieldRowRef:        "item " + strconv.Itoa(i+1),
		}
		records = append(records, record)
	}
	return records
}
