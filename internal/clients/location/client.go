package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
)

// Record is one structured address candidate from the location API.
type Record struct {
	ID          string `json:"id"`
	Subdistrict string `json:"subdistrict_name"`
	District    string `json:"district_name"`
	City        string `json:"city_name"`
	Province    string `json:"province_name"`
	ZipCode     string `json:"zip_code"`
	Label       string `json:"label"`
}

// Searcher is the outbound contract the fuzzy search engine depends
// on, kept narrow so tests can substitute a fixture corpus.
type Searcher interface {
	Search(ctx context.Context, keyword string, limit, offset int) ([]Record, error)
}

// Client queries the location search API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a location search client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
	}
}

// Search runs one keyword query against the API.
func (c *Client) Search(ctx context.Context, keyword string, limit, offset int) ([]Record, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return nil, &clients.ConfigError{Source: models.SourceLocation, Missing: "base URL or API key"}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("search", keyword)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	endpoint := c.baseURL + "/locations?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &clients.FetchError{
			Source:   models.SourceLocation,
			Endpoint: endpoint,
			Reason:   "location search request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &clients.FetchError{
			Source:   models.SourceLocation,
			Endpoint: endpoint,
			Reason:   fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return decodeRecords(body)
}

// decodeRecords accepts both an enveloped and a bare list payload.
func decodeRecords(body []byte) ([]Record, error) {
	var enveloped struct {
		Data []Record `json:"data"`
	}
	if err := json.Unmarshal(body, &enveloped); err == nil && enveloped.Data != nil {
		return enveloped.Data, nil
	}

	var flat []Record
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat, nil
	}
	return nil, fmt.Errorf("location response matches no known shape")
}
