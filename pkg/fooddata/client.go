// Package fooddata is a client for the USDA FoodData Central search API.
package fooddata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/extract-relay/internal/resilience"
)

const defaultBaseURL = "https://api.nal.usda.gov/fdc/v1"

// Client searches foods by name.
type Client interface {
	Search(ctx context.Context, query string, pageSize int) (*SearchResult, error)
}

// SearchResult is the response of GET /foods/search.
type SearchResult struct {
	TotalHits int    `json:"totalHits"`
	Foods     []Food `json:"foods"`
}

// Food is one search hit. Nutrient values are per 100 g unless the data
// type says otherwise.
type Food struct {
	FdcID           int64          `json:"fdcId"`
	Description     string         `json:"description"`
	DataType        string         `json:"dataType"`
	ServingSize     float64        `json:"servingSize,omitempty"`
	ServingSizeUnit string         `json:"servingSizeUnit,omitempty"`
	FoodNutrients   []FoodNutrient `json:"foodNutrients"`
}

// FoodNutrient is one nutrient value of a Food.
type FoodNutrient struct {
	NutrientID     int64   `json:"nutrientId"`
	NutrientName   string  `json:"nutrientName"`
	NutrientNumber string  `json:"nutrientNumber"`
	UnitName       string  `json:"unitName"`
	Value          float64 `json:"value"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRate sets the steady request rate per second. Zero disables limiting.
func WithRate(perSec float64) Option {
	return func(c *httpClient) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = newAdaptiveLimiter(rate.Limit(perSec), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *adaptiveLimiter
}

// NewClient creates a FoodData Central client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: newAdaptiveLimiter(5, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, pageSize int) (*SearchResult, error) {
	if pageSize <= 0 {
		pageSize = 1
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fooddata: rate limit wait")
		}
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/foods/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "fooddata: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fooddata: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fooddata: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("fooddata: unexpected status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests && c.limiter != nil {
			c.limiter.OnRateLimit()
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "fooddata: unmarshal response")
	}
	return &result, nil
}

// adaptiveLimiter halves its rate on 429 down to a quarter of the initial rate.
type adaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	current rate.Limit
	min     rate.Limit
}

func newAdaptiveLimiter(r rate.Limit, burst int) *adaptiveLimiter {
	return &adaptiveLimiter{
		limiter: rate.NewLimiter(r, burst),
		current: r,
		min:     r / 4,
	}
}

func (a *adaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func (a *adaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.current / 2
	if next < a.min {
		next = a.min
	}
	a.current = next
	a.limiter.SetLimit(next)
	zap.L().Warn("fooddata: reducing request rate after 429", zap.Float64("rate", float64(next)))
}
