// Package geonames provides a city population lookup backed by the GeoNames search API.
package geonames

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/visitum/visitum-cli/internal/model"
	"github.com/visitum/visitum-cli/internal/resilience"
)

// Client is the population lookup contract. A LookupOutcome is returned for
// every classified result, failures included; the error return is reserved
// for conditions the client could not classify.
type Client interface {
	Population(ctx context.Context, city, country string) (model.LookupOutcome, error)
}

// searchResponse is the GeoNames searchJSON envelope.
type searchResponse struct {
	TotalResultsCount int     `json:"totalResultsCount"`
	Geonames          []place `json:"geonames"`
	Status            *struct {
		Message string `json:"message"`
		Value   int    `json:"value"`
	} `json:"status,omitempty"`
}

// place is one GeoNames search hit.
type place struct {
	Name        string `json:"name"`
	CountryName string `json:"countryName"`
	Population  int64  `json:"population"`
}

// Option configures the GeoNames client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(baseURL string) Option {
	return func(c *httpClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second against the API.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	username string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
}

// NewClient creates a GeoNames client. The username identifies the account
// the API quota is billed against.
func NewClient(username string, opts ...Option) Client {
	c := &httpClient{
		username: username,
		baseURL:  "http://api.geonames.org",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		// GeoNames free tier allows roughly one request per second sustained.
		limiter: rate.NewLimiter(1, 2),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Population looks up the population for (city, country). A place found
// without a positive population figure classifies as NoDataForCity and is
// not retried; transport errors and retryable statuses are retried with a
// fixed delay and classify as FetchError once attempts are exhausted.
func (c *httpClient) Population(ctx context.Context, city, country string) (model.LookupOutcome, error) {
	query := fmt.Sprintf("%s, %s", city, country)

	retryCfg := c.retry
	retryCfg.OnRetry = resilience.RetryLogger("geonames", "search")

	outcome, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (model.LookupOutcome, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return model.LookupOutcome{}, eris.Wrap(err, "geonames: rate limiter")
			}
		}
		return c.search(ctx, query)
	})
	if err != nil {
		zap.L().Warn("geonames: lookup exhausted retries",
			zap.String("query", query),
			zap.Error(err),
		)
		return model.FailureOf(model.FetchError), nil
	}
	return outcome, nil
}

// search performs one searchJSON request. Transient failures are returned as
// errors so the retry loop can act on them; definitive answers (found with
// or without population) come back as outcomes.
func (c *httpClient) search(ctx context.Context, query string) (model.LookupOutcome, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxRows", "1")
	params.Set("username", c.username)

	reqURL := fmt.Sprintf("%s/searchJSON?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return model.LookupOutcome{}, eris.Wrap(err, "geonames: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return model.LookupOutcome{}, resilience.NewTransientError(eris.Wrap(err, "geonames: request"), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.LookupOutcome{}, resilience.NewTransientError(eris.Wrap(err, "geonames: read body"), resp.StatusCode)
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return model.LookupOutcome{}, resilience.NewTransientError(
			eris.Errorf("geonames: status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return model.LookupOutcome{}, eris.Errorf("geonames: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.LookupOutcome{}, eris.Wrap(err, "geonames: decode response")
	}

	// GeoNames reports quota and auth problems inside a 200 response.
	if parsed.Status != nil {
		return model.LookupOutcome{}, resilience.NewTransientError(
			eris.Errorf("geonames: api error %d: %s", parsed.Status.Value, parsed.Status.Message), 0)
	}

	if len(parsed.Geonames) == 0 {
		zap.L().Debug("geonames: no place found", zap.String("query", query))
		return model.FailureOf(model.NoDataForCity), nil
	}

	hit := parsed.Geonames[0]
	if hit.Population <= 0 {
		zap.L().Debug("geonames: place found without population",
			zap.String("query", query),
			zap.String("place", hit.Name),
		)
		return model.FailureOf(model.NoDataForCity), nil
	}

	return model.PopulationOf(hit.Population), nil
}
