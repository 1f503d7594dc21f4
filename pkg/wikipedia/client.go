// Package wikipedia provides a client for the MediaWiki parse API.
package wikipedia

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

	"github.com/visitum/visitum-cli/internal/resilience"
)

const defaultUserAgent = "visitum-cli/1.0 (https://github.com/visitum/visitum-cli)"

// Client fetches rendered page HTML from a MediaWiki installation.
type Client interface {
	// PageHTML returns the rendered HTML body of the named page.
	PageHTML(ctx context.Context, page string) (string, error)
}

// parseResponse is the action=parse envelope.
type parseResponse struct {
	Parse *struct {
		Title string `json:"title"`
		Text  struct {
			Value string `json:"*"`
		} `json:"text"`
	} `json:"parse"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// Option configures the wikipedia client.
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

// WithUserAgent overrides the User-Agent header. Wikimedia rejects anonymous
// default agents, so a descriptive agent is always sent.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	retry     resilience.RetryConfig
}

// NewClient creates a MediaWiki parse API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   "https://en.wikipedia.org/w/api.php",
		userAgent: defaultUserAgent,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageHTML fetches the rendered HTML of a page via action=parse. Transient
// statuses and transport errors are retried; a missing page is a permanent
// error.
func (c *httpClient) PageHTML(ctx context.Context, page string) (string, error) {
	retryCfg := c.retry
	retryCfg.OnRetry = resilience.RetryLogger("wikipedia", "parse")

	html, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (string, error) {
		return c.fetch(ctx, page)
	})
	if err != nil {
		return "", eris.Wrapf(err, "wikipedia: fetch page %q", page)
	}

	zap.L().Debug("wikipedia: page fetched",
		zap.String("page", page),
		zap.Int("html_bytes", len(html)),
	)
	return html, nil
}

func (c *httpClient) fetch(ctx context.Context, page string) (string, error) {
	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", page)
	params.Set("prop", "text")
	params.Set("format", "json")
	params.Set("formatversion", "1")

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "wikipedia: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrap(err, "wikipedia: request"), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrap(err, "wikipedia: read body"), resp.StatusCode)
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return "", resilience.NewTransientError(
			eris.Errorf("wikipedia: status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("wikipedia: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed parseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", eris.Wrap(err, "wikipedia: decode response")
	}
	if parsed.Error != nil {
		return "", eris.Errorf("wikipedia: api error %s: %s", parsed.Error.Code, parsed.Error.Info)
	}
	if parsed.Parse == nil || parsed.Parse.Text.Value == "" {
		return "", eris.Errorf("wikipedia: empty parse result for page %q", page)
	}
	return parsed.Parse.Text.Value, nil
}
