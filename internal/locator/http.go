package locator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultUserAgent mirrors the browser the where-to-buy page is served to.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/119.0.0.0 Safari/537.36"

const refererURL = "https://holosun.com/where-to-buy.html?c=both"

// HTTPOptions configures the HTTP locator client.
type HTTPOptions struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration

	// RequestsPerSecond paces calls to the endpoint. Default: 0.5 (one
	// lookup every two seconds).
	RequestsPerSecond float64
}

// HTTPClient implements Client against the live endpoint with rate limiting.
type HTTPClient struct {
	endpoint  string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	log       *zap.Logger
}

// NewHTTPClient creates a rate-limited locator client.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	if opts.Endpoint == "" {
		opts.Endpoint = SearchEndpoint
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 0.5
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPClient{
		endpoint:  opts.Endpoint,
		userAgent: opts.UserAgent,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		log:     zap.L().With(zap.String("component", "locator")),
	}
}

// Search posts a dealer lookup and returns the raw result. Network errors
// come back as transient; a non-JSON or non-success body is NOT an error
// here, so callers can run block detection over the raw response.
func (c *HTTPClient) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "locator: rate limiter wait")
	}

	fields, err := PreparePayload(req)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "locator: build request")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Referer", refererURL)
	httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	httpReq.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")

	c.log.Debug("submitting dealer lookup",
		zap.String("zip", req.ZipCode),
		zap.String("endpoint", c.endpoint),
	)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "locator: search request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, eris.Wrap(err, "locator: read response body")
	}

	result := &SearchResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}
	var payload SearchPayload
	if json.Unmarshal(body, &payload) == nil {
		result.Payload = &payload
	}
	return result, nil
}
