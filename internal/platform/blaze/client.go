// Package blaze is a ResourceStore over the REST API of a Blaze FHIR server.
package blaze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/miabis/miabis/internal/platform/fhir"
	"github.com/miabis/miabis/internal/platform/metrics"
)

const fhirJSON = "application/fhir+json"

// Config holds the connection settings of a Client.
type Config struct {
	BaseURL   string
	Username  string
	Password  string
	Timeout   time.Duration
	RetryMax  int
	RetryWait time.Duration
	PageSize  int
}

// Client talks to one FHIR base URL. Requests failing with 500, 502, 503 or
// 504, or with a connection error, are retried RetryMax times with a fixed
// RetryWait pause; every other response is returned on the first attempt.
type Client struct {
	baseURL  *url.URL
	username string
	password string
	pageSize int
	http     *retryablehttp.Client
	logger   zerolog.Logger
	metrics  *metrics.Collector
}

type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics counts retried requests on the collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http.HTTPClient = hc }
}

func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse blaze url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("blaze url %q: scheme must be http or https", cfg.BaseURL)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWait
	rc.RetryWaitMax = cfg.RetryWait
	rc.Backoff = fixedBackoff
	rc.CheckRetry = retryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}

	c := &Client{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		pageSize: cfg.PageSize,
		http:     rc,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	rc.RequestLogHook = c.logAttempt
	return c, nil
}

func fixedBackoff(min, _ time.Duration, _ int, _ *http.Response) time.Duration {
	return min
}

// retryPolicy retries connection failures and the transient 5xx statuses.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

func (c *Client) logAttempt(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 {
		return
	}
	c.logger.Warn().Str("method", req.Method).Str("url", req.URL.String()).Int("attempt", attempt).Msg("retrying blaze request")
	if c.metrics != nil {
		c.metrics.HTTPRetriesTotal.WithLabelValues(req.Method).Inc()
	}
}

func (c *Client) resourceURL(parts ...string) string {
	u := *c.baseURL
	for _, p := range parts {
		u.Path += "/" + url.PathEscape(p)
	}
	return u.String()
}

// do sends a request and decodes a JSON response body into out when out is
// not nil. Non-2xx responses become a *StatusError.
func (c *Client) do(ctx context.Context, method, target string, body interface{}, out interface{}) (*http.Response, error) {
	var rawBody interface{}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		rawBody = raw
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, rawBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", fhirJSON)
	if rawBody != nil {
		req.Header.Set("Content-Type", fhirJSON)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, target, err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("blaze request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, newStatusError(method, target, resp.StatusCode, respBody)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp, fmt.Errorf("%s %s: decode response: %w", method, target, err)
		}
	}
	return resp, nil
}

func (c *Client) Create(ctx context.Context, resourceType string, resource map[string]interface{}) (string, error) {
	var created map[string]interface{}
	resp, err := c.do(ctx, http.MethodPost, c.resourceURL(resourceType), resource, &created)
	if err != nil {
		return "", err
	}
	if id, _ := fhir.GetString(created, "id"); id != "" {
		return id, nil
	}
	if _, id, ok := fhir.ParseReference(resp.Header.Get("Location")); ok {
		return id, nil
	}
	return "", fmt.Errorf("create %s: server returned no id", resourceType)
}

func (c *Client) Read(ctx context.Context, resourceType, id string) (map[string]interface{}, error) {
	var res map[string]interface{}
	if _, err := c.do(ctx, http.MethodGet, c.resourceURL(resourceType, id), nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Update(ctx context.Context, resourceType, id string, resource map[string]interface{}) error {
	_, err := c.do(ctx, http.MethodPut, c.resourceURL(resourceType, id), resource, nil)
	return err
}

func (c *Client) Delete(ctx context.Context, resourceType, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.resourceURL(resourceType, id), nil, nil)
	return err
}

// Ping reads the server's CapabilityStatement.
func (c *Client) Ping(ctx context.Context) error {
	var cs map[string]interface{}
	if _, err := c.do(ctx, http.MethodGet, c.resourceURL("metadata"), nil, &cs); err != nil {
		return err
	}
	if rt, _ := fhir.GetString(cs, "resourceType"); rt != "CapabilityStatement" {
		return fmt.Errorf("metadata: unexpected resource type %q", rt)
	}
	return nil
}

// Search runs a type-level search and follows the bundle's next links until
// every page has been read.
func (c *Client) Search(ctx context.Context, resourceType string, params url.Values) ([]map[string]interface{}, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	if c.pageSize > 0 && q.Get("_count") == "" {
		q.Set("_count", strconv.Itoa(c.pageSize))
	}
	target := c.resourceURL(resourceType) + "?" + q.Encode()

	var out []map[string]interface{}
	for page := 1; target != ""; page++ {
		var bundle fhir.Bundle
		if _, err := c.do(ctx, http.MethodGet, target, nil, &bundle); err != nil {
			return nil, err
		}
		resources, err := bundle.Resources()
		if err != nil {
			return nil, fmt.Errorf("search %s page %d: %w", resourceType, page, err)
		}
		out = append(out, resources...)
		target = bundle.NextLink()
	}
	return out, nil
}

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Method      string
	URL         string
	StatusCode  int
	Diagnostics string
}

func newStatusError(method, target string, status int, body []byte) *StatusError {
	e := &StatusError{Method: method, URL: target, StatusCode: status}
	var outcome fhir.OperationOutcome
	if len(body) > 0 && json.Unmarshal(body, &outcome) == nil && outcome.ResourceType == "OperationOutcome" {
		e.Diagnostics = outcome.Diagnostics()
	} else if len(body) > 0 {
		e.Diagnostics = string(bytes.TrimSpace(body))
	}
	return e
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Diagnostics != "" {
		msg += ": " + e.Diagnostics
	}
	return msg
}

// Is makes 404 and 410 responses match fhir.ErrResourceNotFound.
func (e *StatusError) Is(target error) bool {
	return target == fhir.ErrResourceNotFound &&
		(e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone)
}
