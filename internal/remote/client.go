// Package remote is the transport layer to the remote dataset service. It
// issues team-scoped JSON requests, maps non-2xx responses to *APIError and
// records Prometheus metrics for every call.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// maxResponseBytes bounds a single response body; a 500-item page is far below it.
	maxResponseBytes = 32 << 20
	// maxErrorBodyBytes is how much of an error body is kept on APIError.
	maxErrorBodyBytes = 4096

	teamPlaceholder = "{team}"
)

// Request describes one call to the remote API. Path is relative to the API
// root and is a template: {team} is replaced by the escaped Team slug and
// every {key} by the escaped Params[key]. Metrics are labeled with the
// template, never the resolved path.
type Request struct {
	Method string
	Team   string
	Path   string
	Params map[string]string
	Query  url.Values
	Body   any
}

func (r Request) resolvedPath() string {
	path := strings.ReplaceAll(r.Path, teamPlaceholder, url.PathEscape(r.Team))
	for key, value := range r.Params {
		path = strings.ReplaceAll(path, "{"+key+"}", url.PathEscape(value))
	}
	return path
}

type ClientConfig struct {
	APIURL    string
	WebURL    string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second; zero disables limiting
	Metrics   *Metrics
	Logger    *slog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	apiURL     string
	webURL     string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *Metrics
	logger     *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		webURL: cfg.WebURL,
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// BaseURL returns the web root used to build links into the remote UI.
func (c *Client) BaseURL() string {
	return c.webURL
}

// JSON sends req and decodes a JSON response body into out. out may be nil
// when the response body is not interpreted.
func (c *Client) JSON(ctx context.Context, req Request, out any) error {
	body, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.Path, err)
	}
	return nil
}

// Text sends req and returns the response body verbatim.
func (c *Client) Text(ctx context.Context, req Request) (string, error) {
	body, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// PutObject uploads raw bytes to a pre-signed storage URL. The URL carries its
// own credentials, so no API key is sent.
func (c *Client) PutObject(ctx context.Context, signedURL string, body io.Reader, size int64) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("object_put", http.MethodPut, "error", start)
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	c.observe("object_put", http.MethodPut, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{StatusCode: resp.StatusCode, Method: http.MethodPut, Path: "signed upload", Body: string(respBody)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, r Request) ([]byte, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var payload io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	u := c.apiURL + r.resolvedPath()
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	req.Header.Set("X-Request-Id", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	c.logger.Debug("remote request",
		"method", method,
		"endpoint", r.Path,
		"team", r.Team,
		"request_id", requestID,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(r.Path, method, "error", start)
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	c.observe(r.Path, method, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		c.logger.Warn("remote request failed",
			"method", method,
			"endpoint", r.Path,
			"status", resp.StatusCode,
			"request_id", requestID,
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Method: method, Path: r.resolvedPath(), Body: string(respBody)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("%s %s: %w", method, r.Path, ErrResponseTooLarge)
	}
	return body, nil
}

func (c *Client) wait(ctx context.Context) error {
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if c.metrics != nil {
		c.metrics.RateLimitWaitSec.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (c *Client) observe(endpoint, method, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	c.metrics.RequestDurationSec.WithLabelValues(endpoint, method, status).Observe(time.Since(start).Seconds())
}
