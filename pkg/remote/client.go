package remote

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"time"

	errs "pmcharvest/pkg/errors"
	"pmcharvest/pkg/logger"
	"pmcharvest/pkg/metrics"
	"pmcharvest/pkg/ratelimit"
	"pmcharvest/pkg/retry"
)

// Options configures a Client
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Limiter is waited on before every attempt, retries included
	Limiter ratelimit.Limiter
	Retry   *retry.Config
	Metrics *metrics.Recorder
	Logger  logger.Logger
	// HTTPClient overrides the default transport (tests)
	HTTPClient *http.Client
}

// Client performs rate limited, retried GET requests against a search API
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	limiter    ratelimit.Limiter
	retry      *retry.Config
	metrics    *metrics.Recorder
	logger     logger.Logger
}

// NewClient creates a new API client
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewFixedInterval(0)
	}

	retryCfg := opts.Retry
	if retryCfg == nil {
		retryCfg = &retry.Config{MaxAttempts: 1}
	}
	if retryCfg.Logger == nil {
		cp := *retryCfg
		cp.Logger = log
		retryCfg = &cp
	}

	headers := map[string]string{
		"Accept": "application/json, application/xml;q=0.9, */*;q=0.8",
	}
	if opts.UserAgent != "" {
		headers["User-Agent"] = opts.UserAgent
	}

	return &Client{
		httpClient: httpClient,
		headers:    headers,
		limiter:    limiter,
		retry:      retryCfg,
		metrics:    opts.Metrics,
		logger:     log,
	}
}

// Get fetches endpoint?params and returns the body of a 200 response.
// 429 and other failures are retried according to the client's retry policy.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	target, err := buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}

	return retry.DoWithResult(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.getOnce(ctx, target)
	})
}

// GetJSON fetches a JSON document into target
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, target interface{}) error {
	body, err := c.Get(ctx, endpoint, params)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          endpoint,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		return errs.New(errs.ErrorTypeParsing, http.StatusOK, "failed to parse JSON: %v", err)
	}
	return nil
}

// GetXML fetches an XML document into target
func (c *Client) GetXML(ctx context.Context, endpoint string, params url.Values, target interface{}) error {
	body, err := c.Get(ctx, endpoint, params)
	if err != nil {
		return err
	}

	if err := xml.Unmarshal(body, target); err != nil {
		c.logger.ErrorWithFields("failed to parse XML response", map[string]interface{}{
			"url":          endpoint,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		return errs.New(errs.ErrorTypeParsing, http.StatusOK, "failed to parse XML: %v", err)
	}
	return nil
}

func (c *Client) getOnce(ctx context.Context, target string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypePermanent, 0, "failed to create request: %v", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveHTTP(0)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":      target,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, errs.New(errs.ErrorTypeTransient, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveHTTP(resp.StatusCode)
	logger.LogRequest(c.logger, req.Method, target, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errs.FromStatusCode(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeTransient, resp.StatusCode, "failed to read response body: %v", err)
	}
	return body, nil
}

func buildURL(endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", errs.New(errs.ErrorTypePermanent, 0, "invalid endpoint %q: %v", endpoint, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// Describe renders err for log fields, including the HTTP status when known
func Describe(err error) map[string]interface{} {
	fields := map[string]interface{}{"error": err.Error()}
	if apiErr, ok := errs.As(err); ok {
		fields["status"] = apiErr.Code
		fields["error_type"] = string(apiErr.Type)
	}
	return fields
}
