// Package httpclient is the shared HTTP client for the REST collaborators:
// JSON requests with bounded retries, transparent response decompression
// (gzip, deflate, brotli), and structured logging.
package httpclient

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/cenkalti/backoff/v4"
)

// Defaults applied by New for zero config fields.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultRetryMaxDelay = 5 * time.Second
	DefaultUserAgent     = "arenalive/1.0"

	acceptEncoding = "gzip, deflate, br"
)

// ErrStatus wraps non-2xx responses after retries are exhausted.
var ErrStatus = errors.New("httpclient: unexpected status")

// Config holds client tuning. Zero values take the package defaults.
type Config struct {
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration
	UserAgent     string
	Logger        *slog.Logger

	// BaseClient overrides the underlying http.Client, for tests.
	BaseClient *http.Client
}

// Client is a JSON-oriented HTTP client with retries.
type Client struct {
	cfg  Config
	base *http.Client
	log  *slog.Logger
}

// New creates a client, filling defaults for unset config fields.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case cfg.RetryAttempts == 0:
		cfg.RetryAttempts = DefaultRetryAttempts
	case cfg.RetryAttempts < 0:
		// Negative would wrap to a huge uint64 retry budget in Do.
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.RetryMaxDelay == 0 {
		cfg.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	base := cfg.BaseClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, base: base, log: cfg.Logger}
}

// retryableStatus reports whether a status code is worth another attempt.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Do sends one request with retries and returns the decompressed body.
// Requests with a body must pass it as bytes so retries can replay it.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, header http.Header) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryDelay
	bo.MaxInterval = c.cfg.RetryMaxDelay
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.cfg.RetryAttempts)), ctx)

	var out []byte
	op := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Accept-Encoding", acceptEncoding)

		resp, err := c.base.Do(req)
		if err != nil {
			c.log.Debug("request failed", slog.String("url", url), slog.String("error", err.Error()))
			return err
		}
		defer resp.Body.Close()

		data, err := readBody(resp)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := fmt.Errorf("%w: %s %s -> %d", ErrStatus, method, url, resp.StatusCode)
			if retryableStatus(resp.StatusCode) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = data
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return out, nil
}

// readBody drains a response, undoing any content encoding.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case "deflate":
		fr := flate.NewReader(resp.Body)
		defer fr.Close()
		r = fr
	case "br":
		r = brotli.NewReader(resp.Body)
	}
	return io.ReadAll(r)
}

// GetJSON fetches a URL and unmarshals the response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	data, err := c.Do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// PostJSON marshals in, posts it, and unmarshals the response into out when
// out is non-nil.
func (c *Client) PostJSON(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	header := http.Header{"Content-Type": []string{"application/json"}}
	data, err := c.Do(ctx, http.MethodPost, url, body, header)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
