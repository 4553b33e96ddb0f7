package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound     = errors.New("http: resource not found")
	ErrForbidden    = errors.New("http: access forbidden")
	ErrUnauthorized = errors.New("http: unauthorized")
	ErrUnknownSize  = errors.New("http: server did not report object size")
)

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 100
	MaxIdleConnsPerHost int

	// Timeout for individual requests, including reading the body.
	// Default: 5m
	Timeout time.Duration

	// RetryAttempts is the maximum number of connection-level retries.
	// Default: 5
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 30s
	RetryMaxBackoff time.Duration
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
		Timeout:             5 * time.Minute,
		RetryAttempts:       5,
		RetryBackoff:        time.Second,
		RetryMaxBackoff:     30 * time.Second,
	}
}

// ObjectInfo contains what a probe learned about a remote object.
type ObjectInfo struct {
	Size          int64
	ETag          string
	AcceptsRanges bool
}

// RangeResponse is the raw answer to a range request. The caller decides
// whether StatusCode is acceptable and must always close Body.
type RangeResponse struct {
	StatusCode    int
	Status        string
	Body          io.ReadCloser
	ContentLength int64
	ContentRange  string
	ETag          string
}

// Client is an HTTP client tuned for parallel range downloads from signed URLs.
//
// Retries here only cover failures to get any response at all (connection
// refused, reset, timeouts). Status codes are handed back to the caller.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true, // We want raw bytes for range requests
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// Probe determines the size of the object behind url.
//
// Signed URLs are usually only valid for GET, so the probe asks for the first
// byte and reads the total from Content-Range. A server that ignores ranges
// answers 200 and the Content-Length is used instead.
func (c *Client) Probe(ctx context.Context, url string) (*ObjectInfo, error) {
	resp, err := c.do(ctx, url, "bytes=0-0")
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	defer resp.Body.Close()

	info := &ObjectInfo{ETag: cleanETag(resp.Header.Get("ETag"))}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		_, _, total, err := ParseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return nil, fmt.Errorf("probe: %w", err)
		}
		if total < 0 {
			return nil, ErrUnknownSize
		}
		info.Size = total
		info.AcceptsRanges = true
	case http.StatusRequestedRangeNotSatisfiable:
		// Empty objects cannot satisfy bytes=0-0; S3 reports "bytes */0".
		total, err := parseUnsatisfiedRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return nil, fmt.Errorf("probe: %w", err)
		}
		info.Size = total
		info.AcceptsRanges = true
	case http.StatusOK:
		if resp.ContentLength < 0 {
			return nil, ErrUnknownSize
		}
		info.Size = resp.ContentLength
		info.AcceptsRanges = resp.Header.Get("Accept-Ranges") == "bytes"
	default:
		if err := checkStatusCode(resp.StatusCode); err != nil {
			return nil, fmt.Errorf("probe: %w", err)
		}
		return nil, fmt.Errorf("probe: unexpected status code: %d", resp.StatusCode)
	}

	return info, nil
}

// GetRange performs a range request for the inclusive byte interval
// [startByte, endByte], the same convention as the HTTP Range header.
func (c *Client) GetRange(ctx context.Context, url string, startByte, endByte int64) (*RangeResponse, error) {
	resp, err := c.do(ctx, url, fmt.Sprintf("bytes=%d-%d", startByte, endByte))
	if err != nil {
		return nil, err
	}

	return &RangeResponse{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
		ETag:          cleanETag(resp.Header.Get("ETag")),
	}, nil
}

// do issues a GET with the given Range header, retrying transport failures.
func (c *Client) do(ctx context.Context, url, rangeHeader string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if rangeHeader != "" {
			req.Header.Set("Range", rangeHeader)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	backoff := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.RetryMaxBackoff {
		backoff = c.opts.RetryMaxBackoff
	}

	// Add jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}

// cleanETag removes quotes from an ETag value.
func cleanETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	etag = strings.Trim(etag, `"`)
	return etag
}

// ParseContentRange parses a Content-Range header value.
// Returns start, end, total bytes. Total may be -1 if unknown.
func ParseContentRange(header string) (start, end, total int64, err error) {
	// Format: bytes start-end/total or bytes start-end/*
	header = strings.TrimPrefix(header, "bytes ")
	parts := strings.Split(header, "/")
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	rangeParts := strings.Split(parts[0], "-")
	if len(rangeParts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	start, err = strconv.ParseInt(rangeParts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}

	end, err = strconv.ParseInt(rangeParts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}

	if parts[1] == "*" {
		total = -1
	} else {
		total, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
		}
	}

	return start, end, total, nil
}

// parseUnsatisfiedRange parses the "bytes */total" form sent with a 416.
func parseUnsatisfiedRange(header string) (int64, error) {
	rest, ok := strings.CutPrefix(header, "bytes */")
	if !ok {
		return 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}
	total, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid total bytes: %w", err)
	}
	return total, nil
}
