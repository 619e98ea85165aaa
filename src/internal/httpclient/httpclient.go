// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package httpclient provides the shared outbound HTTP configuration used for
// certificate downloads, CA bundle rotation and ERP API calls.
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/helper/gc"
)

// DefaultMaxBodyBytes bounds how much of a response body is read into memory.
const DefaultMaxBodyBytes = 32 << 20

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Config holds HTTP client configuration for outbound requests.
type Config struct {
	Timeout      time.Duration     // HTTP request timeout
	Version      string            // Application version for User-Agent
	UserAgent    string            // Custom User-Agent string, if empty will be constructed from Version
	TLS          *tls.Config       // Optional TLS configuration for the default transport
	Transport    http.RoundTripper // Optional transport, takes precedence over TLS
	MaxBodyBytes int64             // Response body read limit, DefaultMaxBodyBytes when zero

	mu     sync.Mutex
	client *http.Client
}

// New creates a new HTTP configuration with default values.
//
// It initializes the configuration with a default timeout of 15 seconds
// and the provided application version.
//
// Parameters:
//   - version: Application version string
//
// Returns:
//   - *Config: New HTTP configuration
func New(version string) *Config {
	return &Config{
		Timeout: 15 * time.Second,
		Version: version,
	}
}

// GetUserAgent returns the User-Agent string, constructing it if not set.
//
// Returns:
//   - string: User-Agent string
func (c *Config) GetUserAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return fmt.Sprintf("verial-resilience/%s (+https://github.com/H0llyW00dzZ/verial-resilience)", c.Version)
}

// Client returns an HTTP client configured with the current timeout and transport.
//
// It creates or reuses an http.Client, ensuring it uses the configured timeout.
//
// Returns:
//   - *http.Client: Configured HTTP client
//
// Thread Safety: Safe for concurrent use.
func (c *Config) Client() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		c.client = &http.Client{Timeout: c.Timeout, Transport: c.transport()}
		return c.client
	}

	if c.client.Timeout != c.Timeout {
		c.client.Timeout = c.Timeout
	}

	return c.client
}

func (c *Config) transport() http.RoundTripper {
	if c.Transport != nil {
		return c.Transport
	}
	if c.TLS == nil {
		return nil
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = c.TLS
	return t
}

// Get issues a GET request to url and reads the whole body.
//
// Non-2xx responses are not errors; callers inspect [Response.StatusCode].
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - url: Absolute request URL
//
// Returns:
//   - *Response: Fully read response
//   - error: Transport error or body read failure
//
// Thread Safety: Safe for concurrent use.
func (c *Config) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Do sends req with the configured User-Agent and reads the whole body.
func (c *Config) Do(req *http.Request) (*Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.GetUserAgent())
	}

	resp, err := c.Client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}

	body, err := gc.ReadAll(resp.Body, limit)
	if err != nil {
		return nil, err
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
