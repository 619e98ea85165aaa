// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package erpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpcache"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpclient"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/resilience"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/tlsconfig"
	"github.com/H0llyW00dzZ/verial-resilience/src/logger"
	"github.com/H0llyW00dzZ/verial-resilience/src/version"
)

// ErrNoBaseURL is returned by [Client.Get] when no API base URL is configured.
var ErrNoBaseURL = errors.New("erpclient: API base URL not configured")

// Result is the outcome of [Client.Get].
type Result struct {
	URL        string
	Body       []byte
	StatusCode int
	Cached     bool
}

// Client is the ERP API client.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL string
	cache   *httpcache.Manager
	ssl     *tlsconfig.Manager
	retry   *resilience.Manager
	log     logger.Logger
	version string
	isLocal bool

	mu      sync.Mutex
	clients map[uint64]*httpclient.Config
	watch   *watcher
}

// Option configures a [Client].
type Option func(*Client)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = logger.OrNop(l) }
}

// WithLocalEnvironment marks the process as a local development install,
// enabling the policy's disable_ssl_local switch.
func WithLocalEnvironment(local bool) Option {
	return func(c *Client) { c.isLocal = local }
}

// WithVersion sets the version reported in the User-Agent.
func WithVersion(v string) Option {
	return func(c *Client) { c.version = v }
}

// New creates a client for the API rooted at baseURL. cache may be nil to
// disable response caching.
func New(baseURL string, cache *httpcache.Manager, ssl *tlsconfig.Manager, retry *resilience.Manager, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   cache,
		ssl:     ssl,
		retry:   retry,
		log:     logger.Nop(),
		version: version.Version,
		clients: make(map[uint64]*httpclient.Config),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL builds the request URL for endpoint with params as the query string.
// Parameter names are sorted.
func (c *Client) URL(endpoint string, params map[string]any) (string, error) {
	if c.baseURL == "" {
		return "", ErrNoBaseURL
	}
	u, err := url.Parse(c.baseURL + "/" + strings.TrimLeft(endpoint, "/"))
	if err != nil {
		return "", fmt.Errorf("erpclient: invalid endpoint %q: %w", endpoint, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for _, k := range slices.Sorted(maps.Keys(params)) {
			q.Set(k, fmt.Sprint(params[k]))
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Get fetches endpoint with params, serving from and filling the response
// cache under group.
//
// Parameters:
//   - ctx: Context for the whole operation including retries
//   - endpoint: Path relative to the base URL
//   - params: Query parameters; also part of the cache key
//   - group: Cache group of the response
//
// Returns:
//   - *Result: The response; Cached is set when it came from the cache
//   - error: Configuration, transport or final status failure. The last
//     response, if any, is returned alongside the error.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]any, group httpcache.Group) (*Result, error) {
	rawURL, err := c.URL(endpoint, params)
	if err != nil {
		return nil, err
	}

	id := httpcache.RequestIdentity{URL: rawURL, Args: params}
	if c.cache != nil {
		if body, ok := c.cache.Get(ctx, id, group); ok {
			return &Result{URL: rawURL, Body: body, StatusCode: http.StatusOK, Cached: true}, nil
		}
	}

	hc, err := c.client(c.Options(rawURL, http.MethodGet))
	if err != nil {
		return nil, err
	}

	resp, err := c.retry.Execute(ctx, func(ctx context.Context) (*httpclient.Response, error) {
		return hc.Get(ctx, rawURL)
	}, rawURL, http.MethodGet)

	var res *Result
	if resp != nil {
		res = &Result{URL: rawURL, Body: resp.Body, StatusCode: resp.StatusCode}
	}
	if err != nil {
		return res, fmt.Errorf("erpclient: GET %s: %w", endpoint, err)
	}

	if c.cache != nil && resp.OK() {
		c.cache.Set(ctx, id, resp.Body, group, 0)
	}
	return res, nil
}

// Options renders the request options for one request: resolved timeouts
// first, then the TLS policy.
func (c *Client) Options(rawURL, method string) tlsconfig.RequestOptions {
	tc := c.retry.GetTimeoutConfig(rawURL, method)
	opts := tlsconfig.RequestOptions{
		Timeout:          tc.Timeout,
		ConnectTimeout:   tc.ConnectTimeout,
		HandshakeTimeout: tc.HandshakeTimeout,
	}
	return c.ssl.ApplyToRequestOptions(opts, c.isLocal)
}

// fingerprint identifies an option set. The transcript is not serialised, so
// its presence is mixed in separately.
func fingerprint(opts tlsconfig.RequestOptions) (uint64, error) {
	data, err := json.Marshal(opts)
	if err != nil {
		return 0, err
	}
	h := xxhash.New()
	_, _ = h.Write(data)
	if opts.Transcript != nil {
		_, _ = h.WriteString("+transcript")
	}
	return h.Sum64(), nil
}

// client returns the kept HTTP client for opts, building it on first use.
func (c *Client) client(opts tlsconfig.RequestOptions) (*httpclient.Config, error) {
	key, err := fingerprint(opts)
	if err != nil {
		return nil, fmt.Errorf("erpclient: fingerprint options: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if hc, ok := c.clients[key]; ok {
		return hc, nil
	}

	built, err := tlsconfig.Client(opts)
	if err != nil {
		return nil, fmt.Errorf("erpclient: build client: %w", err)
	}
	hc := httpclient.New(c.version)
	hc.Timeout = opts.Timeout
	hc.Transport = built.Transport
	c.clients[key] = hc
	c.log.Debugf("erpclient: new HTTP client %016x (verify_peer=%t, ca_bundle=%q)", key, opts.VerifyPeer, opts.CABundle)
	return hc, nil
}

// Invalidate drops every kept HTTP client and closes their idle connections.
func (c *Client) Invalidate() {
	c.mu.Lock()
	old := c.clients
	c.clients = make(map[uint64]*httpclient.Config)
	c.mu.Unlock()

	for _, hc := range old {
		hc.Client().CloseIdleConnections()
	}
	if len(old) > 0 {
		c.log.Infof("erpclient: dropped %d cached HTTP client(s)", len(old))
	}
}

// CachedClients returns the number of kept HTTP clients.
func (c *Client) CachedClients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
