// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tlsconfig

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/helper/gc"
)

// Transport builds an HTTP transport for opts: TLS settings from [TLSConfig],
// connect and handshake timeouts, and the proxy (environment proxy when unset).
func Transport(opts RequestOptions) (*http.Transport, error) {
	tlsCfg, err := TLSConfig(opts)
	if err != nil {
		return nil, err
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = tlsCfg

	if opts.ConnectTimeout > 0 {
		t.DialContext = (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
	}
	if opts.HandshakeTimeout > 0 {
		t.TLSHandshakeTimeout = opts.HandshakeTimeout
	}

	if opts.Proxy != "" {
		u, err := url.Parse(opts.Proxy)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("tlsconfig: invalid proxy %q", opts.Proxy)
		}
		t.Proxy = http.ProxyURL(u)
	}
	return t, nil
}

// Client builds an HTTP client for opts. The client timeout is opts.Timeout;
// when a transcript is attached every request records its connection events.
func Client(opts RequestOptions) (*http.Client, error) {
	t, err := Transport(opts)
	if err != nil {
		return nil, err
	}
	var rt http.RoundTripper = t
	if opts.Transcript != nil {
		rt = &tracingTransport{base: t, transcript: opts.Transcript}
	}
	return &http.Client{Timeout: opts.Timeout, Transport: rt}, nil
}

// Transcript collects a verbose connection log while debug_ssl is on.
//
// Transcript is safe for concurrent use by multiple goroutines.
type Transcript struct {
	mu  sync.Mutex
	buf gc.Buffer
}

// Printf appends one line.
func (t *Transcript) Printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.buf == nil {
		t.buf = gc.Default.Get()
	}
	fmt.Fprintf(t.buf, "* "+format+"\n", args...)
}

// String returns the collected log.
func (t *Transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.buf == nil {
		return ""
	}
	return t.buf.String()
}

// Reset discards the collected log and returns the buffer to the pool.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.buf != nil {
		gc.Default.Put(t.buf)
		t.buf = nil
	}
}

type tracingTransport struct {
	base       http.RoundTripper
	transcript *Transcript
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tr := t.transcript
	start := time.Now()
	tr.Printf("%s %s", req.Method, req.URL.Redacted())

	trace := &httptrace.ClientTrace{
		DNSDone: func(info httptrace.DNSDoneInfo) {
			if info.Err != nil {
				tr.Printf("DNS lookup failed: %v", info.Err)
				return
			}
			tr.Printf("DNS resolved %d address(es)", len(info.Addrs))
		},
		ConnectDone: func(network, addr string, err error) {
			if err != nil {
				tr.Printf("connect %s %s failed: %v", network, addr, err)
				return
			}
			tr.Printf("connected to %s (%s)", addr, network)
		},
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				tr.Printf("reusing connection to %s", info.Conn.RemoteAddr())
			}
		},
		TLSHandshakeStart: func() { tr.Printf("TLS handshake started") },
		TLSHandshakeDone: func(cs tls.ConnectionState, err error) {
			if err != nil {
				tr.Printf("TLS handshake failed: %v", err)
				return
			}
			tr.Printf("TLS handshake done: %s, %s, server name %q",
				tls.VersionName(cs.Version), tls.CipherSuiteName(cs.CipherSuite), cs.ServerName)
			for i, c := range cs.PeerCertificates {
				tr.Printf("  cert %d: subject %q issuer %q expires %s",
					i, c.Subject.CommonName, c.Issuer.CommonName, c.NotAfter.UTC().Format(time.RFC3339))
			}
		},
		GotFirstResponseByte: func() {
			tr.Printf("first response byte after %s", time.Since(start).Round(time.Millisecond))
		},
	}

	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		tr.Printf("request failed: %v", err)
		return nil, err
	}
	tr.Printf("HTTP %d in %s", resp.StatusCode, time.Since(start).Round(time.Millisecond))
	return resp, nil
}
