// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package httpcache

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"
	"time"
)

// HeaderCache is set on responses passing through a [Transport] to HIT or MISS.
const HeaderCache = "X-Verial-Cache"

// GroupFunc chooses the cache group of a request.
type GroupFunc func(r *http.Request) Group

// Transport is an [http.RoundTripper] that serves GET requests from a
// [Manager] and stores successful responses in it.
//
// Responses marked Cache-Control no-store are never stored; a max-age
// directive overrides the group TTL. Cache failures never fail the request.
type Transport struct {
	Manager *Manager
	Wrapped http.RoundTripper
	Group   GroupFunc // GroupGlobal when nil
}

func (t *Transport) wrapped() http.RoundTripper {
	if t.Wrapped != nil {
		return t.Wrapped
	}
	return http.DefaultTransport
}

func (t *Transport) group(r *http.Request) Group {
	if t.Group != nil {
		return t.Group(r)
	}
	return GroupGlobal
}

// IdentityFromRequest builds the request identity from the URL without its
// query string and the query parameters as arguments.
func IdentityFromRequest(r *http.Request) RequestIdentity {
	u := *r.URL
	u.RawQuery = ""
	u.Fragment = ""

	args := make(map[string]any)
	for k, v := range r.URL.Query() {
		if len(v) == 1 {
			args[k] = v[0]
		} else {
			args[k] = v
		}
	}
	return RequestIdentity{URL: u.String(), Args: args}
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Method != http.MethodGet || t.Manager == nil || !t.Manager.Enabled() {
		return t.wrapped().RoundTrip(r)
	}

	ctx := r.Context()
	id := IdentityFromRequest(r)
	g := t.group(r)

	if res := t.Manager.Lookup(ctx, id, g); res.Hit {
		resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(res.Payload)), r)
		if err == nil {
			resp.Header.Set(HeaderCache, "HIT")
			return resp, nil
		}
		t.Manager.log.Warnf("httpcache: corrupt cached response for %s: %v", id.URL, err)
	}

	resp, err := t.wrapped().RoundTrip(r)
	if err != nil {
		return resp, err
	}
	resp.Header.Set(HeaderCache, "MISS")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	ttl, cacheable := cacheTTL(resp.Header.Get("Cache-Control"))
	if !cacheable {
		return resp, nil
	}

	dump, dumpErr := httputil.DumpResponse(resp, true)
	if dumpErr != nil {
		t.Manager.log.Warnf("httpcache: dump response for %s: %v", id.URL, dumpErr)
		return resp, nil
	}
	t.Manager.Set(ctx, id, dump, g, ttl)
	return resp, nil
}

// cacheTTL reads a Cache-Control header. It returns false for no-store and
// the max-age duration when present, zero otherwise.
func cacheTTL(header string) (time.Duration, bool) {
	var ttl time.Duration
	for directive := range strings.SplitSeq(header, ",") {
		directive = strings.ToLower(strings.TrimSpace(directive))
		switch {
		case directive == "no-store":
			return 0, false
		case strings.HasPrefix(directive, "max-age="):
			secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
			if err != nil {
				continue
			}
			if secs <= 0 {
				return 0, false
			}
			ttl = time.Duration(secs) * time.Second
		}
	}
	return ttl, true
}
