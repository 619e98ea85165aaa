// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package resilience

import (
	"net/url"
	"strings"
	"time"
)

// Seconds is a whole number of seconds as stored in the policy record.
type Seconds int

// Duration converts s to a [time.Duration].
func (s Seconds) Duration() time.Duration { return time.Duration(s) * time.Second }

// HostPolicy overrides the global policy for one host. Zero fields inherit.
type HostPolicy struct {
	Timeout          Seconds `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	ConnectTimeout   Seconds `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`
	HandshakeTimeout Seconds `json:"ssl_handshake_timeout,omitempty" yaml:"ssl_handshake_timeout,omitempty"`
	MaxRetries       *int    `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// ErrorPolicy is the retry budget for one [ErrorClass].
type ErrorPolicy struct {
	MaxRetries    int     `json:"max_retries" yaml:"max_retries"`
	BackoffFactor float64 `json:"backoff_factor" yaml:"backoff_factor"`
}

// Policy is the timeout and retry record.
type Policy struct {
	DefaultTimeout   Seconds                    `json:"default_timeout" yaml:"default_timeout"`
	ConnectTimeout   Seconds                    `json:"connect_timeout" yaml:"connect_timeout"`
	HandshakeTimeout Seconds                    `json:"ssl_handshake_timeout" yaml:"ssl_handshake_timeout"`
	MaxRetries       int                        `json:"max_retries" yaml:"max_retries"`
	BackoffFactor    float64                    `json:"backoff_factor" yaml:"backoff_factor"`
	Jitter           float64                    `json:"jitter" yaml:"jitter"`
	Hosts            map[string]HostPolicy      `json:"host_overrides" yaml:"host_overrides"`
	Methods          map[string]Seconds         `json:"method_overrides" yaml:"method_overrides"`
	ErrorPolicies    map[ErrorClass]ErrorPolicy `json:"error_policies" yaml:"error_policies"`
}

// DefaultPolicy returns the built-in timeout and retry policy.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTimeout:   30,
		ConnectTimeout:   10,
		HandshakeTimeout: 15,
		MaxRetries:       3,
		BackoffFactor:    2.0,
		Jitter:           0.1,
		Hosts:            map[string]HostPolicy{},
		Methods:          map[string]Seconds{},
		ErrorPolicies: map[ErrorClass]ErrorPolicy{
			ConnectionTimeout: {MaxRetries: 5, BackoffFactor: 1.5},
			SSLError:          {MaxRetries: 4, BackoffFactor: 2.0},
			ServerError:       {MaxRetries: 3, BackoffFactor: 2.0},
			ClientError:       {MaxRetries: 1, BackoffFactor: 1.0},
		},
	}
}

// clone returns a deep copy of p.
func (p Policy) clone() Policy {
	c := p
	c.Hosts = make(map[string]HostPolicy, len(p.Hosts))
	for k, v := range p.Hosts {
		if v.MaxRetries != nil {
			n := *v.MaxRetries
			v.MaxRetries = &n
		}
		c.Hosts[k] = v
	}
	c.Methods = make(map[string]Seconds, len(p.Methods))
	for k, v := range p.Methods {
		c.Methods[k] = v
	}
	c.ErrorPolicies = make(map[ErrorClass]ErrorPolicy, len(p.ErrorPolicies))
	for k, v := range p.ErrorPolicies {
		c.ErrorPolicies[k] = v
	}
	return c
}

// TimeoutConfig is the resolved timeout set for one request.
type TimeoutConfig struct {
	Timeout          time.Duration `json:"timeout"`
	ConnectTimeout   time.Duration `json:"connect_timeout"`
	HandshakeTimeout time.Duration `json:"ssl_handshake_timeout"`
	MaxRetries       int           `json:"max_retries"`
}

// resolve applies the merge order: global defaults, then the method
// timeout, then the host override. A host timeout therefore wins over a
// method timeout.
func (p Policy) resolve(rawURL, method string) TimeoutConfig {
	cfg := TimeoutConfig{
		Timeout:          p.DefaultTimeout.Duration(),
		ConnectTimeout:   p.ConnectTimeout.Duration(),
		HandshakeTimeout: p.HandshakeTimeout.Duration(),
		MaxRetries:       p.MaxRetries,
	}

	if method != "" {
		if s, ok := p.Methods[strings.ToUpper(method)]; ok && s > 0 {
			cfg.Timeout = s.Duration()
		}
	}

	if hp, ok := p.Hosts[HostOf(rawURL)]; ok {
		if hp.Timeout > 0 {
			cfg.Timeout = hp.Timeout.Duration()
		}
		if hp.ConnectTimeout > 0 {
			cfg.ConnectTimeout = hp.ConnectTimeout.Duration()
		}
		if hp.HandshakeTimeout > 0 {
			cfg.HandshakeTimeout = hp.HandshakeTimeout.Duration()
		}
		if hp.MaxRetries != nil {
			cfg.MaxRetries = *hp.MaxRetries
		}
	}
	return cfg
}

func (p Policy) errorPolicy(class ErrorClass) ErrorPolicy {
	if ep, ok := p.ErrorPolicies[class]; ok {
		return ep
	}
	return ErrorPolicy{MaxRetries: p.MaxRetries, BackoffFactor: p.BackoffFactor}
}

// HostOf returns the lower-cased hostname of rawURL, or "" when it has none.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
