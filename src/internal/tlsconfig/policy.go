// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tlsconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/H0llyW00dzZ/verial-resilience/src/logger"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
)

// Record is the config record holding the persisted policy.
const Record = "ssl_config"

// ErrNoStore is returned by Save when the manager was built without a config store.
var ErrNoStore = errors.New("tlsconfig: no config store")

// DefaultVerifyDepth is the maximum number of intermediates accepted above the leaf.
const DefaultVerifyDepth = 5

// Policy is the TLS policy record.
type Policy struct {
	VerifyPeer      bool   `json:"verify_peer" yaml:"verify_peer"`
	VerifyPeerName  bool   `json:"verify_peer_name" yaml:"verify_peer_name"`
	AllowSelfSigned bool   `json:"allow_self_signed" yaml:"allow_self_signed"`
	VerifyDepth     int    `json:"verify_depth" yaml:"verify_depth"`
	CipherList      string `json:"cipher_list" yaml:"cipher_list"`
	SSLVersion      string `json:"ssl_version" yaml:"ssl_version"`
	CABundlePath    string `json:"ca_bundle_path" yaml:"ca_bundle_path"`
	ClientCertPath  string `json:"client_cert_path" yaml:"client_cert_path"`
	ClientKeyPath   string `json:"client_key_path" yaml:"client_key_path"`
	DisableSSLLocal bool   `json:"disable_ssl_local" yaml:"disable_ssl_local"`
	DebugSSL        bool   `json:"debug_ssl" yaml:"debug_ssl"`
	Proxy           string `json:"proxy" yaml:"proxy"`
	RevocationCheck bool   `json:"revocation_check" yaml:"revocation_check"`
}

// DefaultPolicy returns the built-in policy: full verification, no
// client certificate, system cipher and version selection.
func DefaultPolicy() Policy {
	return Policy{
		VerifyPeer:     true,
		VerifyPeerName: true,
		VerifyDepth:    DefaultVerifyDepth,
	}
}

// DefaultCandidates returns the ordered CA bundle probe list. Relative entries
// are resolved against baseDir.
func DefaultCandidates(baseDir string) []string {
	if baseDir == "" {
		baseDir = "."
	}
	return []string{
		filepath.Join(baseDir, "certs", "ca-bundle.pem"),
		filepath.Join(baseDir, "certs", "cacert.pem"),
		"/etc/ssl/certs/ca-certificates.crt",
		"/etc/pki/tls/certs/ca-bundle.crt",
		"/etc/ssl/ca-bundle.pem",
		"/etc/pki/tls/cacert.pem",
		"/etc/pki/ca-trust/extracted/pem/tls-ca-bundle.pem",
		"/usr/local/etc/openssl/cert.pem",
		"/etc/ssl/cert.pem",
	}
}

// DetectCABundle returns the first candidate that is an existing, readable
// regular file, or "" when none is.
func DetectCABundle(candidates []string) string {
	for _, p := range candidates {
		if readable(p) {
			return p
		}
	}
	return ""
}

func readable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Manager holds the active TLS policy.
//
// Manager is safe for concurrent use by multiple goroutines.
type Manager struct {
	store      storage.ConfigStore
	log        logger.Logger
	candidates []string
	overrides  []func(*Policy)
	transcript *Transcript

	mu     sync.RWMutex
	policy Policy
}

// Option configures a [Manager].
type Option func(*Manager)

// WithOverride applies fn after the persisted record is loaded.
func WithOverride(fn func(*Policy)) Option {
	return func(m *Manager) { m.overrides = append(m.overrides, fn) }
}

// WithCandidates replaces the CA bundle probe list.
func WithCandidates(paths []string) Option {
	return func(m *Manager) { m.candidates = paths }
}

// WithBaseDir sets the directory the application relative probe entries live under.
func WithBaseDir(dir string) Option {
	return func(m *Manager) { m.candidates = DefaultCandidates(dir) }
}

// New builds a manager whose policy is defaults, then the [Record] in store,
// then every [WithOverride] in order.
//
// If the merged policy names no CA bundle, one is detected from the probe list.
// A store read failure is logged and the defaults are kept.
//
// Parameters:
//   - ctx: Context for the store read
//   - store: Config store holding [Record]; may be nil
//   - log: Logger; nil discards
//   - opts: Options
//
// Returns:
//   - *Manager: Ready manager
func New(ctx context.Context, store storage.ConfigStore, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		log:        logger.OrNop(log),
		candidates: DefaultCandidates(""),
		transcript: &Transcript{},
		policy:     DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if store != nil {
		p := m.policy
		found, err := store.Get(ctx, Record, &p)
		switch {
		case err != nil:
			m.log.Warnf("tlsconfig: load %s: %v", Record, err)
		case found:
			m.policy = p
		}
	}

	for _, fn := range m.overrides {
		fn(&m.policy)
	}

	if m.policy.CABundlePath == "" {
		m.policy.CABundlePath = DetectCABundle(m.candidates)
		if m.policy.CABundlePath != "" {
			m.log.Debugf("tlsconfig: detected CA bundle %s", m.policy.CABundlePath)
		}
	}
	return m
}

// Policy returns a copy of the active policy.
func (m *Manager) Policy() Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy
}

// Update mutates the active policy in place. Call [Manager.Save] to persist it.
func (m *Manager) Update(fn func(*Policy)) {
	m.mu.Lock()
	fn(&m.policy)
	m.mu.Unlock()
}

// Save persists the active policy under [Record].
func (m *Manager) Save(ctx context.Context) error {
	if m.store == nil {
		return ErrNoStore
	}
	if err := m.store.Set(ctx, Record, m.Policy(), true); err != nil {
		return fmt.Errorf("tlsconfig: save %s: %w", Record, err)
	}
	return nil
}

// Transcript returns the debug transcript shared by requests rendered while
// debug_ssl is on.
func (m *Manager) Transcript() *Transcript { return m.transcript }

// ValidateCABundle reports whether path exists and is readable. Failures
// are logged at warning level.
func (m *Manager) ValidateCABundle(path string) bool {
	if path == "" {
		m.log.Warnf("tlsconfig: CA bundle path is empty")
		return false
	}
	if !readable(path) {
		m.log.Warnf("tlsconfig: CA bundle %s is missing or unreadable", path)
		return false
	}
	return true
}
