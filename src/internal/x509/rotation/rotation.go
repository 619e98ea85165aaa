// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package rotation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/helper/posix"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpclient"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/metrics"
	x509certs "github.com/H0llyW00dzZ/verial-resilience/src/internal/x509/certs"
	"github.com/H0llyW00dzZ/verial-resilience/src/logger"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
	"github.com/H0llyW00dzZ/verial-resilience/src/version"
)

const (
	bundleMode      = 0o644
	backupTimestamp = "20060102-150405"
	backupExt       = ".bak"
)

var (
	// ErrAllSourcesFailed is returned when no source produced an acceptable bundle.
	ErrAllSourcesFailed = errors.New("rotation: all sources failed")

	// ErrNoSources is returned when the state lists no sources.
	ErrNoSources = errors.New("rotation: no sources configured")

	// ErrUnexpectedStatus is returned for a source answering anything but 200.
	ErrUnexpectedStatus = errors.New("rotation: unexpected status")

	// ErrEmptyBody is returned for a source answering with no content.
	ErrEmptyBody = errors.New("rotation: empty response body")

	// ErrTooFewCertificates is returned for a download below the certificate floor.
	ErrTooFewCertificates = errors.New("rotation: too few certificates")
)

// Config describes the managed bundle.
type Config struct {
	BundlePath          string
	BackupDir           string // defaults to "<bundle dir>/backups"
	Interval            time.Duration
	ExpirationThreshold time.Duration
	RetentionCount      int
	MinCertificates     int
	DisableBackups      bool
}

func (c Config) withDefaults() Config {
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(filepath.Dir(c.BundlePath), "backups")
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ExpirationThreshold <= 0 {
		c.ExpirationThreshold = DefaultExpirationThreshold
	}
	if c.RetentionCount <= 0 {
		c.RetentionCount = DefaultRetentionCount
	}
	if c.MinCertificates <= 0 {
		c.MinCertificates = MinCertificates
	}
	return c
}

// Result describes one rotation call.
type Result struct {
	Rotated      bool   `json:"rotated"`
	Source       string `json:"source,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
	Certificates int    `json:"certificates,omitempty"`
	Backup       string `json:"backup,omitempty"`
	Permissions  string `json:"permissions,omitempty"`
}

// Rotator manages one bundle file.
//
// Rotations are serialized within a process. Separate processes sharing a
// bundle are not coordinated; the last writer wins and backups are the only
// safety net.
type Rotator struct {
	cfg        Config
	store      storage.ConfigStore
	http       *httpclient.Config
	log        logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	strategies []posix.PermissionStrategy
	certs      *x509certs.Certificate

	rotating sync.Mutex
	mu       sync.RWMutex
	state    State
}

// Option configures a [Rotator].
type Option func(*Rotator)

// WithHTTPConfig replaces the HTTP configuration used for downloads.
func WithHTTPConfig(cfg *httpclient.Config) Option {
	return func(r *Rotator) { r.http = cfg }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Rotator) { r.log = logger.OrNop(l) }
}

// WithMetrics records rotation outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Rotator) { r.metrics = m }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Rotator) { r.now = now }
}

// WithStrategies replaces the permission cascade applied to a new bundle.
func WithStrategies(s ...posix.PermissionStrategy) Option {
	return func(r *Rotator) { r.strategies = s }
}

// WithSources replaces the sources of the loaded state.
func WithSources(sources map[string]Source) Option {
	return func(r *Rotator) { r.state.Sources = sources }
}

// New loads the rotation state from store, which may be nil.
//
// A missing record yields the default sources and the configured retention.
// Options run after the record is loaded.
func New(ctx context.Context, store storage.ConfigStore, cfg Config, opts ...Option) *Rotator {
	cfg = cfg.withDefaults()

	httpCfg := httpclient.New(version.Version)
	httpCfg.Timeout = FetchTimeout

	r := &Rotator{
		cfg:        cfg,
		store:      store,
		http:       httpCfg,
		log:        logger.Nop(),
		now:        time.Now,
		strategies: posix.DefaultStrategies(),
		certs:      x509certs.New(),
	}

	var (
		st      State
		loadErr error
	)
	if store != nil {
		_, loadErr = store.Get(ctx, Record, &st)
	}
	if len(st.Sources) == 0 {
		st.Sources = DefaultSources()
	}
	if st.RetentionCount <= 0 {
		st.RetentionCount = cfg.RetentionCount
	}
	r.state = st

	for _, opt := range opts {
		opt(r)
	}
	if loadErr != nil {
		r.log.Warnf("rotation: load %s: %v", Record, loadErr)
	}
	return r
}

// Config returns the effective configuration.
func (r *Rotator) Config() Config { return r.cfg }

// State returns a copy of the rotation state.
func (r *Rotator) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.clone()
}

// NeedsRotation reports whether the bundle is due.
func (r *Rotator) NeedsRotation() bool {
	due, _ := r.Due()
	return due
}

// Due reports whether the bundle is due and why.
//
// Only root-like certificates (subject CN equal to issuer CN) are checked
// for expiry, so intermediate turnover does not trigger rotation.
func (r *Rotator) Due() (bool, string) {
	st := r.State()
	now := r.now()

	if st.LastRotation.IsZero() {
		return true, "never rotated"
	}
	if now.Sub(st.LastRotation) >= r.cfg.Interval {
		return true, fmt.Sprintf("last rotated %s ago", now.Sub(st.LastRotation).Round(time.Hour))
	}

	data, err := os.ReadFile(r.cfg.BundlePath)
	if err != nil {
		return true, "bundle missing or unreadable"
	}
	certs, err := r.certs.DecodeBundle(data)
	if err != nil {
		return true, "bundle holds no parseable certificate"
	}
	if expiring := x509certs.ExpiringRoots(certs, now, r.cfg.ExpirationThreshold); len(expiring) > 0 {
		c := expiring[0]
		return true, fmt.Sprintf("root %q expires %s", c.Subject.CommonName, c.NotAfter.UTC().Format(time.DateOnly))
	}
	return false, ""
}

// Rotate replaces the bundle from the first source that yields an
// acceptable download.
//
// Unless force is set, a bundle that is not due is left alone and the call
// succeeds with Rotated false. Sources are tried in ascending priority; a
// source fails on a transport error, a status other than 200, an empty body,
// or fewer than the configured minimum of certificates. The accepted download
// is reformatted, prefixed with a provenance header and written atomically.
// The previous bundle is backed up first and backups beyond the retention
// count are pruned, oldest first. When every source fails the bundle and
// state are left untouched.
//
// Parameters:
//   - ctx: Context for downloads and permission commands
//   - force: Rotate even when not due
//
// Returns:
//   - Result: What happened
//   - error: [ErrAllSourcesFailed] wrapping the last source error, or a write error
func (r *Rotator) Rotate(ctx context.Context, force bool) (Result, error) {
	r.rotating.Lock()
	defer r.rotating.Unlock()

	if due, reason := r.Due(); !force && !due {
		r.metrics.Rotation("skipped")
		return Result{}, nil
	} else if due {
		r.log.Infof("rotation: %s is due: %s", r.cfg.BundlePath, reason)
	}

	sources := r.State().ranked()
	if len(sources) == 0 {
		r.metrics.Rotation("failure")
		return Result{}, ErrNoSources
	}

	var (
		src     RankedSource
		content []byte
		lastErr error
	)
	for _, s := range sources {
		data, err := r.fetch(ctx, s.URL)
		if err != nil {
			r.log.Warnf("rotation: source %s (%s) rejected: %v", s.ID, s.URL, err)
			lastErr = err
			continue
		}
		src, content = s, data
		break
	}
	if content == nil {
		r.metrics.Rotation("failure")
		r.log.Errorf("rotation: every source failed, keeping %s", r.cfg.BundlePath)
		return Result{}, fmt.Errorf("%w: %w", ErrAllSourcesFailed, lastErr)
	}

	now := r.now()
	res := Result{Rotated: true, Source: src.Name, SourceURL: src.URL, Certificates: x509certs.CountPEMCertificates(content)}

	if !r.cfg.DisableBackups {
		backup, err := r.backup(now)
		if err != nil {
			r.log.Warnf("rotation: %v", err)
		}
		res.Backup = backup
	}

	if err := posix.WriteFileAtomic(r.cfg.BundlePath, r.render(src, content, now, res.Certificates), bundleMode); err != nil {
		r.metrics.Rotation("failure")
		return Result{}, fmt.Errorf("rotation: write bundle: %w", err)
	}

	applied, err := posix.ApplyMode(ctx, r.cfg.BundlePath, bundleMode, r.strategies...)
	if err != nil {
		r.log.Warnf("rotation: set permissions on %s: %v", r.cfg.BundlePath, err)
	} else {
		r.log.Debugf("rotation: permissions set with %s", applied)
	}
	res.Permissions = applied

	r.mu.Lock()
	r.state.LastRotation = now
	st := r.state.clone()
	r.mu.Unlock()
	if r.store != nil {
		if err := r.store.Set(ctx, Record, st, true); err != nil {
			r.log.Warnf("rotation: save %s: %v", Record, err)
		}
	}

	r.prune(st.RetentionCount)
	r.metrics.Rotation("success")
	r.log.Infof("rotation: %s updated from %s with %d certificates", r.cfg.BundlePath, src.Name, res.Certificates)
	return res, nil
}

// fetch downloads a source and returns its certificates in canonical form.
func (r *Rotator) fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	resp, err := r.http.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if len(resp.Body) == 0 {
		return nil, ErrEmptyBody
	}
	if n := x509certs.CountPEMCertificates(resp.Body); n < r.cfg.MinCertificates {
		return nil, fmt.Errorf("%w: %d < %d", ErrTooFewCertificates, n, r.cfg.MinCertificates)
	}

	formatted := x509certs.FormatBundle(resp.Body)
	if n := x509certs.CountPEMCertificates(formatted); n < r.cfg.MinCertificates {
		return nil, fmt.Errorf("%w: %d decodable < %d", ErrTooFewCertificates, n, r.cfg.MinCertificates)
	}
	return formatted, nil
}

func (r *Rotator) render(src RankedSource, content []byte, at time.Time, count int) []byte {
	var b strings.Builder
	b.WriteString("##\n")
	b.WriteString("## CA certificate bundle\n")
	fmt.Fprintf(&b, "## Source: %s (%s)\n", src.Name, src.URL)
	fmt.Fprintf(&b, "## Retrieved: %s\n", at.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "## Certificates: %d\n", count)
	b.WriteString("##\n\n")
	b.Write(content)
	return []byte(b.String())
}

func (r *Rotator) backupPrefix() string {
	return filepath.Join(r.cfg.BackupDir, filepath.Base(r.cfg.BundlePath)+".")
}

// backup copies the current bundle, if any, into the backup directory.
func (r *Rotator) backup(at time.Time) (string, error) {
	data, err := os.ReadFile(r.cfg.BundlePath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read bundle for backup: %w", err)
	}
	path := r.backupPrefix() + at.UTC().Format(backupTimestamp) + backupExt
	if err := posix.WriteFileAtomic(path, data, bundleMode); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return path, nil
}

// Backup is one retained copy of a previous bundle.
type Backup struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
}

// Backups lists retained backups, oldest first.
func (r *Rotator) Backups() ([]Backup, error) {
	matches, err := filepath.Glob(r.backupPrefix() + "*" + backupExt)
	if err != nil {
		return nil, fmt.Errorf("rotation: list backups: %w", err)
	}
	sort.Strings(matches)

	backups := make([]Backup, 0, len(matches))
	prefix := r.backupPrefix()
	for _, p := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(p, prefix), backupExt)
		created, err := time.Parse(backupTimestamp, stamp)
		if err != nil {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		backups = append(backups, Backup{Path: p, Size: info.Size(), Created: created})
	}
	return backups, nil
}

func (r *Rotator) prune(keep int) {
	backups, err := r.Backups()
	if err != nil {
		r.log.Warnf("%v", err)
		return
	}
	for len(backups) > keep {
		if err := os.Remove(backups[0].Path); err != nil {
			r.log.Warnf("rotation: remove backup %s: %v", backups[0].Path, err)
		}
		backups = backups[1:]
	}
}

// Status is a read-only view of the rotation state.
type Status struct {
	BundlePath    string         `json:"bundle_path"`
	LastRotation  *time.Time     `json:"last_rotation"`
	NextRotation  *time.Time     `json:"next_rotation"`
	NeedsRotation bool           `json:"needs_rotation"`
	Reason        string         `json:"reason,omitempty"`
	Sources       []RankedSource `json:"sources"`
	Backups       []Backup       `json:"backups"`
}

// Status reports the bundle's rotation state without changing it.
func (r *Rotator) Status() (Status, error) {
	st := r.State()
	due, reason := r.Due()

	s := Status{
		BundlePath:    r.cfg.BundlePath,
		NeedsRotation: due,
		Reason:        reason,
		Sources:       st.ranked(),
	}
	if !st.LastRotation.IsZero() {
		last := st.LastRotation
		next := last.Add(r.cfg.Interval)
		s.LastRotation, s.NextRotation = &last, &next
	}

	backups, err := r.Backups()
	if err != nil {
		return s, err
	}
	s.Backups = backups
	return s, nil
}
