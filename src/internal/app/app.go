// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package app assembles the stores, managers and clients described by a
// [config.Config].
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/config"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/diagnostics"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/erpclient"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/httpcache"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/metrics"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/resilience"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/tlsconfig"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/x509/bundlecache"
	"github.com/H0llyW00dzZ/verial-resilience/src/internal/x509/rotation"
	"github.com/H0llyW00dzZ/verial-resilience/src/logger"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage"
	dynamostore "github.com/H0llyW00dzZ/verial-resilience/src/storage/dynamodb"
	filestore "github.com/H0llyW00dzZ/verial-resilience/src/storage/file"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage/memory"
	"github.com/H0llyW00dzZ/verial-resilience/src/storage/postgres"
	redisstore "github.com/H0llyW00dzZ/verial-resilience/src/storage/redis"
	"github.com/H0llyW00dzZ/verial-resilience/src/version"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Log      logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	KV      storage.KeyValueStore
	Configs storage.ConfigStore

	Cache    *httpcache.Manager
	Certs    *bundlecache.Cache
	SSL      *tlsconfig.Manager
	Timeouts *resilience.Manager
	Rotator  *rotation.Rotator
	ERP      *erpclient.Client

	now     func() time.Time
	closers []func() error
}

// Option configures [New].
type Option func(*options)

type options struct {
	log         logger.Logger
	logOutput   io.Writer
	dynamo      dynamostore.API
	kv          storage.KeyValueStore
	configs     storage.ConfigStore
	rotatorOpts []rotation.Option
	now         func() time.Time
}

// WithLogger replaces the logger selected from the log section.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithLogOutput sets the writer of the selected logger. The default is stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithDynamoDBClient uses client instead of one built from the AWS default configuration.
func WithDynamoDBClient(client dynamostore.API) Option {
	return func(o *options) { o.dynamo = client }
}

// WithStores bypasses backend selection.
func WithStores(kv storage.KeyValueStore, configs storage.ConfigStore) Option {
	return func(o *options) {
		o.kv = kv
		o.configs = configs
	}
}

// WithRotationOptions passes extra options to the rotator.
func WithRotationOptions(opts ...rotation.Option) Option {
	return func(o *options) { o.rotatorOpts = append(o.rotatorOpts, opts...) }
}

// WithClock replaces the time source of the clock dependent components.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewLogger builds the logger named by cfg.
func NewLogger(cfg config.Log, w io.Writer) logger.Logger {
	level := logger.ParseLevel(cfg.Level)
	switch cfg.Format {
	case "json":
		return logger.NewJSONLogger(w, false).WithLevel(level)
	case "zap":
		return logger.NewZapLogger(w, level)
	default:
		l := logger.NewCLILogger().WithLevel(level)
		l.SetOutput(w)
		return l
	}
}

// New builds every component from cfg. Close releases the backend connections.
//
// Parameters:
//   - ctx: Context for backend setup and initial record loads
//   - cfg: Validated configuration
//   - opts: Options
//
// Returns:
//   - *App: The wired application
//   - error: Backend or certificate cache setup failure
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{logOutput: os.Stderr, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:   cfg,
		Log:      o.log,
		Registry: prometheus.NewRegistry(),
		now:      o.now,
	}
	if a.Log == nil {
		a.Log = NewLogger(cfg.Log, o.logOutput)
	}
	a.Metrics = metrics.New(a.Registry)

	if o.kv != nil && o.configs != nil {
		a.KV, a.Configs = o.kv, o.configs
	} else if err := a.openStores(ctx, o.dynamo); err != nil {
		a.Close()
		return nil, err
	}

	a.Cache = httpcache.New(ctx, a.KV, a.Configs, cacheConfig(cfg.Cache),
		httpcache.WithLogger(a.Log),
		httpcache.WithMetrics(a.Metrics),
		httpcache.WithClock(o.now),
	)

	certs, err := bundlecache.New(cfg.Certificates.CacheDir,
		bundlecache.WithTTL(time.Duration(cfg.Certificates.CacheTTLHours)*time.Hour),
		bundlecache.WithLogger(a.Log),
		bundlecache.WithMetrics(a.Metrics),
		bundlecache.WithClock(o.now),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Certs = certs

	a.SSL = tlsconfig.New(ctx, a.Configs, a.Log,
		tlsconfig.WithBaseDir(cfg.Certificates.BaseDir),
		tlsconfig.WithOverride(sslOverrides(cfg.SSL)),
	)

	tracker := resilience.NewLatencyTracker(ctx, a.Configs,
		resilience.WithThresholds(config.SecondsF(cfg.Timeouts.WarningThreshold), config.SecondsF(cfg.Timeouts.CriticalThreshold)),
		resilience.WithPersistProbability(cfg.Timeouts.PersistProbability),
		resilience.WithTrackerClock(o.now),
		resilience.WithTrackerLogger(a.Log),
		resilience.WithTrackerMetrics(a.Metrics),
	)
	a.Timeouts = resilience.New(ctx, a.Configs,
		resilience.WithLogger(a.Log),
		resilience.WithMetrics(a.Metrics),
		resilience.WithLatencyTracker(tracker),
	)

	rotOpts := append([]rotation.Option{
		rotation.WithLogger(a.Log),
		rotation.WithMetrics(a.Metrics),
		rotation.WithClock(o.now),
	}, o.rotatorOpts...)
	a.Rotator = rotation.New(ctx, a.Configs, rotation.Config{
		BundlePath:          cfg.Certificates.BundlePath,
		BackupDir:           cfg.Certificates.BackupDir,
		Interval:            config.Days(cfg.Certificates.RotationIntervalDays),
		ExpirationThreshold: config.Days(cfg.Certificates.ExpirationThresholdDays),
		RetentionCount:      cfg.Certificates.RetentionCount,
		MinCertificates:     cfg.Certificates.MinCertificates,
	}, rotOpts...)

	a.ERP = erpclient.New(cfg.API.BaseURL, a.Cache, a.SSL, a.Timeouts,
		erpclient.WithLogger(a.Log),
		erpclient.WithLocalEnvironment(cfg.SSL.LocalEnvironment),
		erpclient.WithVersion(version.Version),
	)
	a.closers = append(a.closers, a.ERP.Close)
	if a.SSL.Policy().CABundlePath != "" {
		if err := a.ERP.Watch(); err != nil {
			a.Log.Warnf("app: CA bundle changes will not refresh HTTP clients: %v", err)
		}
	}
	return a, nil
}

func cacheConfig(c config.Cache) httpcache.Config {
	hc := httpcache.DefaultConfig()
	hc.Enabled = c.Enabled
	if c.DefaultTTL > 0 {
		hc.DefaultTTL = time.Duration(c.DefaultTTL) * time.Second
	}
	if c.Prefix != "" {
		hc.Prefix = c.Prefix
	}
	for name, secs := range c.GroupTTL {
		g, err := httpcache.ParseGroup(name)
		if err != nil || secs <= 0 {
			continue
		}
		hc.GroupTTL[g] = time.Duration(secs) * time.Second
	}
	return hc
}

func sslOverrides(s config.SSL) func(*tlsconfig.Policy) {
	return func(p *tlsconfig.Policy) {
		if s.VerifyPeer != nil {
			p.VerifyPeer = *s.VerifyPeer
		}
		if s.DisableSSLLocal != nil {
			p.DisableSSLLocal = *s.DisableSSLLocal
		}
		if s.DebugSSL != nil {
			p.DebugSSL = *s.DebugSSL
		}
		if s.CABundlePath != nil {
			p.CABundlePath = *s.CABundlePath
		}
		if s.SSLVersion != nil {
			p.SSLVersion = *s.SSLVersion
		}
		if s.Proxy != nil {
			p.Proxy = *s.Proxy
		}
	}
}

// openStores connects the key-value and config backends. Redis clients and
// Postgres pools are shared when both stores use the same backend.
func (a *App) openStores(ctx context.Context, dynamo dynamostore.API) error {
	s := a.Config.Storage

	var rdb *goredis.Client
	redisClient := func() (*goredis.Client, error) {
		if rdb != nil {
			return rdb, nil
		}
		c, err := redisstore.Connect(ctx, s.RedisAddr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		rdb = c
		return c, nil
	}

	var db *sql.DB
	pgPool := func() (*sql.DB, error) {
		if db != nil {
			return db, nil
		}
		d, err := postgres.Open(s.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, d.Close)
		db = d
		return d, nil
	}

	switch s.Backend {
	case "redis":
		c, err := redisClient()
		if err != nil {
			return err
		}
		a.KV = redisstore.NewKV(c)
	case "postgres":
		d, err := pgPool()
		if err != nil {
			return err
		}
		kv, err := postgres.NewKV(ctx, d)
		if err != nil {
			return err
		}
		a.KV = kv
	case "dynamodb":
		if dynamo == nil {
			client, err := newDynamoDB(ctx, s.AWSRegion)
			if err != nil {
				return err
			}
			dynamo = client
		}
		kv, err := dynamostore.New(dynamo, dynamostore.Config{Table: s.DynamoDBTable})
		if err != nil {
			return err
		}
		a.KV = kv
	default:
		a.KV = memory.NewKV()
	}

	switch s.ConfigBackend {
	case "redis":
		c, err := redisClient()
		if err != nil {
			return err
		}
		a.Configs = redisstore.NewConfig(c)
	case "postgres":
		d, err := pgPool()
		if err != nil {
			return err
		}
		cs, err := postgres.NewConfig(ctx, d)
		if err != nil {
			return err
		}
		a.Configs = cs
	case "file":
		fs, err := filestore.New(s.ConfigFile)
		if err != nil {
			return err
		}
		a.Configs = fs
	default:
		a.Configs = memory.NewConfig()
	}
	return nil
}

// newDynamoDB builds a client from the AWS default credential chain.
func newDynamoDB(ctx context.Context, region string) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS configuration: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// Diagnose runs every health check.
func (a *App) Diagnose() diagnostics.Report {
	var r diagnostics.Report
	r.Add(
		diagnostics.CheckCABundle(a.SSL.Policy().CABundlePath, a.now()),
		diagnostics.CheckSSLPolicy(a.SSL.Policy()),
		diagnostics.CheckCacheHitRatio(a.Cache.Enabled(), a.Cache.RequestStats()),
	)
	if st, err := a.Rotator.Status(); err != nil {
		r.Add(diagnostics.Check{
			Name:    "cert_rotation",
			Status:  diagnostics.Fail,
			Message: err.Error(),
		})
	} else {
		r.Add(diagnostics.CheckRotation(st))
	}
	return r
}

// Close flushes pending latency samples and releases every connection,
// in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	if a.Timeouts != nil {
		if err := a.Timeouts.Latency().Flush(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if z, ok := a.Log.(*logger.ZapLogger); ok {
		_ = z.Sync()
	}
	return errors.Join(errs...)
}
