// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// verial-resilience administers the response cache and TLS resilience layer of
// the Verial ERP connector.
//
// # Installation
//
// Install with Go 1.25.5 or later:
//
//	go install github.com/H0llyW00dzZ/verial-resilience/cmd/verial-resilience@latest
//
// # Usage
//
//	verial-resilience [--config FILE] [--json] COMMAND
//
// # Commands
//
//	cache stats                     Cache size, entries per group and settings
//	cache flush [--group G]         Remove all cached responses or one group
//	cache toggle on|off             Enable or disable caching
//	cache ttl SECONDS               Set the default TTL
//	cert fetch SOURCE [--force]     Load a bundle from a file or HTTPS URL via the certificate cache
//	cert cache-stats                Certificate cache directory statistics
//	cert cache-clear [SOURCE]       Drop one or every cached bundle
//	cert rotate [--force]           Replace the managed CA bundle when due
//	cert status                     Rotation state, sources and backups
//	ssl show                        Active TLS policy
//	ssl diagnose                    Health checks; exits non-zero on failure
//	ssl test HOST [--port] [--chain] TLS handshake report
//	latency HOST                    Recorded latency summary and samples
//	fetch ENDPOINT [--param k=v]    GET an ERP endpoint through cache and retries
//
// # Configuration
//
// The configuration file is JSON or YAML, chosen by extension. Without
// --config the path in $VERIAL_RESILIENCE_CONFIG is used; without either,
// built-in defaults apply (in-memory stores, certificates under ./data).
//
//	storage:
//	  backend: redis
//	  config_backend: file
//	  config_file: /var/lib/verial/options.yaml
//	  redis_addr: redis://localhost:6379/0
//	api:
//	  base_url: https://erp.example.com/WcfServiceLibraryVerial
//	log:
//	  format: json
//	  level: info
package main
