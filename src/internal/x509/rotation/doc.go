// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package rotation keeps the CA bundle used for ERP connections current.
//
// A bundle is due for rotation when it has never been rotated, when the
// rotation interval has elapsed, when the file is missing or unreadable, or
// when a root-like certificate in it expires within the expiration
// threshold. Rotation downloads from the configured sources in ascending
// priority until one yields a plausible bundle, then replaces the file
// atomically and keeps timestamped backups of previous versions.
//
// Example usage:
//
//	r := rotation.New(ctx, store, rotation.Config{
//		BundlePath: "/var/lib/verial/certs/ca-bundle.pem",
//		BackupDir:  "/var/lib/verial/certs/backups",
//	})
//	res, err := r.Rotate(ctx, false)
package rotation
