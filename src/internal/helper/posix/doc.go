// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package posix provides [POSIX]-oriented helpers for executable naming and file
// permission management.
//
// Key functions:
//   - GetExecutableName: Returns the executable name without extension for CLI usage
//   - WriteFileAtomic: Replaces a file through a temp file, fsync and rename
//   - ApplyMode: Sets a file mode through an ordered cascade of strategies
//     (direct chmod, shell chmod, privileged shell chmod), stopping at the first
//     strategy whose result is verified with a stat call
//
// # Usage Examples
//
//	strategy, err := posix.ApplyMode(ctx, "/etc/verial/cacert.pem", 0o644, posix.DefaultStrategies()...)
//	if err != nil {
//		return err
//	}
//	log.Printf("permissions restored using %s", strategy)
//
// [POSIX]: https://grokipedia.com/page/POSIX
package posix
