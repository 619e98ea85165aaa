// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package logger provides abstraction and implementation for logging operations.
// It defines the Logger interface and three implementations: CLILogger for
// human-readable command-line output, JSONLogger for line-delimited structured
// output, and ZapLogger for embedding in services that already use [zap].
// The structured implementations are thread-safe and use buffer pooling.
//
// [zap]: https://github.com/uber-go/zap
package logger
