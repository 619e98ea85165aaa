// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package posix

import (
	"os"
	"path/filepath"
	"strings"
)

// FallbackExecutableName is returned by [GetExecutableName] when os.Args[0] is unavailable.
const FallbackExecutableName = "verial-resilience"

// GetExecutableName returns the executable name without extension, cross-platform compatible.
//
// Examples:
//   - Linux/macOS: "verial-resilience" from "/usr/local/bin/verial-resilience"
//   - Windows: "verial-resilience" from "C:\bin\verial-resilience.exe"
//   - Fallback: [FallbackExecutableName]
//
// Returns:
//   - string: Clean executable name suitable for CLI usage
func GetExecutableName() string {
	if len(os.Args) == 0 || os.Args[0] == "" {
		return FallbackExecutableName
	}

	name := filepath.Base(os.Args[0])

	// A Windows path on a Unix host survives filepath.Base untouched.
	if strings.ContainsAny(name, `\/`) {
		parts := strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' })
		if len(parts) > 0 {
			name = parts[len(parts)-1]
		}
	}

	return strings.TrimSuffix(name, ".exe")
}
