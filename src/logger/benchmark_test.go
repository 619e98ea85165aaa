// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package logger_test

import (
	"io"
	"testing"

	"github.com/H0llyW00dzZ/verial-resilience/src/logger"
)

func BenchmarkJSONLogger_Printf(b *testing.B) {
	log := logger.NewJSONLogger(io.Discard, false)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; b.Loop(); i++ {
		log.Printf("cache hit for %s (%d)", "product", i)
	}
}

func BenchmarkJSONLogger_Parallel(b *testing.B) {
	log := logger.NewJSONLogger(io.Discard, false)
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			log.Warnf("latency %.2fs for %s", 6.5, "api.example.com")
		}
	})
}
