// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package logger

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a [zap.SugaredLogger] to the Logger interface so the
// resilience components can be embedded in services that already log through zap.
//
// ZapLogger is safe for concurrent use by multiple goroutines.
type ZapLogger struct {
	mu    sync.RWMutex
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// NewZapLogger builds a JSON zap logger writing to w at the given level.
// A nil writer discards output.
func NewZapLogger(w io.Writer, level Level) *ZapLogger {
	z := &ZapLogger{level: zap.NewAtomicLevelAt(zapLevel(level))}
	z.SetOutput(w)
	return z
}

// FromZap wraps an existing zap logger. SetOutput replaces its core with a
// JSON core on the new writer.
func FromZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: l.Sugar(), level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (z *ZapLogger) logger() *zap.SugaredLogger {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.sugar
}

// Printf logs at info level.
func (z *ZapLogger) Printf(format string, v ...any) { z.logger().Infof(format, v...) }

// Println logs at info level.
func (z *ZapLogger) Println(v ...any) { z.logger().Info(fmt.Sprint(v...)) }

// Debugf logs at debug level.
func (z *ZapLogger) Debugf(format string, v ...any) { z.logger().Debugf(format, v...) }

// Infof logs at info level.
func (z *ZapLogger) Infof(format string, v ...any) { z.logger().Infof(format, v...) }

// Warnf logs at warning level.
func (z *ZapLogger) Warnf(format string, v ...any) { z.logger().Warnf(format, v...) }

// Errorf logs at error level.
func (z *ZapLogger) Errorf(format string, v ...any) { z.logger().Errorf(format, v...) }

// SetOutput rebuilds the zap core on top of w.
func (z *ZapLogger) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(w),
		z.level,
	)

	z.mu.Lock()
	z.sugar = zap.New(core).Sugar()
	z.mu.Unlock()
}

// Sync flushes buffered entries.
func (z *ZapLogger) Sync() error { return z.logger().Sync() }
