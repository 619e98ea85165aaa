// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/helper/gc"
)

// Level is the severity of a log message.
type Level int

const (
	// LevelDebug is verbose diagnostic output (SSL transcripts, cache keys).
	LevelDebug Level = iota
	// LevelInfo is routine operational output.
	LevelInfo
	// LevelWarn reports degraded but recoverable conditions.
	LevelWarn
	// LevelError reports failures that need operator attention.
	LevelError
)

// String returns the lowercase level name used in structured output.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel converts a level name to a Level, defaulting to [LevelInfo].
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger defines the interface for logging operations.
// It provides methods for different log levels and formatted output.
//
// Printf and Println log at info level and are kept for call sites that
// only produce human-readable progress output.
type Logger interface {
	// Printf formats and prints a log message.
	Printf(format string, v ...any)
	// Println prints a log message with a newline.
	Println(v ...any)
	// SetOutput sets the output destination for the logger.
	SetOutput(w io.Writer)

	// Debugf logs at debug level.
	Debugf(format string, v ...any)
	// Infof logs at info level.
	Infof(format string, v ...any)
	// Warnf logs at warning level.
	Warnf(format string, v ...any)
	// Errorf logs at error level.
	Errorf(format string, v ...any)
}

// CLILogger implements Logger using the standard log package.
// It's designed for command-line interface output with human-readable formatting.
// Messages below the configured level are dropped; warnings and errors get a prefix.
type CLILogger struct {
	logger *log.Logger
	level  Level
}

// NewCLILogger creates a new CLI logger with timestamps disabled writing to stdout at info level.
func NewCLILogger() *CLILogger {
	return &CLILogger{logger: log.New(os.Stdout, "", 0), level: LevelInfo}
}

// WithLevel returns the logger after setting its minimum level.
func (c *CLILogger) WithLevel(level Level) *CLILogger {
	c.level = level
	return c
}

// Printf formats and prints a log message using fmt.Printf semantics.
func (c *CLILogger) Printf(format string, v ...any) { c.logger.Printf(format, v...) }

// Println prints a log message with a newline.
func (c *CLILogger) Println(v ...any) { c.logger.Println(v...) }

// SetOutput sets the output destination for the CLI logger.
func (c *CLILogger) SetOutput(w io.Writer) { c.logger.SetOutput(w) }

// Debugf logs at debug level.
func (c *CLILogger) Debugf(format string, v ...any) { c.logf(LevelDebug, format, v...) }

// Infof logs at info level.
func (c *CLILogger) Infof(format string, v ...any) { c.logf(LevelInfo, format, v...) }

// Warnf logs at warning level.
func (c *CLILogger) Warnf(format string, v ...any) { c.logf(LevelWarn, format, v...) }

// Errorf logs at error level.
func (c *CLILogger) Errorf(format string, v ...any) { c.logf(LevelError, format, v...) }

func (c *CLILogger) logf(level Level, format string, v ...any) {
	if level < c.level {
		return
	}
	switch level {
	case LevelDebug:
		c.logger.Printf("DEBUG: "+format, v...)
	case LevelWarn:
		c.logger.Printf("WARNING: "+format, v...)
	case LevelError:
		c.logger.Printf("ERROR: "+format, v...)
	default:
		c.logger.Printf(format, v...)
	}
}

// JSONLogger implements Logger with one JSON object per line.
// It can be silenced entirely, which is useful when the process output is
// consumed by another program.
//
// JSONLogger is safe for concurrent use by multiple goroutines.
type JSONLogger struct {
	mu     sync.Mutex
	writer io.Writer
	silent bool
	level  Level
	now    func() time.Time
}

// NewJSONLogger creates a new structured logger at info level.
// A nil writer discards output.
func NewJSONLogger(writer io.Writer, silent bool) *JSONLogger {
	if writer == nil {
		writer = io.Discard
	}
	return &JSONLogger{
		writer: writer,
		silent: silent,
		level:  LevelInfo,
		now:    time.Now,
	}
}

// WithLevel returns the logger after setting its minimum level.
func (j *JSONLogger) WithLevel(level Level) *JSONLogger {
	j.mu.Lock()
	j.level = level
	j.mu.Unlock()
	return j
}

// Printf formats and logs a structured message at info level.
func (j *JSONLogger) Printf(format string, v ...any) { j.write(LevelInfo, fmt.Sprintf(format, v...)) }

// Println logs a structured message at info level.
func (j *JSONLogger) Println(v ...any) { j.write(LevelInfo, fmt.Sprint(v...)) }

// Debugf logs at debug level.
func (j *JSONLogger) Debugf(format string, v ...any) { j.write(LevelDebug, fmt.Sprintf(format, v...)) }

// Infof logs at info level.
func (j *JSONLogger) Infof(format string, v ...any) { j.write(LevelInfo, fmt.Sprintf(format, v...)) }

// Warnf logs at warning level.
func (j *JSONLogger) Warnf(format string, v ...any) { j.write(LevelWarn, fmt.Sprintf(format, v...)) }

// Errorf logs at error level.
func (j *JSONLogger) Errorf(format string, v ...any) { j.write(LevelError, fmt.Sprintf(format, v...)) }

// SetOutput sets the output destination for the JSON logger.
//
// SetOutput is safe for concurrent use by multiple goroutines.
func (j *JSONLogger) SetOutput(w io.Writer) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if w == nil {
		j.writer = io.Discard
	} else {
		j.writer = w
	}
}

func (j *JSONLogger) write(level Level, msg string) {
	if j.silent {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if level < j.level {
		return
	}

	data, _ := json.Marshal(struct {
		Time    string `json:"time"`
		Level   string `json:"level"`
		Message string `json:"message"`
	}{
		Time:    j.now().UTC().Format(time.RFC3339),
		Level:   level.String(),
		Message: msg,
	})

	buf := gc.Default.Get()
	buf.Write(data)
	buf.WriteByte('\n')
	j.writer.Write(buf.Bytes())
	buf.Reset()
	gc.Default.Put(buf)
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
func (nopLogger) Println(...any)        {}
func (nopLogger) SetOutput(io.Writer)   {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Nop returns a Logger that discards all output.
// Constructors across the module fall back to it when given a nil Logger.
func Nop() Logger { return nopLogger{} }

// OrNop returns l, or [Nop] when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
