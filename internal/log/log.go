// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides logging utilities for the vigil orchestrator.
//
// Setup configures three sinks: a console stream on stderr, a
// human-readable file (orchestrate.log), and a structured JSON Lines
// file (orchestrate.jsonl). Both file sinks rotate to a ".1" sibling
// when they exceed the configured size limit.
package log

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// HumanLogName is the human-readable log file written under the state dir.
const HumanLogName = "orchestrate.log"

// JSONLogName is the structured JSON Lines log file written under the state dir.
const JSONLogName = "orchestrate.jsonl"

// DefaultMaxBytes is the rotation threshold for both file sinks.
const DefaultMaxBytes = 10 * 1024 * 1024

var logger *zap.Logger

func init() {
	logger, _ = zap.NewDevelopment()
}

// Options configures Setup.
type Options struct {
	// StateDir is where orchestrate.log and orchestrate.jsonl are written.
	// Empty disables the file sinks.
	StateDir string
	// Verbose lowers the console level to debug.
	Verbose bool
	// MaxBytes is the rotation threshold; 0 means DefaultMaxBytes.
	MaxBytes int64
}

// Setup builds the orchestrator logger and installs it as the global logger.
func Setup(opts Options) (*zap.Logger, error) {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}

	consoleLevel := zapcore.InfoLevel
	if opts.Verbose {
		consoleLevel = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			consoleLevel,
		),
	}

	if opts.StateDir != "" {
		if err := os.MkdirAll(opts.StateDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		human, err := newRotatingSink(filepath.Join(opts.StateDir, HumanLogName), opts.MaxBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to open human log: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			human,
			zapcore.DebugLevel,
		))

		jsonl, err := newRotatingSink(filepath.Join(opts.StateDir, JSONLogName), opts.MaxBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to open jsonl log: %w", err)
		}
		jsonCfg := zap.NewProductionEncoderConfig()
		jsonCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(jsonCfg),
			jsonl,
			zapcore.DebugLevel,
		))
	}

	l := zap.New(zapcore.NewTee(cores...))
	SetLogger(l)
	return l, nil
}

// Logger returns the global logger.
func Logger() *zap.Logger {
	return logger
}

// SetLogger sets the global logger.
func SetLogger(l *zap.Logger) {
	logger = l
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

// Info logs an info message.
func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

// Error logs an error message.
func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

// Fatal logs a fatal message and exits.
func Fatal(msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}

// Learning logs a knowledge event. Learning entries carry event=learning in
// the JSONL stream so analysis pipelines can filter for them.
func Learning(msg string, fields ...zap.Field) {
	logger.Info(msg, append([]zap.Field{zap.String("event", "learning")}, fields...)...)
}

// With returns a logger with additional fields.
func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}

// Sync flushes any buffered log entries.
func Sync() error {
	return logger.Sync()
}
