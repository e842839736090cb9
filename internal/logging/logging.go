/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging builds the logr.Logger used across the allocator.
// Loggers are backed by zap through zapr; verbosity follows logr's V levels.
package logging

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels passed to logr's V().
const (
	INFO  = 0
	DEBUG = 1
	TRACE = 2
)

// Options controls logger construction.
type Options struct {
	// Level is one of "info", "debug" or "trace".
	Level string
	// Development switches to zap's console encoder with caller and stacktrace info.
	Development bool
}

// ParseLevel maps a level name onto the zap level that lets the matching
// logr V level through.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.Level(-INFO), nil
	case "debug":
		return zapcore.Level(-DEBUG), nil
	case "trace":
		return zapcore.Level(-TRACE), nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger creates a logr.Logger writing to stderr.
func NewLogger(opts Options) (logr.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return logr.Discard(), err
	}

	zapConfig := zap.NewProductionConfig()
	if opts.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	zl, err := zapConfig.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("failed to build zap logger: %w", err)
	}
	return zapr.NewLogger(zl), nil
}

// NewTestLogger returns a development logger at DEBUG verbosity for test suites.
func NewTestLogger() logr.Logger {
	logger, err := NewLogger(Options{Level: "debug", Development: true})
	if err != nil {
		return logr.Discard()
	}
	return logger
}
