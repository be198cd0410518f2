// Package logging provides categorized logging for the Earth Engine façade.
// Every subsystem logs through a named zap logger so operators can raise or
// lower verbosity per category without touching call sites.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	// CategoryBoot covers startup and configuration loading.
	CategoryBoot Category = "boot"

	// CategoryServer covers the stdio request loop.
	CategoryServer Category = "server"

	// CategoryRouter covers operation dispatch and validation.
	CategoryRouter Category = "router"

	// CategoryGeometry covers place-name resolution.
	CategoryGeometry Category = "geometry"

	// CategoryStore covers artifact registration and lookup.
	CategoryStore Category = "store"

	// CategoryExport covers export submission and degradation attempts.
	CategoryExport Category = "export"

	// CategoryBackend covers raw Earth Engine REST traffic.
	CategoryBackend Category = "backend"

	// CategoryTasks covers the export task journal and poller.
	CategoryTasks Category = "tasks"
)

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	sugared = make(map[Category]*zap.SugaredLogger)
)

// Initialize builds the process logger. Level is one of debug/info/warn/error;
// format is "json" or "console". Safe to call more than once; later calls
// replace the logger for all categories.
func Initialize(level, format string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	// Requests flow through stdout; logs must not.
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	SetLogger(logger)
	return nil
}

// SetLogger replaces the process logger. Used by tests and by callers that
// build their own zap configuration.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	sugared = make(map[Category]*zap.SugaredLogger)
}

// L returns the sugared logger for a category.
func L(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if s, ok := sugared[cat]; ok {
		mu.RUnlock()
		return s
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if s, ok := sugared[cat]; ok {
		return s
	}
	s := base.Named(string(cat)).Sugar()
	sugared[cat] = s
	return s
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

// Debugf logs a debug message in the given category.
func Debugf(cat Category, format string, args ...any) {
	L(cat).Debugf(format, args...)
}

// Infof logs an info message in the given category.
func Infof(cat Category, format string, args ...any) {
	L(cat).Infof(format, args...)
}

// Warnf logs a warning in the given category.
func Warnf(cat Category, format string, args ...any) {
	L(cat).Warnf(format, args...)
}

// Errorf logs an error in the given category.
func Errorf(cat Category, format string, args ...any) {
	L(cat).Errorf(format, args...)
}

// Per-category debug helpers, mirroring the call sites' subsystems.

// RouterDebug logs router dispatch details.
func RouterDebug(format string, args ...any) { Debugf(CategoryRouter, format, args...) }

// GeometryDebug logs resolver tier attempts and cache hits.
func GeometryDebug(format string, args ...any) { Debugf(CategoryGeometry, format, args...) }

// StoreDebug logs artifact store activity.
func StoreDebug(format string, args ...any) { Debugf(CategoryStore, format, args...) }

// ExportDebug logs export and degradation activity.
func ExportDebug(format string, args ...any) { Debugf(CategoryExport, format, args...) }

// BackendDebug logs backend request/response summaries.
func BackendDebug(format string, args ...any) { Debugf(CategoryBackend, format, args...) }

// TasksDebug logs journal and poller activity.
func TasksDebug(format string, args ...any) { Debugf(CategoryTasks, format, args...) }

// ServerDebug logs stdio loop activity.
func ServerDebug(format string, args ...any) { Debugf(CategoryServer, format, args...) }
