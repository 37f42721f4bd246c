// Package slog wraps a single process-wide zap.SugaredLogger.
//
// The rest of the module never constructs its own logger; it calls
// Get() and logs through the sugared API, matching the shape used
// throughout the RPC and engine packages.
package slog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once   sync.Once
	logger *zap.SugaredLogger
)

// Init builds the process-wide logger. Safe to call more than once;
// only the first call takes effect. Callers that never call Init get
// a lazily-built production logger on first Get().
func Init() {
	once.Do(newLogger)
}

// InitDevelopment builds a human-readable, debug-level logger. Like
// Init, only the first of the two calls takes effect.
func InitDevelopment() {
	once.Do(func() {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		logger = l.Sugar()
	})
}

func newLogger() {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	logger = l.Sugar()
}

// Get returns the process-wide logger, initializing it with
// production defaults if Init was never called.
func Get() *zap.SugaredLogger {
	once.Do(newLogger)
	return logger
}

// Sync flushes any buffered log entries. Callers should defer it from
// main after Init/InitDevelopment.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
