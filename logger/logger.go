// Package logger - process-wide structured logging.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu sync.RWMutex
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Config selects the logger flavour.
type Config struct {
	// Development switches to a console encoder at debug level.
	Development bool `json:"development" yaml:"development"`
	// Level overrides the minimum level (debug, info, warn, error). Empty keeps the
	// flavour default.
	Level string `json:"level" yaml:"level"`
}

// Init builds a logger from the configuration and installs it.
//
// Arguments:
//   - cfg: The logger configuration.
//
// Returns:
//   - error: An error if the level is invalid or the logger cannot be built.
func Init(cfg Config) error {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}

	l, err := zc.Build()
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// InitProduction installs a JSON production logger.
func InitProduction() error {
	return Init(Config{})
}

// InitDevelopment installs a console logger at debug level.
func InitDevelopment() error {
	return Init(Config{Development: true})
}

// Set replaces the package logger and the zap globals.
func Set(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	zap.ReplaceGlobals(l)
	if log != nil {
		_ = log.Sync()
	}
	log = l
	sugar = l.Sugar()
}

// Log returns the installed logger, or the zap global when none was installed.
func Log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		return log
	}
	return zap.L()
}

// S returns the sugared form of Log.
func S() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	if sugar != nil {
		return sugar
	}
	return zap.S()
}

// Sync flushes buffered entries.
func Sync() {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		_ = log.Sync()
	}
}
