// Package logging builds the process-wide logr.Logger on top of zap.
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jptrhost/pelican-dns/internal/config"
)

// New returns a logger honoring cfg. Level is the logr verbosity: 0 logs
// info and errors, 1 adds webhook dumps, higher values add more.
func New(cfg config.LogConfig) (logr.Logger, func(), error) {
	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(zapcore.Level(-cfg.Level))

	zl, err := zc.Build()
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("build zap logger: %w", err)
	}

	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}
