// Package logging builds the zap loggers used across the tool. The CLI
// gets a console encoder on stderr so structured output never mixes
// with porcelain output on stdout.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to stderr. With verbose set, debug
// entries are included.
func New(verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}

// Nop returns a logger that discards everything. Library code accepts
// a *zap.Logger and callers that do not care pass this.
func Nop() *zap.Logger {
	return zap.NewNop()
}
