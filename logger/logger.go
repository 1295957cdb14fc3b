// Package logger builds the zap loggers handed to inout's adapters.
//
// There is no package-level logger: callers build one with New and pass it
// into each adapter constructor. Adapters accept a nil logger and fall back
// to OrNop.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	// JSON selects structured JSON output for machine consumption.
	JSON bool

	// Verbosity is the CLI flag count (-v, -vv, ...), see VerbosityToLevel.
	Verbosity int

	// Output defaults to os.Stderr so command results on stdout stay parseable.
	Output io.Writer
}

// New builds a sugared logger for the given options.
func New(opts Options) (*zap.SugaredLogger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := zap.NewAtomicLevelAt(VerbosityToLevel(opts.Verbosity))

	var encoder zapcore.Encoder
	if opts.JSON {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), level)
	return zap.New(core).Sugar(), nil
}

// OrNop returns log, or a no-op logger when log is nil.
func OrNop(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log
}

// Sync flushes buffered entries, ignoring the EINVAL zap reports for terminals.
func Sync(log *zap.SugaredLogger) {
	if log != nil {
		_ = log.Sync()
	}
}
