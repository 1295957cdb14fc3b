package commands

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/teranos/inout/am"
	"github.com/teranos/inout/logger"
)

var (
	cliLog        = zap.NewNop().Sugar()
	logStatements bool
)

// SetupLogger builds the logger every command hands to the adapters.
// The config's log.verbosity adds to the -v count.
func SetupLogger(verbosity int, jsonLogs bool) error {
	if cfg, err := am.Load(); err == nil {
		verbosity += cfg.Log.Verbosity
		jsonLogs = jsonLogs || cfg.Log.JSON
	}
	log, err := logger.New(logger.Options{JSON: jsonLogs, Verbosity: verbosity})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	cliLog = log
	logStatements = logger.ShouldLogStatements(verbosity)
	log.Debugw("Logger ready", "verbosity", logger.LevelName(verbosity))
	return nil
}

// Logger returns the command logger.
func Logger() *zap.SugaredLogger {
	return cliLog
}

// logStatement logs statement text, which can carry literal values, only
// at -vvv.
func logStatement(backend, statement string) {
	if logStatements {
		cliLog.Debugw("Statement", logger.FieldBackend, backend, logger.FieldQuery, statement)
	}
}

// loadConfig loads and validates the configuration.
func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// StatusError is returned by commands that already printed a failed
// envelope; main exits non-zero without printing it again.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("write finished with status %d", e.StatusCode)
}
