// Package logging provides structured logging for the indicator core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the application.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("water level updated", "level", 42)
//
// Never log broker passwords, JWT secrets or tokens.
package logging
