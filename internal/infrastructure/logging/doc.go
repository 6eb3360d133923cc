// Package logging provides structured logging for railcontrol.
//
// It wraps log/slog with JSON output for production, text output for
// development, and default service/version fields on every entry.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("automode").Info("loco started", "loco", id)
package logging
