// Package logging provides structured logging for CloudLink Core.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same shape: a service and version field on every entry, plus a
// component field added through Component().
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
//	logger := logging.New(cfg.Logging, "1.0.0")
//	mgrLog := logger.Component("session")
//	mgrLog.Info("discovery finished", "devices", 12)
//
// Never log cloud passwords, tokens, or the MQTT key.
package logging
