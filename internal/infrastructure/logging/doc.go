// Package logging provides structured logging for the gateway.
//
// It wraps log/slog with JSON or text output, level filtering and default
// service/version attributes on every entry.
//
// Configuration lives under the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("frame sent", "channel", 3, "frame", "3002000003000000")
//
// Never log Redis, MQTT or InfluxDB credentials.
package logging
