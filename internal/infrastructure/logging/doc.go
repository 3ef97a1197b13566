// Package logging provides structured logging for wearsync.
//
// It wraps log/slog with:
//   - JSON output for production, text output for development
//   - Default fields (service, version) on every entry
//   - Level filtering (debug, info, warn, error)
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// The delivery pipeline logs throttled samples at debug, handshake
// problems at warn and failed puts at error.
//
// Never log broker passwords or the InfluxDB token.
package logging
