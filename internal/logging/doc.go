// Package logging provides structured logging for the sensor gateway.
//
// Features:
//   - JSON or text output selected by config.LoggingConfig.Format
//   - Default fields: service, version
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("mqtt connected", "broker", addr)
//
// Never log device credentials, JWT secrets, or bearer tokens.
package logging
