// Package logger provides the structured logging interface used across httpretry.
//
// It wraps zerolog and offers:
//   - leveled logging (Debug, Info, Warn, Error)
//   - structured fields through WithField / WithFields / *WithFields
//   - a colored console writer on stderr, or append-only file output
//   - a global logger for the CLI, plus NewNopLogger and TestLogger for tests
//
// Basic usage:
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "debug"})
//	logger.WithField("target", url).Info("fetch starting")
//
// Components take a Logger in their constructor and fall back to GetLogger
// when given nil.
package logger
