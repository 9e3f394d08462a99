// Package logging provides structured logging configuration for mockfirebolt.
//
// This package wraps log/slog so every component logs the same way. It adds
// one level on top of slog's four: IMPORTANT, which sits between INFO and WARN
// and is reserved for lines an operator should always see (startup banner,
// listening ports, proxy target).
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logging.Important(logger, "Welcome to Mock Firebolt")
//	logger.Warn("unknown userId; using default user", "userId", id)
//
// # Integration
//
// Components accept a *slog.Logger in their constructor or via an option.
// If no logger is provided, use logging.Nop().
package logging
