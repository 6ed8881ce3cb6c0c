// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (env secrets, tokens, DSNs)
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - Web application secrets (SECRET_KEY, DATABASE_URL, API keys)
//   - Secret values detected by pattern matching (passwords, tokens, keys)
//   - Connection URLs that embed credentials
//   - Session identifiers and authentication tokens
//
// Launch profiles inject environment variables into the supervised process,
// so attributes logging profile contents are masked even in verbose mode to
// prevent accidental exposure of secrets in logs that may be shared.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("profile loaded",
//	    "database_url", "postgres://app:hunter2@db/cricv", // Will be masked
//	    "port", 8000,
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
