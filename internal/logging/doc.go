// Package logging provides structured logging utilities for audiencer.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "oauth.authorize")
//	logger.Info("session created", logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("token issued", logging.UserHash(principal.Email))
//
// User emails are hashed so log entries can be correlated without exposing
// PII, and token values are never logged directly.
package logging
