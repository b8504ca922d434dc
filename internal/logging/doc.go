// Package logging wraps log/slog with glossa's console and JSON handlers,
// typed attribute helpers, and standard field names used across components.
package logging
