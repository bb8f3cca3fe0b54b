// Package config loads application configuration from LOFT_* environment
// variables with sensible defaults.
package config
