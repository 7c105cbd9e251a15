// Package config loads, validates, and normalizes the TOML configuration
// shared by the shortforge daemon and CLI.
package config
