// Package logging provides slog-based structured logging with console and
// JSON output formats shared by the daemon and CLI.
package logging
