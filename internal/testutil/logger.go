package testutil

import "log/slog"

// DiscardLogger returns a logger that drops all output, keeping test runs
// quiet.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
