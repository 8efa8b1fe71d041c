// Package util holds logging helpers shared by the host and the simulated
// cores.
package util

import (
	"context"
	"log/slog"
)

// LevelTrace sits just above Info, so handlers left at the default level
// keep protocol traces.
const LevelTrace slog.Level = slog.LevelInfo + 1

// Trace logs a protocol event at LevelTrace on the default logger.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}
