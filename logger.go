package arataga

import (
	"log/slog"
	"os"
)

var logLevel = new(slog.LevelVar)

// Log is the package-level structured logger used throughout arataga.
//
// It defaults to a text handler on stderr. Adjust the level with
// [SetLogLevel]; replacing Log itself is only safe before any ACL or
// resolver is started.
var Log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

// SetLogLevel adjusts the minimum level of the package logger at runtime.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// connLogger returns a logger tagged with the fields that identify a single
// connection, so every phase transition for that connection can be
// correlated in the log stream.
func connLogger(aclID string, connID uint64, spanID string) *slog.Logger {
	return Log.With("acl", aclID, "connID", connID, "span", spanID)
}
