// Package logger builds the structured JSON logger shared by the server
// and its background workers.
package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger tagged with the host and service names.
// Log level defaults to info; "dev" environments log debug.
func New(service, env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("timestamp", a.Value.Time().Format("2006-01-02T15:04:05Z07:00"))
			}
			if a.Key == slog.MessageKey {
				return slog.String("message", a.Value.String())
			}
			return a
		},
	})
	log := slog.New(handler)
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return log.With("host", host, "service", service)
}
