package logging

import (
	"log/slog"
	"os"
)

// Setup installs the bootstrap logger: JSON to stdout at info level.
// It runs before the database is up; once it is, main swaps in a
// MultiHandler that also persists records through DBHandler.
func Setup() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}
