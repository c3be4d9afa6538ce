package hostfuncs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Guest log levels beyond the slog built-ins.
const (
	LevelTrace    = slog.Level(-8)
	LevelCritical = slog.Level(12)
)

// LogRequest is the payload of logging.log.
type LogRequest struct {
	Level   string `json:"level"`
	Context string `json:"context"`
	Message string `json:"message"`
}

// ParseLevel maps a guest level name onto a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "critical":
		return LevelCritical, nil
	}
	return 0, fmt.Errorf("unknown log level %q", level)
}

// Log re-emits a guest log record through the call's logger.
func Log(ctx context.Context, caps *Capabilities, req LogRequest) (Empty, error) {
	level, err := ParseLevel(req.Level)
	if err != nil {
		return Empty{}, validationErr(err.Error())
	}
	caps.Logger.Log(ctx, level, req.Message, slog.String("context", req.Context))
	return Empty{}, nil
}
