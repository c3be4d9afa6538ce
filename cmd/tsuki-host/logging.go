package main

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tsuki-dev/tsuki-host/application/config"
	"github.com/tsuki-dev/tsuki-host/hostfuncs"
)

// newLogger builds the CLI logger: colored text on stderr, or JSON lines in a
// rotated file when cfg.File is set.
func newLogger(cfg config.Log, stderr io.Writer) (*slog.Logger, func() error, error) {
	level, err := hostfuncs.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	opts := log.Options{
		Level:           log.Level(level),
		ReportTimestamp: true,
		Prefix:          "tsuki",
	}
	if cfg.File == "" {
		return slog.New(log.NewWithOptions(stderr, opts)), func() error { return nil }, nil
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	opts.Formatter = log.JSONFormatter
	return slog.New(log.NewWithOptions(file, opts)), file.Close, nil
}
