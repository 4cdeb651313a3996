// Package logging configures the process-wide slog logger and forwards
// FFmpeg's own log output into it.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/asticode/go-astiav"
)

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Setup installs a text logger writing to w at the given level as the
// default slog logger and routes FFmpeg logs through it.
func Setup(w io.Writer, level string) *slog.Logger {
	lvl := ParseLevel(level)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	RouteFFmpeg(logger, lvl)
	return logger
}

// ffmpegLevel maps a slog level to the most verbose FFmpeg level worth
// forwarding.
func ffmpegLevel(l slog.Level) astiav.LogLevel {
	switch {
	case l <= slog.LevelDebug:
		return astiav.LogLevelVerbose
	case l <= slog.LevelInfo:
		return astiav.LogLevelWarning
	}
	return astiav.LogLevelError
}

func slogLevel(l astiav.LogLevel) slog.Level {
	switch {
	case l <= astiav.LogLevelError:
		return slog.LevelError
	case l <= astiav.LogLevelWarning:
		return slog.LevelWarn
	case l <= astiav.LogLevelInfo:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func RouteFFmpeg(logger *slog.Logger, level slog.Level) {
	astiav.SetLogLevel(ffmpegLevel(level))
	astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, _, msg string) {
		msg = strings.TrimSpace(msg)
		if msg == "" {
			return
		}
		attrs := []any{"source", "ffmpeg"}
		if c != nil {
			if cl := c.Class(); cl != nil {
				attrs = append(attrs, "class", cl.String())
			}
		}
		logger.Log(context.Background(), slogLevel(l), msg, attrs...)
	})
}
