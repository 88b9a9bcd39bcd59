package config

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
)

// LevelTrace sits one step below debug. The model clients log raw
// request and response bodies at this level.
const LevelTrace = slog.LevelDebug - 4

// logLevels maps log_level values to slog levels. The empty string is
// the default.
var logLevels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"trace":   LevelTrace,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLogLevel resolves a log_level value, ignoring case and
// surrounding space.
func ParseLogLevel(s string) (slog.Level, error) {
	if lvl, ok := logLevels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl, nil
	}
	names := make([]string, 0, len(logLevels))
	for name := range logLevels {
		if name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: %s)", s, strings.Join(names, ", "))
}

// ReplaceLogLevelNames prints LevelTrace as "TRACE" rather than slog's
// "DEBUG-4". It is meant for slog.HandlerOptions.ReplaceAttr.
func ReplaceLogLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
		return slog.String(slog.LevelKey, "TRACE")
	}
	return a
}

// Logger builds the process logger from log_level and log_format,
// writing to w. Call it on a validated config; an unknown level falls
// back to info.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	lvl, _ := ParseLogLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: ReplaceLogLevelNames}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
