// Package debug provides category-gated debug logging on top of log/slog.
//
// Categories select what is logged (TODOFLOW_DEBUG or logging.debug, a
// comma-separated list of engine, providers, tools, storage, transport,
// auth or all). The slog level selects how much reaches the handler
// (TODOFLOW_LOG_LEVEL or logging.level: trace, debug, info, warn, error).
//
//	debug.Log("engine", "iteration started", "iteration", n)
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

var enabled atomic.Pointer[map[string]bool]

func init() {
	setCategories(os.Getenv("TODOFLOW_DEBUG"))
}

// Init installs the default slog logger on stderr and sets the active
// categories. Environment variables win over the config values. With no
// level anywhere, ENVIRONMENT=production means info and anything else
// means debug.
func Init(configCategories, configLevel, format string) {
	setCategories(firstNonEmpty(os.Getenv("TODOFLOW_DEBUG"), configCategories))

	level := firstNonEmpty(os.Getenv("TODOFLOW_LOG_LEVEL"), configLevel, defaultLevel(os.Getenv("ENVIRONMENT")))
	slog.SetDefault(slog.New(NewHandler(os.Stderr, format, ParseLevel(level))))
}

// NewHandler returns a JSON handler for format "json" and a text handler
// otherwise. The trace level is rendered as TRACE.
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l <= LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func defaultLevel(environment string) string {
	if strings.EqualFold(environment, "production") {
		return "info"
	}
	return "debug"
}

// Enabled reports whether category is switched on.
func Enabled(category string) bool {
	m := *enabled.Load()
	return m["all"] || m[category]
}

// Log writes a debug record tagged with category when it is enabled.
func Log(category, msg string, args ...any) {
	if Enabled(category) {
		slog.Debug(msg, append([]any{"debug", category}, args...)...)
	}
}

// Trace is Log at LevelTrace, for full payloads.
func Trace(category, msg string, args ...any) {
	if Enabled(category) {
		slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
	}
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Truncate shortens s to at most maxLen bytes without splitting a UTF-8
// sequence, appending "..." when anything was cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func setCategories(s string) {
	m := parseCategories(s)
	enabled.Store(&m)
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		if cat = strings.ToLower(strings.TrimSpace(cat)); cat != "" {
			m[cat] = true
		}
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
