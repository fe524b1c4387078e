package logging

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
)

// LogCallback receives every entry written by a BufferHandler.
type LogCallback func(entry LogEntry)

// BufferHandler is a slog.Handler that writes to the package ring buffer
// and calls the registered LogCallback. Both are looked up per record, so
// handlers created before Initialize start buffering once it runs.
//
// Attributes are flattened: groups become dot-separated key prefixes and
// the "module" attribute becomes LogEntry.Module.
type BufferHandler struct {
	level  slog.Leveler
	module string
	fixed  map[string]any
	prefix string
}

// NewBufferHandler creates a buffer handler at the given level.
func NewBufferHandler(level slog.Leveler) *BufferHandler {
	return &BufferHandler{level: level, module: "app"}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelToString(r.Level),
		Module:     h.module,
		Message:    r.Message,
		Attributes: maps.Clone(h.fixed),
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "module" && h.prefix == "" {
			entry.Module = a.Value.String()
			return true
		}
		if entry.Attributes == nil {
			entry.Attributes = make(map[string]any, r.NumAttrs())
		}
		putAttr(entry.Attributes, h.prefix, a)
		return true
	})

	mutex.RLock()
	buffer, callback := logBuffer, logCallback
	mutex.RUnlock()

	if buffer != nil {
		buffer.Write(entry)
	}
	if callback != nil {
		callback(entry)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.fixed = maps.Clone(h.fixed)
	for _, a := range attrs {
		if a.Key == "module" && h.prefix == "" {
			clone.module = a.Value.String()
			continue
		}
		if clone.fixed == nil {
			clone.fixed = make(map[string]any, len(attrs))
		}
		putAttr(clone.fixed, h.prefix, a)
	}
	return &clone
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// putAttr stores a under its dotted key, expanding groups.
func putAttr(dst map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := joinKey(prefix, a.Key)

	switch a.Value.Kind() {
	case slog.KindGroup:
		for _, ga := range a.Value.Group() {
			putAttr(dst, key, ga)
		}
	case slog.KindTime:
		dst[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		dst[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			dst[key] = err.Error()
		} else {
			dst[key] = a.Value.Any()
		}
	default:
		dst[key] = a.Value.Any()
	}
}

func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// FormatLogLine renders entry as "<time> [LEVEL] [module] message k=v ...",
// with attributes sorted by key.
func FormatLogLine(entry LogEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] [%s] %s",
		entry.Timestamp.Format(time.RFC3339Nano), strings.ToUpper(entry.Level), entry.Module, entry.Message)
	for _, k := range slices.Sorted(maps.Keys(entry.Attributes)) {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Attributes[k])
	}
	return sb.String()
}
