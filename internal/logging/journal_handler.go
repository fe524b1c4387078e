package logging

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry.
const SyslogIdentifier = "illuminode"

// JournalHandler is a slog.Handler that writes records to the systemd journal.
// Attribute keys become journal fields: "session_id" is stored as SESSION_ID,
// a "raw" device line as RAW. Keys are upper-cased and any character outside
// [A-Z0-9_] is replaced, as journald requires.
type JournalHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
	send   func(message string, priority journal.Priority, vars map[string]string) error
}

// NewJournalHandler creates a new journal handler.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level, send: journal.Send}
}

// Enabled reports whether the handler handles records at the given level.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the record to the journal.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := map[string]string{"SYSLOG_IDENTIFIER": SyslogIdentifier}
	for _, attr := range h.attrs {
		addJournalField(fields, "", attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		addJournalField(fields, h.prefix, attr)
		return true
	})
	return h.send(r.Message, journalPriority(r.Level), fields)
}

// WithAttrs returns a new handler with additional attributes.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + "_" + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

// WithGroup returns a new handler whose record attributes are prefixed by name.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.prefix == "" {
		clone.prefix = name
	} else {
		clone.prefix += "_" + name
	}
	return &clone
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// journalKey converts an attribute key to a valid journal field name.
func journalKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	name := strings.TrimLeft(b.String(), "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "F_" + name
	}
	return name
}

func addJournalField(fields map[string]string, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if prefix != "" {
		key = prefix + "_" + key
	}

	v := attr.Value
	switch v.Kind() {
	case slog.KindGroup:
		for _, a := range v.Group() {
			addJournalField(fields, key, a)
		}
		return
	case slog.KindInt64:
		fields[journalKey(key)] = strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		fields[journalKey(key)] = strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		fields[journalKey(key)] = strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		fields[journalKey(key)] = strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		fields[journalKey(key)] = v.Duration().String()
	case slog.KindTime:
		fields[journalKey(key)] = v.Time().Format(time.RFC3339Nano)
	default:
		fields[journalKey(key)] = v.String()
	}
}

// IsJournalAvailable checks if systemd journal is available.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
