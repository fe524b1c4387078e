package logging

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRingBuffer_Wraps(t *testing.T) {
	rb := NewRingBuffer(3)
	if rb.ReadAll() != nil {
		t.Fatal("empty buffer should return nil")
	}

	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(LogEntry{Message: msg})
	}

	if got := rb.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
	entries := rb.ReadAll()
	var got []string
	for _, e := range entries {
		got = append(got, e.Message)
	}
	if strings.Join(got, "") != "cde" {
		t.Errorf("ReadAll() order = %v, want [c d e]", got)
	}
}

func TestRingBuffer_Tail(t *testing.T) {
	rb := NewRingBuffer(4)
	for i, module := range []string{"session", "api", "session", "transport", "session"} {
		rb.Write(LogEntry{Module: module, Message: string(rune('a' + i))})
	}

	messages := func(entries []LogEntry) string {
		var sb strings.Builder
		for _, e := range entries {
			sb.WriteString(e.Message)
		}
		return sb.String()
	}
	session := func(e LogEntry) bool { return e.Module == "session" }

	tests := []struct {
		name  string
		limit int
		keep  func(LogEntry) bool
		want  string
	}{
		{"all", 0, nil, "bcde"},
		{"limit", 2, nil, "de"},
		{"filter", 0, session, "ce"},
		{"filter and limit", 1, session, "e"},
		{"limit above count", 10, nil, "bcde"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := messages(rb.Tail(tt.limit, tt.keep)); got != tt.want {
				t.Errorf("Tail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBufferHandler_CapturesEntries(t *testing.T) {
	mutex.Lock()
	logBuffer = NewRingBuffer(10)
	mutex.Unlock()
	t.Cleanup(func() {
		mutex.Lock()
		logBuffer = nil
		logCallback = nil
		mutex.Unlock()
	})

	var mu sync.Mutex
	var seen []LogEntry
	SetLogCallback(func(entry LogEntry) {
		mu.Lock()
		seen = append(seen, entry)
		mu.Unlock()
	})

	level := &slog.LevelVar{}
	level.Set(slog.LevelInfo)
	logger := slog.New(NewBufferHandler(level)).With("module", "session")

	logger.Debug("dropped")
	logger.Info("sent", "command", "sc.red", "error", errors.New("boom"))
	logger.WithGroup("props").Warn("group", "leds", 593)

	entries := GetBuffer().ReadAll()
	if len(entries) != 2 {
		t.Fatalf("buffered %d entries, want 2", len(entries))
	}
	first := entries[0]
	if first.Module != "session" || first.Level != "info" || first.Message != "sent" {
		t.Errorf("first entry = %+v", first)
	}
	if first.Attributes["command"] != "sc.red" || first.Attributes["error"] != "boom" {
		t.Errorf("first attributes = %v", first.Attributes)
	}
	if _, ok := entries[1].Attributes["props.leds"]; !ok {
		t.Errorf("grouped attribute missing: %v", entries[1].Attributes)
	}

	mu.Lock()
	if len(seen) != 2 {
		t.Errorf("callback saw %d entries, want 2", len(seen))
	}
	mu.Unlock()

	// Level changes apply to existing handlers
	level.Set(slog.LevelDebug)
	logger.Debug("now kept")
	if GetBuffer().Count() != 3 {
		t.Errorf("debug entry should be buffered after level change")
	}
}

func TestFormatLogLine(t *testing.T) {
	entry := LogEntry{
		Timestamp:  time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC),
		Level:      "warn",
		Module:     "transport",
		Message:    "short write",
		Attributes: map[string]any{"b": 2, "a": "x"},
	}

	want := "2025-01-27T10:30:00Z [WARN] [transport] short write a=x b=2"
	if got := FormatLogLine(entry); got != want {
		t.Errorf("FormatLogLine() = %q, want %q", got, want)
	}
}
