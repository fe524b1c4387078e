package logging

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is the subset of *slog.Logger that components depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var (
	mutex       sync.RWMutex
	modules     = make(map[string]*moduleLogger)
	config      Config
	initialized bool
	rootLevel   = &slog.LevelVar{}
	logBuffer   *RingBuffer
	logCallback LogCallback
)

// Initialize sets up the logging system. Loggers handed out earlier keep
// their output format but pick up the configured levels and start filling
// the ring buffer.
func Initialize(cfg Config) {
	mutex.Lock()
	defer mutex.Unlock()

	config = cfg
	initialized = true
	logBuffer = NewRingBuffer(defaultBufferSize)
	rootLevel.Set(levelOrDefault(cfg.Level, slog.LevelInfo))

	for name, m := range modules {
		m.level.Set(moduleLevelLocked(name))
	}

	slog.SetDefault(slog.New(buildHandler(cfg.Format, rootLevel)))
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	m, ok := modules[module]
	mutex.RUnlock()
	if ok {
		return m.logger
	}

	mutex.Lock()
	defer mutex.Unlock()
	if m, ok := modules[module]; ok {
		return m.logger
	}

	lv := &slog.LevelVar{}
	format := "text"
	if initialized {
		lv.Set(moduleLevelLocked(module))
		format = config.Format
	}
	m = &moduleLogger{logger: newModuleLogger(module, format, lv), level: lv}
	modules[module] = m
	return m.logger
}

// SetLevel changes the level of one module at runtime. An empty module
// changes the global level and every module without an explicit override.
func SetLevel(module, level string) error {
	parsed, ok := parseLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	mutex.Lock()
	defer mutex.Unlock()

	if module == "" {
		config.Level = level
		rootLevel.Set(parsed)
		for name, m := range modules {
			if _, pinned := config.Modules[name]; !pinned {
				m.level.Set(parsed)
			}
		}
		return nil
	}

	overrides := maps.Clone(config.Modules)
	if overrides == nil {
		overrides = make(map[string]string)
	}
	overrides[module] = level
	config.Modules = overrides
	if m, ok := modules[module]; ok {
		m.level.Set(parsed)
	}
	return nil
}

// Levels returns the effective level of every module created so far,
// plus the global level under the key "".
func Levels() map[string]string {
	mutex.RLock()
	defer mutex.RUnlock()

	out := map[string]string{"": levelToString(rootLevel.Level())}
	for name, m := range modules {
		out[name] = levelToString(m.level.Level())
	}
	return out
}

// GetBuffer returns the log ring buffer for reading historical logs.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// SetLogCallback registers fn to receive every new log entry.
func SetLogCallback(fn LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = fn
}

// moduleLevelLocked resolves the configured level of module. mutex must be held.
func moduleLevelLocked(module string) slog.Level {
	global := levelOrDefault(config.Level, slog.LevelInfo)
	if s, ok := config.Modules[module]; ok {
		return levelOrDefault(s, global)
	}
	return global
}

func newModuleLogger(module, format string, level slog.Leveler) *slog.Logger {
	return slog.New(buildHandler(format, level)).With("module", module)
}

// buildHandler fans records out to stdout, the journal when present, and
// the ring buffer.
func buildHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := make([]slog.Handler, 0, 3)
	if stdoutAttached() {
		handlers = append(handlers, stdout)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// stdoutAttached reports whether stdout goes to a terminal, pipe, socket or
// file rather than /dev/null.
func stdoutAttached() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}

func levelOrDefault(level string, def slog.Level) slog.Level {
	if l, ok := parseLevel(level); ok {
		return l
	}
	return def
}
