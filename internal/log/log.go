// Package log provides structured, category-tagged logging for zcore.
// Logging is off until Init is called, which happens when --debug,
// ZCORE_DEBUG or the log.enabled config key turn it on.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zimmed/zimmed-core/internal/pubsub"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a config value such as "info" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelDebug, fmt.Errorf("unknown log level %q", s)
}

// Category groups related log messages.
type Category string

const (
	CatModel    Category = "model"    // Field derivation
	CatListener Category = "listener" // Listener registration and dispatch
	CatStore    Category = "store"    // Storage collaborator calls
	CatDB       Category = "db"       // Database operations
	CatConfig   Category = "config"   // Configuration loading/saving
	CatWatcher  Category = "watcher"  // File watcher events
	CatCache    Category = "cache"    // Controller cache operations
	CatFeed     Category = "feed"     // Change feed and autosave
)

// Categories returns every category in declaration order.
func Categories() []Category {
	return []Category{CatModel, CatListener, CatStore, CatDB, CatConfig, CatWatcher, CatCache, CatFeed}
}

// ParseCategories validates category names from config. An empty list
// means every category.
func ParseCategories(names []string) ([]Category, error) {
	known := Categories()
	cats := make([]Category, 0, len(names))
	for _, name := range names {
		cat := Category(strings.ToLower(strings.TrimSpace(name)))
		if !slices.Contains(known, cat) {
			return nil, fmt.Errorf("unknown log category %q", name)
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// Option configures a logger at Init time.
type Option func(*Logger)

// WithLevel drops entries below level.
func WithLevel(level Level) Option {
	return func(l *Logger) { l.minLevel = level }
}

// WithCategories keeps only entries in cats. No categories keeps all.
func WithCategories(cats ...Category) Option {
	return func(l *Logger) {
		if len(cats) == 0 {
			l.only = nil
			return
		}
		l.only = make(map[Category]bool, len(cats))
		for _, c := range cats {
			l.only[c] = true
		}
	}
}

// Logger writes key=value entries and fans them out to subscribers.
type Logger struct {
	mu       sync.Mutex
	closer   io.Closer
	writer   io.Writer
	enabled  bool
	minLevel Level
	only     map[Category]bool
	broker   *pubsub.Broker[string]
}

var current atomic.Pointer[Logger]

// Init opens path for appending and makes it the process logger, closing
// any logger installed before. The returned func closes the file.
func Init(path string, opts ...Option) (func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path comes from --debug/ZCORE_LOG/config
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	l := install(f, f, opts)
	return func() { release(l) }, nil
}

// InitWriter routes the process logger to w. Used by tests and by commands
// that log to stderr.
func InitWriter(w io.Writer, opts ...Option) func() {
	l := install(w, nil, opts)
	return func() { release(l) }
}

func install(w io.Writer, closer io.Closer, opts []Option) *Logger {
	l := &Logger{
		writer:   w,
		closer:   closer,
		enabled:  true,
		minLevel: LevelDebug,
		broker:   pubsub.NewBroker[string](),
	}
	for _, opt := range opts {
		opt(l)
	}
	if prev := current.Swap(l); prev != nil {
		prev.shutdown()
	}
	return l
}

// release uninstalls l if it is still current, then closes it.
func release(l *Logger) {
	current.CompareAndSwap(l, nil)
	l.shutdown()
}

func (l *Logger) shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer != nil {
		_ = l.closer.Close()
		l.closer = nil
	}
	l.writer = nil
	l.broker.Close()
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if l := current.Load(); l != nil {
		l.mu.Lock()
		l.enabled = enabled
		l.mu.Unlock()
	}
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	if l := current.Load(); l != nil {
		l.mu.Lock()
		l.minLevel = level
		l.mu.Unlock()
	}
}

func Debug(cat Category, msg string, fields ...any) { write(LevelDebug, cat, msg, fields) }
func Info(cat Category, msg string, fields ...any)  { write(LevelInfo, cat, msg, fields) }
func Warn(cat Category, msg string, fields ...any)  { write(LevelWarn, cat, msg, fields) }
func Error(cat Category, msg string, fields ...any) { write(LevelError, cat, msg, fields) }

// ErrorErr logs at error level with err appended as the "error" field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	var text any = "<nil>"
	if err != nil {
		text = err.Error()
	}
	write(LevelError, cat, msg, append(fields, "error", text))
}

func write(level Level, cat Category, msg string, fields []any) {
	l := current.Load()
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled || level < l.minLevel || l.writer == nil {
		return
	}
	if l.only != nil && !l.only[cat] {
		return
	}

	// 2025-12-06T10:45:00 [ERROR] [store] persist failed kind=phone_book id="a b"
	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&b, " [%s] [%s] %s", level, cat, msg)
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&b, " %v=%s", fields[i], formatField(fields[i+1]))
	}
	if len(fields)%2 != 0 {
		fmt.Fprintf(&b, " %v=<missing>", fields[len(fields)-1])
	}
	b.WriteByte('\n')
	entry := b.String()

	_, _ = io.WriteString(l.writer, entry)
	l.broker.Publish(pubsub.CreatedEvent, entry)
}

// formatField quotes values that would break key=value parsing.
func formatField(v any) string {
	s := fmt.Sprintf("%v", v)
	if s == "" || strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}

// LogEvent carries one formatted entry.
type LogEvent = pubsub.Event[string]

// Subscribe streams formatted log entries until ctx is cancelled.
// Returns nil when logging has not been initialized.
func Subscribe(ctx context.Context) <-chan LogEvent {
	l := current.Load()
	if l == nil {
		return nil
	}
	return l.broker.Subscribe(ctx)
}
