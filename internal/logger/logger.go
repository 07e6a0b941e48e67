package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const backgroundID = "xxxxxxxx"

var (
	mu   sync.RWMutex
	base = newBase(os.Stderr)
)

func newBase(w io.Writer) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime, NoColor: !isTerminal(w)}
	return zerolog.New(out).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetOutput redirects every component logger to w
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = newBase(w)
}

// SetLevel sets the global minimum level (debug, info, warn, error)
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// Logger provides structured logging across the application
type Logger struct {
	component string
}

// New creates a new logger for a specific component
func New(component string) *Logger {
	return &Logger{component: component}
}

// GenerateID creates a short unique identifier for request/operation tracing
func GenerateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (l *Logger) event(level zerolog.Level) *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return base.WithLevel(level).Str("component", l.component)
}

// Log writes a structured log message tagged with the operation id
func (l *Logger) Log(id string, level zerolog.Level, message string, args ...interface{}) {
	l.event(level).Str("id", id).Msgf(message, args...)
}

// Debug logs debug level messages
func (l *Logger) Debug(id, message string, args ...interface{}) {
	l.Log(id, zerolog.DebugLevel, message, args...)
}

// Info logs info level messages
func (l *Logger) Info(id, message string, args ...interface{}) {
	l.Log(id, zerolog.InfoLevel, message, args...)
}

// Warn logs warning level messages
func (l *Logger) Warn(id, message string, args ...interface{}) {
	l.Log(id, zerolog.WarnLevel, message, args...)
}

// Error logs error level messages
func (l *Logger) Error(id, message string, args ...interface{}) {
	l.Log(id, zerolog.ErrorLevel, message, args...)
}

// DebugBg logs debug messages for operations without an id
func (l *Logger) DebugBg(message string, args ...interface{}) {
	l.Log(backgroundID, zerolog.DebugLevel, message, args...)
}

// InfoBg logs info messages for operations without an id
func (l *Logger) InfoBg(message string, args ...interface{}) {
	l.Log(backgroundID, zerolog.InfoLevel, message, args...)
}

// WarnBg logs warning messages for operations without an id
func (l *Logger) WarnBg(message string, args ...interface{}) {
	l.Log(backgroundID, zerolog.WarnLevel, message, args...)
}

// ErrorBg logs error messages for operations without an id
func (l *Logger) ErrorBg(message string, args ...interface{}) {
	l.Log(backgroundID, zerolog.ErrorLevel, message, args...)
}
