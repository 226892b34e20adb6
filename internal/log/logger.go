package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger tagged with the component that owns it. The
// component attribute is attached once; base keeps the untagged logger so
// WithComponent never stacks two component keys.
type Logger struct {
	*slog.Logger
	base      *slog.Logger
	component string
}

type Config struct {
	Level     slog.Level
	Component string
	// Handler overrides the default stdout text handler.
	Handler slog.Handler
}

func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo, Component: ComponentApp}
}

func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = NewHandler(os.Stdout, "text", config.Level)
	}
	return wrap(slog.New(handler), config.Component)
}

func wrap(base *slog.Logger, component string) *Logger {
	l := &Logger{base: base, component: component, Logger: base}
	if component != "" {
		l.Logger = base.With(FieldComponent, component)
	}
	return l
}

// With returns a logger carrying args in addition to the component.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		base:      l.base.With(args...),
		component: l.component,
	}
}

// WithComponent retags the logger, keeping attributes added through With.
func (l *Logger) WithComponent(component string) *Logger {
	return wrap(l.base, component)
}

func (l *Logger) Component() string {
	return l.component
}

// SetDefault installs the untagged logger as the slog default; package
// level slog calls name their own component.
func SetDefault(l *Logger) {
	slog.SetDefault(l.base)
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// NewHandler builds a text handler, or a JSON handler when format is "json".
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
