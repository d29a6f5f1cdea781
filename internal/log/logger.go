// Package log builds the slog loggers the binaries and the web server use.
// Every logger is tagged with the component it belongs to, so lines from the
// downloader, the worker, and the UI stay distinguishable in a shared log.
package log

import (
	"log/slog"
	"os"
)

// Logger is a slog.Logger whose lines carry a component attribute.
type Logger struct {
	*slog.Logger
	component string
}

// Config selects the component tag, the minimum level, and optionally the
// handler. A nil Handler logs text to stdout.
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

// New builds a component-tagged logger.
func New(cfg Config) *Logger {
	component := cfg.Component
	if component == "" {
		component = ComponentApp
	}
	handler := cfg.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level})
	}
	return &Logger{
		Logger:    slog.New(handler).With(FieldComponent, component),
		component: component,
	}
}

// Component reports which component this logger is tagged with.
func (l *Logger) Component() string {
	return l.component
}

// SetDefault installs this logger as the process-wide slog default.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}
