// Package logger provides the tint-backed structured logger used by the
// optional telemetry facade. It is adapted from the teacher's
// internal/logger.go; unlike the teacher, it never falls back to a
// package-level default logger, since the library may not own global
// state (spec.md §5).
package logger

import (
	"log/slog"
	"os"
	"runtime"

	"github.com/lmittmann/tint"
	colorable "github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Logger wraps slog.Logger with the component/name attributes every log
// line from this library carries.
type Logger struct {
	*slog.Logger

	component string
	name      string
}

// New builds a Logger for the given component kind and instance name.
func New(component, name string) *Logger {
	var handler slog.Handler

	if runtime.GOOS == "windows" {
		w := colorable.NewColorableStdout()
		handler = tint.NewHandler(w, nil)
	} else {
		w := os.Stderr
		handler = tint.NewHandler(w, &tint.Options{
			NoColor: !isatty.IsTerminal(w.Fd()),
		})
	}

	return &Logger{
		Logger: slog.New(handler),

		component: component,
		name:      name,
	}
}

func (l *Logger) info() slog.Attr {
	return slog.Group("info", slog.String("component", l.component), slog.String("name", l.name))
}

func (l *Logger) args(args ...any) []any {
	return append([]any{l.info()}, args...)
}

// Info logs at info level with the component/name attributes attached.
func (l *Logger) Info(msg string, args ...any) {
	l.Logger.Info(msg, l.args(args...)...)
}

// Warn logs at warn level with the component/name attributes attached.
func (l *Logger) Warn(msg string, args ...any) {
	l.Logger.Warn(msg, l.args(args...)...)
}

// Error logs at error level, tagging err via tint.Err so it renders in
// the distinguishing color tint reserves for errors.
func (l *Logger) Error(msg string, err error, args ...any) {
	tagged := append([]any{tint.Err(err)}, args...)
	l.Logger.Error(msg, l.args(tagged...)...)
}
