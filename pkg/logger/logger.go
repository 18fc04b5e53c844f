package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var (
	// logger is the global logger instance
	logger *Logger
	once   sync.Once
)

// Logger wraps logrus with color helpers
type Logger struct {
	*logrus.Logger
	green  *color.Color
	red    *color.Color
	yellow *color.Color
}

// New returns the process-wide logger writing to stderr.
// DEBUG=true enables debug level.
func New() *Logger {
	once.Do(func() {
		logger = NewWithOutput(os.Stderr, os.Getenv("DEBUG") == "true")
	})
	return logger
}

// NewWithOutput creates a standalone logger writing to w
func NewWithOutput(w io.Writer, debug bool) *Logger {
	l := &Logger{
		Logger: logrus.New(),
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
	}

	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006/01/02 15:04:05",
		FullTimestamp:   true,
		ForceColors:     isTerminal(w),
		DisableSorting:  true,
	})

	if debug {
		l.SetLevel(logrus.DebugLevel)
		l.Logger.Debug("Debug logging enabled")
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// SetDebug toggles debug level at runtime
func (l *Logger) SetDebug(debug bool) {
	if debug {
		l.SetLevel(logrus.DebugLevel)
		return
	}
	l.SetLevel(logrus.InfoLevel)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.Logger.Debug(fmt.Sprintf(format, args...))
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Logger.Info(fmt.Sprintf(format, args...))
}

// Success logs an info message in green
func (l *Logger) Success(format string, args ...interface{}) {
	l.Logger.Info(l.green.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.Logger.Warn(l.yellow.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Logger.Error(l.red.Sprintf(format, args...))
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.Logger.Fatal(fmt.Sprintf(format, args...))
}

// IsDebugEnabled returns whether debug logging is enabled
func (l *Logger) IsDebugEnabled() bool {
	return l.GetLevel() == logrus.DebugLevel
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
