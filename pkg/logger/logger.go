package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger is the leveled key/value logger used across the service
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

type stdLogger struct {
	out    *log.Logger
	errOut *log.Logger
	level  level
}

// New creates a logger that writes to stdout/stderr at the given level.
// Unknown level strings fall back to info.
func New(lvl string) Logger {
	var l level

	switch strings.ToLower(lvl) {
	case "debug":
		l = levelDebug
	case "info":
		l = levelInfo
	case "warn":
		l = levelWarn
	case "error":
		l = levelError
	default:
		l = levelInfo
	}

	return &stdLogger{
		out:    log.New(os.Stdout, "", log.Ldate|log.Ltime),
		errOut: log.New(os.Stderr, "", log.Ldate|log.Ltime),
		level:  l,
	}
}

func (l *stdLogger) Debug(msg string, keyvals ...interface{}) {
	if l.level <= levelDebug {
		l.out.Println("DEBUG " + format(msg, keyvals...))
	}
}

func (l *stdLogger) Info(msg string, keyvals ...interface{}) {
	if l.level <= levelInfo {
		l.out.Println("INFO " + format(msg, keyvals...))
	}
}

func (l *stdLogger) Warn(msg string, keyvals ...interface{}) {
	if l.level <= levelWarn {
		l.out.Println("WARN " + format(msg, keyvals...))
	}
}

func (l *stdLogger) Error(msg string, keyvals ...interface{}) {
	if l.level <= levelError {
		l.errOut.Println("ERROR " + format(msg, keyvals...))
	}
}

func format(msg string, keyvals ...interface{}) string {
	if len(keyvals) == 0 {
		return msg
	}

	var b strings.Builder
	b.WriteString(msg)

	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprintf("%v", keyvals[i])
		value := "missing"

		if i+1 < len(keyvals) {
			value = fmt.Sprintf("%v", keyvals[i+1])
		}

		b.WriteString(" " + key + "=" + value)
	}

	return b.String()
}

// NewNop returns a logger that discards everything. Useful in tests.
func NewNop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
