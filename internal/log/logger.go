// Package log provides a global leveled logger for development diagnostics.
// Application-facing glove traffic is reported through the link's log-entry
// callback, not through this package.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type Level int

const (
	LevelNone    Level = iota // Disables logging.
	LevelError                // Failures that are not expected during normal use.
	LevelWarning              // Anomalies that occur occasionally during normal use.
	LevelInfo                 // Major events, such as connection state changes.
	LevelDebug                // Detailed transport IO.
)

var (
	mu     sync.Mutex
	level  Level
	output io.Writer = os.Stderr
)

var labels = map[Level]string{
	LevelDebug:   "[debug]",
	LevelInfo:    "[info ]",
	LevelWarning: "[warn ]",
	LevelError:   "[error]",
}

// SetLevel sets the global logging level. The default level suppresses all
// output.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetOutput redirects log output. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func write(l Level, format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if l > level {
		return
	}
	msg := fmt.Sprintf("%s %s ", time.Now().Format(time.RFC3339), labels[l])
	msg += fmt.Sprintf(format, a...)
	fmt.Fprintln(output, msg)
}

func Debug(format string, a ...interface{}) {
	write(LevelDebug, format, a...)
}

func Info(format string, a ...interface{}) {
	write(LevelInfo, format, a...)
}

func Warning(format string, a ...interface{}) {
	write(LevelWarning, format, a...)
}

func Error(format string, a ...interface{}) {
	write(LevelError, format, a...)
}
