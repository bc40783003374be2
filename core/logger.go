package core

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Level is a log severity, ordered Debug < Info < Warn < Error < Fatal.
// Styled on go-task-runner's structured Logger (core/logger.go in
// go-task-runner: Debug/Info/Warn/Error plus Field key-value pairs),
// generalized into a single replaceable (Level, string) hook with one
// atomic active level, since the scheduler core has exactly one log sink
// rather than a per-runner pluggable Logger interface.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "Debug"
	case LevelInfo:
		return "Info"
	case LevelWarn:
		return "Warn"
	case LevelError:
		return "Error"
	case LevelFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Hook is the process-wide log sink signature.
type Hook func(level Level, msg string)

// defaultHook writes "[<LevelName>]: <message>" to standard output via the
// standard log package, mirroring DefaultLogger.log's use of log.Println
// in go-task-runner. Fatal exits the process, the same as log.Fatal.
func defaultHook(level Level, msg string) {
	out := log.New(os.Stdout, "", 0)
	line := fmt.Sprintf("[%s]: %s", level, msg)
	if level == LevelFatal {
		out.Fatalln(line)
		return
	}
	out.Println(line)
}

var activeLevel atomic.Int32
var currentHook Hook = defaultHook

func init() {
	activeLevel.Store(int32(LevelDebug))
}

// SetLogHook installs a process-wide log hook, replacing the default
// writer. Not thread-safe; install during startup before any scheduler
// update or worker loop is running.
func SetLogHook(h Hook) {
	if h == nil {
		h = defaultHook
	}
	currentHook = h
}

// ClearLogHook restores the default hook. Not thread-safe.
func ClearLogHook() {
	currentHook = defaultHook
}

// SetLogLevel changes the active level; messages below it are dropped.
func SetLogLevel(l Level) {
	activeLevel.Store(int32(l))
}

// LogLevel returns the currently active level.
func LogLevel() Level {
	return Level(activeLevel.Load())
}

func logAt(level Level, format string, args ...any) {
	if level < LogLevel() {
		return
	}
	currentHook(level, fmt.Sprintf(format, args...))
}
