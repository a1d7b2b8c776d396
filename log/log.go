// Package log provides the leveled, key-value structured logger used
// throughout chain-node. Call sites pass a message followed by alternating
// key/value pairs, e.g. log.Warn("block rejected", "height", h, "reason", r).
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a logging severity.
type Level int

const (
	LevelCrit Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelCrit:
		return "CRIT"
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

// Handler renders a single log record.
type Handler interface {
	Log(rec Record)
}

// Record is one structured log event.
type Record struct {
	Time    time.Time
	Level   Level
	Module  string
	Msg     string
	Ctx     []interface{}
}

// Logger is a bound logger for a module, mirroring the teacher's
// package-scoped logger-per-file idiom (get_logger(__name__) in the
// original Python source).
type Logger struct {
	module string
}

var (
	mu      sync.RWMutex
	level   = LevelInfo
	handler Handler = NewTerminalHandler(os.Stdout)
)

// SetLevel sets the process-wide minimum severity that reaches the handler.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetHandler replaces the process-wide handler, e.g. to switch to JSON
// output or attach log-file rotation.
func SetHandler(h Handler) {
	mu.Lock()
	defer mu.Unlock()
	handler = h
}

// New returns a logger bound to module, the Go analogue of
// get_logger(__name__) in the original Python sources.
func New(module string) *Logger {
	return &Logger{module: module}
}

func (lg *Logger) log(lvl Level, msg string, ctx ...interface{}) {
	mu.RLock()
	curLevel, h := level, handler
	mu.RUnlock()
	if lvl > curLevel {
		return
	}
	h.Log(Record{Time: time.Now().UTC(), Level: lvl, Module: lg.module, Msg: msg, Ctx: ctx})
}

func (lg *Logger) Crit(msg string, ctx ...interface{})  { lg.log(LevelCrit, msg, ctx...) }
func (lg *Logger) Error(msg string, ctx ...interface{}) { lg.log(LevelError, msg, ctx...) }
func (lg *Logger) Warn(msg string, ctx ...interface{})  { lg.log(LevelWarn, msg, ctx...) }
func (lg *Logger) Info(msg string, ctx ...interface{})  { lg.log(LevelInfo, msg, ctx...) }
func (lg *Logger) Debug(msg string, ctx ...interface{}) { lg.log(LevelDebug, msg, ctx...) }
func (lg *Logger) Trace(msg string, ctx ...interface{}) { lg.log(LevelTrace, msg, ctx...) }

// root is the process-wide default logger, mirroring package-level
// logger.info(...) usage seen throughout the original sources.
var root = New("root")

func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }

// terminalHandler renders human-readable, optionally colored lines —
// color is only enabled when the underlying writer is a real TTY.
type terminalHandler struct {
	mu     sync.Mutex
	out    io.Writer
	color  bool
}

// NewTerminalHandler builds a handler for interactive/dev use. Color is
// auto-detected via go-isatty and rendered via go-colorable so it also
// behaves correctly on Windows consoles.
func NewTerminalHandler(w io.Writer) Handler {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return &terminalHandler{out: w, color: color}
}

var levelColor = map[Level]string{
	LevelCrit:  "\x1b[35m",
	LevelError: "\x1b[31m",
	LevelWarn:  "\x1b[33m",
	LevelInfo:  "\x1b[32m",
	LevelDebug: "\x1b[36m",
	LevelTrace: "\x1b[90m",
}

const colorReset = "\x1b[0m"

func (h *terminalHandler) Log(rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ts := rec.Time.Format("2006-01-02T15:04:05.000Z07:00")
	lvl := rec.Level.String()
	if h.color {
		lvl = levelColor[rec.Level] + lvl + colorReset
	}
	fmt.Fprintf(h.out, "%s [%s] %-20s %s", ts, lvl, rec.Module, rec.Msg)
	for i := 0; i+1 < len(rec.Ctx); i += 2 {
		fmt.Fprintf(h.out, " %v=%v", rec.Ctx[i], rec.Ctx[i+1])
	}
	fmt.Fprintln(h.out)
}

// jsonHandler renders newline-delimited JSON, the production-friendly
// counterpart to StructuredLogFormatter in the original Python sources.
type jsonHandler struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONHandler builds a JSON-lines handler.
func NewJSONHandler(w io.Writer) Handler {
	return &jsonHandler{out: w}
}

// NewRotatingJSONHandler builds a JSON-lines handler that rotates the
// underlying file via lumberjack once it exceeds maxSizeMB.
func NewRotatingJSONHandler(path string, maxSizeMB, maxBackups, maxAgeDays int) Handler {
	return &jsonHandler{out: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}}
}

func (h *jsonHandler) Log(rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fmt.Fprintf(h.out, `{"timestamp":%q,"level":%q,"logger":%q,"message":%q`,
		rec.Time.Format(time.RFC3339Nano), rec.Level.String(), rec.Module, rec.Msg)
	for i := 0; i+1 < len(rec.Ctx); i += 2 {
		fmt.Fprintf(h.out, `,%q:%q`, fmt.Sprint(rec.Ctx[i]), fmt.Sprint(rec.Ctx[i+1]))
	}
	fmt.Fprintln(h.out, "}")
}
