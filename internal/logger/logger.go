// Package logger provides clipcore's structured JSON logger. Every
// component (crypto, transport, sync, pairing) logs through the Logger
// interface rather than the standard library's log package, so fields
// stay machine-parseable and the severity threshold is adjustable at
// runtime.
package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level is a log severity, ordered so comparisons (level < threshold)
// decide whether an entry is emitted.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if l < DebugLevel || l > FatalLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a case-insensitive level name to a Level, defaulting
// to InfoLevel for anything unrecognized.
func ParseLevel(name string) Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Field is one key/value pair attached to a log entry. Fields are kept
// in a slice, not a map, so entries render with a stable field order
// instead of Go's randomized map iteration order.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field            { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field          { return Field{Key: key, Value: value} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d.String()} }
func Any(key string, value interface{}) Field    { return Field{Key: key, Value: value} }

// Error creates an "error" field from err, rendering nil as a JSON null
// rather than omitting the key, so log scrapers can still match on it.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

type contextKey int

const (
	requestIDKey contextKey = iota
	traceIDKey
)

// WithRequestID attaches a request identifier that Logger.WithContext
// will surface as the "request_id" field on every entry logged through
// the returned context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithTraceID attaches a trace identifier, surfaced as "trace_id".
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// Logger is the structured logging contract every clipcore package logs
// through.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	WithContext(ctx context.Context) Logger
	WithFields(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// JSONLogger is the production Logger implementation: one JSON object
// per line, written to an io.Writer under a mutex so concurrent callers
// (the sync engine, the transport read loop, the sweeper) never
// interleave partial lines.
type JSONLogger struct {
	mu          sync.Mutex
	level       Level
	out         io.Writer
	ctx         context.Context
	fields      []Field
	timeFormat  string
	includeCall bool
}

// NewLogger constructs a JSONLogger writing to out at the given
// threshold. Caller-location annotation is on by default; disable it
// with DisableCallerInfo for hot paths where runtime.Caller's cost
// matters.
func NewLogger(out io.Writer, level Level) *JSONLogger {
	return &JSONLogger{
		out:         out,
		level:       level,
		timeFormat:  time.RFC3339Nano,
		includeCall: true,
	}
}

// NewDefaultLogger builds a JSONLogger writing to stdout at the
// threshold named by CLIPCORE_LOG_LEVEL (default: info).
func NewDefaultLogger() *JSONLogger {
	return NewLogger(os.Stdout, ParseLevel(os.Getenv("CLIPCORE_LOG_LEVEL")))
}

// DisableCallerInfo turns off the "caller"/"function" fields.
func (l *JSONLogger) DisableCallerInfo() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.includeCall = false
}

// SetTimeFormat changes the timestamp layout (default time.RFC3339Nano).
func (l *JSONLogger) SetTimeFormat(layout string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timeFormat = layout
}

func (l *JSONLogger) Debug(msg string, fields ...Field) { l.emit(DebugLevel, msg, fields) }
func (l *JSONLogger) Info(msg string, fields ...Field)  { l.emit(InfoLevel, msg, fields) }
func (l *JSONLogger) Warn(msg string, fields ...Field)  { l.emit(WarnLevel, msg, fields) }
func (l *JSONLogger) Error(msg string, fields ...Field) { l.emit(ErrorLevel, msg, fields) }

// Fatal logs at FatalLevel and terminates the process. Reserved for
// unrecoverable startup failures (bad config, unopenable store); never
// call it from request-scoped code such as the sync engine or transport
// read loop.
func (l *JSONLogger) Fatal(msg string, fields ...Field) {
	l.emit(FatalLevel, msg, fields)
	os.Exit(1)
}

func (l *JSONLogger) WithContext(ctx context.Context) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &JSONLogger{
		level:       l.level,
		out:         l.out,
		ctx:         ctx,
		fields:      l.fields,
		timeFormat:  l.timeFormat,
		includeCall: l.includeCall,
	}
}

func (l *JSONLogger) WithFields(fields ...Field) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &JSONLogger{
		level:       l.level,
		out:         l.out,
		ctx:         l.ctx,
		fields:      append(append([]Field{}, l.fields...), fields...),
		timeFormat:  l.timeFormat,
		includeCall: l.includeCall,
	}
}

func (l *JSONLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *JSONLogger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// emit builds and writes one log line. Snapshot the logger's mutable
// state under the lock, then do the (potentially slow) caller lookup
// and JSON encoding outside it so one logger instance doesn't serialize
// every goroutine's formatting work, only its writes.
func (l *JSONLogger) emit(level Level, msg string, fields []Field) {
	l.mu.Lock()
	threshold := l.level
	out := l.out
	ctx := l.ctx
	base := l.fields
	timeFormat := l.timeFormat
	includeCall := l.includeCall
	l.mu.Unlock()

	if level < threshold {
		return
	}

	ordered := make([]Field, 0, len(base)+len(fields)+6)
	ordered = append(ordered,
		Field{"timestamp", time.Now().Format(timeFormat)},
		Field{"level", level.String()},
		Field{"message", msg},
	)

	if includeCall {
		if pc, file, line, ok := runtime.Caller(2); ok {
			ordered = append(ordered, Field{"caller", fmt.Sprintf("%s:%d", file, line)})
			if fn := runtime.FuncForPC(pc); fn != nil {
				ordered = append(ordered, Field{"function", fn.Name()})
			}
		}
	}

	if ctx != nil {
		if v := ctx.Value(requestIDKey); v != nil {
			ordered = append(ordered, Field{"request_id", v})
		}
		if v := ctx.Value(traceIDKey); v != nil {
			ordered = append(ordered, Field{"trace_id", v})
		}
	}

	ordered = append(ordered, base...)
	ordered = append(ordered, fields...)

	line, err := encodeLine(ordered)
	if err != nil {
		fmt.Fprintf(out, `{"level":"ERROR","message":"failed to encode log entry","error":%q}`+"\n", err.Error())
		return
	}
	out.Write(line)
}

// encodeLine renders fields as a single-line JSON object, in field
// order, last-write-wins on duplicate keys (matching how base fields
// and call-site fields are merged by emit).
func encodeLine(fields []Field) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	seen := make(map[string]int, len(fields))
	written := make([][]byte, 0, len(fields))

	for _, f := range fields {
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			val, _ = json.Marshal(fmt.Sprintf("%v", f.Value))
		}
		pair := append(append(key, ':'), val...)
		if idx, ok := seen[f.Key]; ok {
			written[idx] = pair
			continue
		}
		seen[f.Key] = len(written)
		written = append(written, pair)
	}

	for i, pair := range written {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(pair)
	}
	buf.WriteByte('}')
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewDefaultLogger()
)

// SetDefaultLogger replaces the package-level default logger used by
// Debug/Info/Warn/ErrorMsg/Fatal.
func SetDefaultLogger(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// GetDefaultLogger returns the current package-level default logger.
func GetDefaultLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

func Debug(msg string, fields ...Field)    { GetDefaultLogger().Debug(msg, fields...) }
func Info(msg string, fields ...Field)     { GetDefaultLogger().Info(msg, fields...) }
func Warn(msg string, fields ...Field)     { GetDefaultLogger().Warn(msg, fields...) }
func ErrorMsg(msg string, fields ...Field) { GetDefaultLogger().Error(msg, fields...) }
func Fatal(msg string, fields ...Field)    { GetDefaultLogger().Fatal(msg, fields...) }
