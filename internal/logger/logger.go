package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps LOG_LEVEL values to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes category-tagged, colorized lines. It is safe for concurrent use.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	file  *os.File
	level Level

	debug   func(a ...interface{}) string
	info    func(a ...interface{}) string
	warn    func(a ...interface{}) string
	err     func(a ...interface{}) string
	process func(a ...interface{}) string
	db      func(a ...interface{}) string
	kafka   func(a ...interface{}) string
	api     func(a ...interface{}) string
	sec     func(a ...interface{}) string
	ticket  func(a ...interface{}) string
}

// NewLogger logs to stdout and, when LOG_FILE is set, to that file as well.
func NewLogger() *Logger {
	l := New(os.Stdout, ParseLevel(os.Getenv("LOG_LEVEL")))

	if path := os.Getenv("LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			l.Warn("LOGGER", fmt.Sprintf("Could not open log file %s: %v", path, err))
			return l
		}
		l.file = f
		l.out = io.MultiWriter(os.Stdout, f)
	}
	return l
}

func New(out io.Writer, level Level) *Logger {
	return &Logger{
		out:     out,
		level:   level,
		debug:   color.New(color.FgHiBlack).SprintFunc(),
		info:    color.New(color.FgGreen).SprintFunc(),
		warn:    color.New(color.FgYellow).SprintFunc(),
		err:     color.New(color.FgRed, color.Bold).SprintFunc(),
		process: color.New(color.FgCyan).SprintFunc(),
		db:      color.New(color.FgBlue).SprintFunc(),
		kafka:   color.New(color.FgMagenta).SprintFunc(),
		api:     color.New(color.FgHiWhite).SprintFunc(),
		sec:     color.New(color.FgHiRed).SprintFunc(),
		ticket:  color.New(color.FgHiCyan).SprintFunc(),
	}
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return New(io.Discard, LevelError+1)
}

func (l *Logger) write(level Level, tag func(a ...interface{}) string, label, category, msg string) {
	if l == nil || level < l.level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s [%s] %s\n", ts, tag(label), category, msg)
}

func (l *Logger) Debug(category, msg string) {
	l.write(LevelDebug, l.debug, "DEBUG", category, msg)
}

func (l *Logger) Info(category, msg string) {
	l.write(LevelInfo, l.info, "INFO ", category, msg)
}

func (l *Logger) Warn(category, msg string) {
	l.write(LevelWarn, l.warn, "WARN ", category, msg)
}

func (l *Logger) Error(category, msg string) {
	l.write(LevelError, l.err, "ERROR", category, msg)
}

func (l *Logger) Fatal(category, msg string) {
	l.write(LevelError, l.err, "FATAL", category, msg)
	l.Close()
	os.Exit(1)
}

func (l *Logger) LogProcess(category, msg string) {
	l.write(LevelInfo, l.process, "PROC ", category, msg)
}

func (l *Logger) LogDatabase(operation, database, msg string) {
	l.write(LevelDebug, l.db, "DB   ", database+":"+operation, msg)
}

func (l *Logger) LogKafka(operation, topic, msg string) {
	l.write(LevelDebug, l.kafka, "KAFKA", topic+":"+operation, msg)
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.write(LevelInfo, l.api, "API  ", method, fmt.Sprintf("%s -> %s (%s)", path, status, duration))
}

func (l *Logger) LogSecurity(event, msg string) {
	l.write(LevelWarn, l.sec, "SEC  ", event, msg)
}

func (l *Logger) LogBooking(operation string, eventID int64, msg string) {
	l.write(LevelInfo, l.ticket, "BOOK ", fmt.Sprintf("%s event=%d", operation, eventID), msg)
}

func (l *Logger) LogCheckin(status, gate, msg string) {
	l.write(LevelInfo, l.ticket, "SCAN ", status+"@"+gate, msg)
}

func (l *Logger) Close() {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.file.Close()
	l.file = nil
}
