package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel is the severity of an entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// String returns the conventional upper-case name of the level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

var slogLevels = map[LogLevel]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// SlogLevel maps the level onto its slog equivalent. Unknown levels map to
// INFO rather than dropping entries.
func (l LogLevel) SlogLevel() slog.Level {
	if sl, ok := slogLevels[l]; ok {
		return sl
	}
	return slog.LevelInfo
}

// LogEntry is what an embedding application receives for each log call when
// the package runs in UI mode.
type LogEntry struct {
	Timestamp  time.Time
	Level      LogLevel
	Subsystem  string
	Message    string
	Err        error
	Attributes []slog.Attr
}

const uiChannelBufferSize = 2048

var (
	defaultLogger *slog.Logger
	uiLogChannel  chan LogEntry
	isUIMode      bool
)

// install wires a handler as both the package logger and the process-wide
// slog default, so libraries logging through slog end up in the same place.
func install(handler slog.Handler) {
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// InitForUI switches the package into channel delivery for an embedding
// application that renders log entries itself (e.g. a debug console). The
// returned channel carries every entry regardless of level; the consumer
// filters. Nothing is written to the process streams in this mode.
func InitForUI(filterLevel LogLevel) <-chan LogEntry {
	isUIMode = true
	uiLogChannel = make(chan LogEntry, uiChannelBufferSize)
	install(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: filterLevel.SlogLevel()}))
	return uiLogChannel
}

// InitForCLI routes entries at or above filterLevel to output as slog text.
func InitForCLI(filterLevel LogLevel, output io.Writer) {
	isUIMode = false
	install(slog.NewTextHandler(output, &slog.HandlerOptions{Level: filterLevel.SlogLevel()}))
}

// InitSilent discards all log output. Intended for tests and --quiet runs.
func InitSilent() {
	InitForCLI(LevelError, io.Discard)
}

func logInternal(level LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	// Filtered CLI entries exit before the message is formatted. UI mode
	// never filters here; the consumer decides what to show.
	if !isUIMode && defaultLogger != nil && !defaultLogger.Enabled(context.Background(), level.SlogLevel()) {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	if isUIMode {
		deliverToUI(LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Subsystem: subsystem,
			Message:   msg,
			Err:       err,
		})
		return
	}

	if defaultLogger == nil {
		// A log call before Init* still surfaces somewhere.
		fmt.Fprintf(os.Stderr, "signet logging uninitialized: [%s] %s: %s\n", level, subsystem, msg)
		return
	}

	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	defaultLogger.LogAttrs(context.Background(), level.SlogLevel(), msg, attrs...)
}

// deliverToUI hands the entry to the UI channel without ever blocking the
// logging call site.
func deliverToUI(entry LogEntry) {
	if uiLogChannel == nil {
		fmt.Fprintf(os.Stderr, "signet logging: UI channel missing, dropping: [%s] %s: %s\n",
			entry.Level, entry.Subsystem, entry.Message)
		return
	}
	select {
	case uiLogChannel <- entry:
	default:
		// A full channel means the consumer stalled; dropping the entry
		// beats wedging the flow that logged it.
		fmt.Fprintf(os.Stderr, "signet logging: UI channel full, dropping: [%s] %s: %s\n",
			entry.Level, entry.Subsystem, entry.Message)
	}
}

// Debug records detail useful when diagnosing a flow.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info records normal operation.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn records something off that the process can work around.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error records a failure, attaching err to the entry.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}

// Audit records a security-relevant event at INFO level with a
// SECURITY_AUDIT prefix so log aggregation can filter on it. Attributes
// carry the event details; never pass token material in them.
func Audit(subsystem string, action string, attrs ...slog.Attr) {
	if isUIMode {
		logInternal(LevelInfo, subsystem, nil, "SECURITY_AUDIT: %s", action)
		return
	}
	if defaultLogger == nil || !defaultLogger.Enabled(context.Background(), slog.LevelInfo) {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+1)
	all = append(all, slog.String("subsystem", subsystem))
	all = append(all, attrs...)
	defaultLogger.LogAttrs(context.Background(), slog.LevelInfo, "SECURITY_AUDIT: "+action, all...)
}

// CloseUIChannel closes the UI log channel on shutdown. Entries logged after
// this fall back to stderr.
func CloseUIChannel() {
	if uiLogChannel != nil {
		close(uiLogChannel)
		uiLogChannel = nil
	}
}
