package logger

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// LogMessage represents a captured log message
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

// TestLogger captures log messages for assertions in tests
type TestLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// NewTestLogger creates a new test logger
func NewTestLogger() *TestLogger {
	return &TestLogger{}
}

func (l *TestLogger) record(level, msg string, fields map[string]interface{}, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, LogMessage{Level: level, Message: msg, Fields: fields, Error: err})
}

func (l *TestLogger) scoped() *scopedTestLogger {
	return &scopedTestLogger{root: l}
}

func (l *TestLogger) Debug(msg string) { l.record("DEBUG", msg, nil, nil) }
func (l *TestLogger) Info(msg string)  { l.record("INFO", msg, nil, nil) }
func (l *TestLogger) Warn(msg string)  { l.record("WARN", msg, nil, nil) }
func (l *TestLogger) Error(msg string) { l.record("ERROR", msg, nil, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.record("DEBUG", msg, fields, nil)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.record("INFO", msg, fields, nil)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.record("WARN", msg, fields, nil)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.record("ERROR", msg, fields, nil)
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.scoped().WithField(key, value)
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return l.scoped().WithFields(fields)
}

func (l *TestLogger) WithError(err error) Logger {
	return l.scoped().WithError(err)
}

func (l *TestLogger) WithContext(ctx context.Context) Logger { return l }

func (l *TestLogger) GetZerolog() *zerolog.Logger { return nil }

// GetMessages returns a copy of all captured messages
func (l *TestLogger) GetMessages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	messages := make([]LogMessage, len(l.messages))
	copy(messages, l.messages)
	return messages
}

// GetMessagesByLevel returns all messages of a specific level
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	var filtered []LogMessage
	for _, msg := range l.GetMessages() {
		if msg.Level == level {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

// HasMessage checks if a message with the given text was logged
func (l *TestLogger) HasMessage(text string) bool {
	for _, msg := range l.GetMessages() {
		if msg.Message == text {
			return true
		}
	}
	return false
}

// CountMessage returns how many times a message with the given text was logged
func (l *TestLogger) CountMessage(text string) int {
	n := 0
	for _, msg := range l.GetMessages() {
		if msg.Message == text {
			n++
		}
	}
	return n
}

// Clear clears all captured messages
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = l.messages[:0]
}

// scopedTestLogger carries fields and an error into every message it records
type scopedTestLogger struct {
	root   *TestLogger
	fields map[string]interface{}
	err    error
}

func (s *scopedTestLogger) merge(extra map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(s.fields)+len(extra))
	for k, v := range s.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func (s *scopedTestLogger) Debug(msg string) { s.root.record("DEBUG", msg, s.merge(nil), s.err) }
func (s *scopedTestLogger) Info(msg string)  { s.root.record("INFO", msg, s.merge(nil), s.err) }
func (s *scopedTestLogger) Warn(msg string)  { s.root.record("WARN", msg, s.merge(nil), s.err) }
func (s *scopedTestLogger) Error(msg string) { s.root.record("ERROR", msg, s.merge(nil), s.err) }

func (s *scopedTestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	s.root.record("DEBUG", msg, s.merge(fields), s.err)
}

func (s *scopedTestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	s.root.record("INFO", msg, s.merge(fields), s.err)
}

func (s *scopedTestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	s.root.record("WARN", msg, s.merge(fields), s.err)
}

func (s *scopedTestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	s.root.record("ERROR", msg, s.merge(fields), s.err)
}

func (s *scopedTestLogger) WithField(key string, value interface{}) Logger {
	return &scopedTestLogger{root: s.root, fields: s.merge(map[string]interface{}{key: value}), err: s.err}
}

func (s *scopedTestLogger) WithFields(fields map[string]interface{}) Logger {
	return &scopedTestLogger{root: s.root, fields: s.merge(fields), err: s.err}
}

func (s *scopedTestLogger) WithError(err error) Logger {
	return &scopedTestLogger{root: s.root, fields: s.fields, err: err}
}

func (s *scopedTestLogger) WithContext(ctx context.Context) Logger { return s }

func (s *scopedTestLogger) GetZerolog() *zerolog.Logger { return nil }
