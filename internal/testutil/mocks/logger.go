package mocks

import (
	"sync"

	"github.com/peiffer1998/EIPR-Portal-sub001/internal/domain/ports"
)

// LogEntry is one captured log call
type LogEntry struct {
	Level   string
	Message string
	Fields  []ports.Field
}

// RecordingLogger captures log calls so tests can assert on warnings
type RecordingLogger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

func (l *RecordingLogger) record(level, msg string, fields []ports.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Message: msg, Fields: fields})
}

func (l *RecordingLogger) Info(msg string, fields ...ports.Field)  { l.record("info", msg, fields) }
func (l *RecordingLogger) Error(msg string, fields ...ports.Field) { l.record("error", msg, fields) }
func (l *RecordingLogger) Warn(msg string, fields ...ports.Field)  { l.record("warn", msg, fields) }
func (l *RecordingLogger) Debug(msg string, fields ...ports.Field) { l.record("debug", msg, fields) }

// Count returns how many entries were logged at level
func (l *RecordingLogger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
