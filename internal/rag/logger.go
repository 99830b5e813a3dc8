package rag

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type AnswerLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	Question   string        `json:"question"`
	NumSources int           `json:"num_sources"`
	Duration   time.Duration `json:"duration_ns"`
	LatencyMs  int64         `json:"latency_ms"`
}

// AnswerLogger appends one JSON line per answered question.
type AnswerLogger struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewAnswerLogger(w io.Writer) *AnswerLogger {
	return &AnswerLogger{writer: w}
}

func NewFileAnswerLogger(path string) (*AnswerLogger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return NewAnswerLogger(io.MultiWriter(os.Stdout, f)), nil
}

func (l *AnswerLogger) Log(entry AnswerLogEntry) {
	entry.Timestamp = time.Now()
	entry.LatencyMs = entry.Duration.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.NewEncoder(l.writer).Encode(entry); err != nil {
		slog.Error("failed to write answer log entry", "error", err)
	}
}
