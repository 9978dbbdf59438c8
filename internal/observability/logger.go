package observability

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeCommand     EventType = "command"
	EventTypeStep        EventType = "step"
	EventTypeSource      EventType = "source"
	EventTypeLLM         EventType = "llm"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeHeartbeat   EventType = "heartbeat"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	Session   string    `json:"session,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Step      int       `json:"step"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	Z          *zap.Logger
	llmLogPath string
	maxSize    int64

	// mu serializes the stat, rotate and append sequence of the LLM log.
	mu sync.Mutex
}

// NewLogger builds a production JSON logger. A nil writer logs to stderr.
func NewLogger(verbose bool, w io.Writer) (*Logger, error) {
	var z *zap.Logger
	if w == nil {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		z, err = config.Build()
		if err != nil {
			return nil, err
		}
	} else {
		level := zapcore.InfoLevel
		if verbose {
			level = zapcore.DebugLevel
		}
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(w),
			level,
		)
		z = zap.New(core)
	}
	return &Logger{
		Z:          z,
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}, nil
}

// NewNopLogger discards every event. The llm.jsonl file is not written.
func NewNopLogger() *Logger {
	return &Logger{Z: zap.NewNop()}
}

// WithLLMLog redirects the LLM exchange log. An empty path disables it.
func (l *Logger) WithLLMLog(path string, maxSize int64) *Logger {
	l.llmLogPath = path
	l.maxSize = maxSize
	return l
}

func (l *Logger) Sync() {
	_ = l.Z.Sync()
}

// Log emits a structured event.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	l.Z.Info(string(evt.Type),
		zap.String("session", evt.Session),
		zap.String("run_id", evt.RunID),
		zap.Int("step", evt.Step),
		zap.Any("data", evt.Data),
	)

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		data, err := json.Marshal(evt)
		if err != nil {
			l.Z.Warn("failed to marshal event", zap.Error(err))
			return
		}
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && l.maxSize > 0 && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogCommand(session, runID, command string, step int) {
	l.Log(Event{
		Type:    EventTypeCommand,
		Session: session,
		RunID:   runID,
		Step:    step,
		Data:    map[string]string{"command": command},
	})
}

func (l *Logger) LogStep(session, runID string, step int, title, outcome string) {
	l.Log(Event{
		Type:    EventTypeStep,
		Session: session,
		RunID:   runID,
		Step:    step,
		Data: map[string]string{
			"title":   title,
			"outcome": outcome,
		},
	})
}

func (l *Logger) LogSource(session, runID string, step int, source string, bytes int, dur time.Duration, err error) {
	data := map[string]any{
		"source":      source,
		"bytes":       bytes,
		"duration_ms": dur.Milliseconds(),
	}
	if err != nil {
		data["error"] = err.Error()
		l.Z.Warn("data source failed", zap.String("source", source), zap.Error(err))
	}
	l.Log(Event{
		Type:    EventTypeSource,
		Session: session,
		RunID:   runID,
		Step:    step,
		Data:    data,
	})
}

func (l *Logger) LogPolicy(session string, step int, subject, effect, reason string) {
	l.Log(Event{
		Type:    EventTypePolicyCheck,
		Session: session,
		Step:    step,
		Data: map[string]string{
			"subject": subject,
			"effect":  effect,
			"reason":  reason,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(session, runID string, step int, agent string, prompt any, response string, dur time.Duration) {
	l.Log(Event{
		Type:    EventTypeLLM,
		Session: session,
		RunID:   runID,
		Step:    step,
		Data: map[string]any{
			"agent":       agent,
			"prompt":      prompt,
			"response":    response,
			"duration_ms": dur.Milliseconds(),
		},
	})
}
