package models

import "time"

// LogLevel is the severity of a pipeline log record.
type LogLevel string

const (
	LevelDebug    LogLevel = "debug"
	LevelInfo     LogLevel = "info"
	LevelWarn     LogLevel = "warn"
	LevelError    LogLevel = "error"
	LevelCritical LogLevel = "critical"
)

// Rank orders levels from least to most severe. Unknown levels rank
// between info and warn so they are kept by default sampling.
func (l LogLevel) Rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 3
	case LevelError:
		return 4
	case LevelCritical:
		return 5
	default:
		return 2
	}
}

// LogRecord is a structured log entry flowing through the aggregation
// pipeline. Processors mutate it in place before it is persisted.
type LogRecord struct {
	Timestamp   time.Time              `json:"timestamp"`
	Level       LogLevel               `json:"level"`
	Message     string                 `json:"message"`
	Service     string                 `json:"service,omitempty"`
	Environment string                 `json:"environment,omitempty"`
	Version     string                 `json:"version,omitempty"`
	TraceID     string                 `json:"trace_id,omitempty"`
	SpanID      string                 `json:"span_id,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
	RequestID   string                 `json:"request_id,omitempty"`
	Host        string                 `json:"host,omitempty"`
	PID         int                    `json:"pid,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Source      string                 `json:"source,omitempty"`
}

// LogQuery filters persisted log records. Zero-valued fields match
// everything.
type LogQuery struct {
	Level     LogLevel  `json:"level,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Contains  string    `json:"contains,omitempty"`
	Since     time.Time `json:"since,omitempty"`
	Until     time.Time `json:"until,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}
