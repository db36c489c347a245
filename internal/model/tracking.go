package model

import (
	"sync"
	"time"
)

// StageMetrics represents metrics for a specific pipeline stage
type StageMetrics struct {
	StageName        string        `json:"stage_name"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	Duration         time.Duration `json:"duration"`
	RecordsProcessed int64         `json:"records_processed"`
	Status           string        `json:"status"` // running, completed, failed
	Error            string        `json:"error,omitempty"`
}

// ErrorDetail represents a detailed error with context
type ErrorDetail struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// LogEntry is one persisted pipeline log line.
type LogEntry struct {
	RunID     string    `json:"run_id"`
	Level     string    `json:"level"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RunTracker accumulates stage metrics and errors of one run.
type RunTracker struct {
	RunID        string                  `json:"run_id"`
	StartTime    time.Time               `json:"start_time"`
	EndTime      time.Time               `json:"end_time"`
	Status       RunStatus               `json:"status"`
	StageMetrics map[string]StageMetrics `json:"stage_metrics"`
	Errors       []ErrorDetail           `json:"errors"`
	Mutex        sync.RWMutex            `json:"-"`
}
