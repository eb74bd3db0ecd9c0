package model

import (
	"fmt"
	"strings"
	"time"
)

// LogLevel is the severity of a task log line.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Valid returns true when the level is known.
func (l LogLevel) Valid() bool {
	switch l {
	case LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// TaskLog is an append-only log line of a task.
type TaskLog struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate validates the log line.
func (l TaskLog) Validate() error {
	if l.TaskID == "" {
		return fmt.Errorf("task id is required: %w", ErrNotValid)
	}
	if !l.Level.Valid() {
		return fmt.Errorf("unknown log level %q: %w", l.Level, ErrNotValid)
	}
	if strings.TrimSpace(l.Message) == "" {
		return fmt.Errorf("message is required: %w", ErrNotValid)
	}
	return nil
}

// TaskEvent is a human readable timeline entry of a task.
type TaskEvent struct {
	ID        int64          `json:"id"`
	TaskID    string         `json:"task_id"`
	EventType string         `json:"event_type"`
	Title     string         `json:"title"`
	Details   map[string]any `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
}

// Validate validates the timeline event.
func (e TaskEvent) Validate() error {
	if e.TaskID == "" {
		return fmt.Errorf("task id is required: %w", ErrNotValid)
	}
	if strings.TrimSpace(e.EventType) == "" {
		return fmt.Errorf("event type is required: %w", ErrNotValid)
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("title is required: %w", ErrNotValid)
	}
	return nil
}

// AgentStatus is the state of a sub-agent delegation.
type AgentStatus string

const (
	AgentStatusPending   AgentStatus = "pending"
	AgentStatusRunning   AgentStatus = "running"
	AgentStatusCompleted AgentStatus = "completed"
	AgentStatusFailed    AgentStatus = "failed"
)

// Valid returns true when the agent status is known.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusPending, AgentStatusRunning, AgentStatusCompleted, AgentStatusFailed:
		return true
	}
	return false
}

// TaskAgent is a sub-agent delegation spawned by a task.
type TaskAgent struct {
	// ID is the store identity of the delegation, AgentID is the external agent.
	ID          int64       `json:"id"`
	TaskID      string      `json:"task_id"`
	AgentID     string      `json:"agent_id"`
	SessionKey  *string     `json:"session_key"`
	Status      AgentStatus `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at"`
	Cost        float64     `json:"cost"`
}

// Validate validates the delegation.
func (a TaskAgent) Validate() error {
	if a.TaskID == "" {
		return fmt.Errorf("task id is required: %w", ErrNotValid)
	}
	if strings.TrimSpace(a.AgentID) == "" {
		return fmt.Errorf("agent id is required: %w", ErrNotValid)
	}
	if !a.Status.Valid() {
		return fmt.Errorf("unknown agent status %q: %w", a.Status, ErrNotValid)
	}
	if a.Cost < 0 {
		return fmt.Errorf("cost can't be negative: %w", ErrNotValid)
	}
	return nil
}

// AgentUpdate is a partial update of a delegation, nil fields are left untouched.
type AgentUpdate struct {
	Status      *AgentStatus `json:"status,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Cost        *float64     `json:"cost,omitempty"`
}

// Empty returns true when the update doesn't change anything.
func (u AgentUpdate) Empty() bool {
	return u.Status == nil && u.StartedAt == nil && u.CompletedAt == nil && u.Cost == nil
}

// Validate validates the update.
func (u AgentUpdate) Validate() error {
	if u.Empty() {
		return fmt.Errorf("at least one field is required: %w", ErrNotValid)
	}
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("unknown agent status %q: %w", *u.Status, ErrNotValid)
	}
	if u.Cost != nil && *u.Cost < 0 {
		return fmt.Errorf("cost can't be negative: %w", ErrNotValid)
	}
	return nil
}

// ApplyTo sets the non nil update fields on the delegation.
func (u AgentUpdate) ApplyTo(a *TaskAgent) {
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.StartedAt != nil {
		a.StartedAt = u.StartedAt.UTC()
	}
	if u.CompletedAt != nil {
		t := u.CompletedAt.UTC()
		a.CompletedAt = &t
	}
	if u.Cost != nil {
		a.Cost = *u.Cost
	}
}

// TaskAggregate is the full view of a task: the task, its most recent logs,
// its whole timeline and its sub-agent roster.
type TaskAggregate struct {
	Task
	Logs   []TaskLog   `json:"logs"`
	Events []TaskEvent `json:"events"`
	Agents []TaskAgent `json:"agents"`
}
