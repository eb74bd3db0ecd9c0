package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	// TaskStatusQueued is the initial status of every task.
	TaskStatusQueued TaskStatus = "queued"
	// TaskStatusActive indicates the task is being worked on.
	TaskStatusActive TaskStatus = "active"
	// TaskStatusCompleted is terminal.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed is terminal.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true when the status is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusActive, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// Terminal returns true for the statuses without outgoing transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskPriority is the scheduling priority of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityNormal TaskPriority = "normal"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid returns true when the priority is known.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityNormal, TaskPriorityHigh:
		return true
	}
	return false
}

// Task is a trackable unit of automated work.
type Task struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Status          TaskStatus     `json:"status"`
	Description     string         `json:"description"`
	ProgressPercent int            `json:"progress_percent"`
	ETA             *time.Time     `json:"eta_timestamp"`
	EstimatedCost   float64        `json:"estimated_cost"`
	ActualCost      float64        `json:"actual_cost"`
	Priority        TaskPriority   `json:"priority"`
	Assignee        *string        `json:"assignee"`
	Tags            []string       `json:"tags"`
	Metadata        map[string]any `json:"metadata"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at"`
}

// Validate validates the task.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title is required: %w", ErrNotValid)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown status %q: %w", t.Status, ErrNotValid)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("unknown priority %q: %w", t.Priority, ErrNotValid)
	}
	if err := validateProgress(t.ProgressPercent); err != nil {
		return err
	}
	if t.EstimatedCost < 0 || t.ActualCost < 0 {
		return fmt.Errorf("costs can't be negative: %w", ErrNotValid)
	}
	return nil
}

// TaskUpdate is the set of task fields that can change together with a status
// transition. Nil fields are left untouched.
type TaskUpdate struct {
	ProgressPercent *int          `json:"progress_percent,omitempty"`
	ActualCost      *float64      `json:"actual_cost,omitempty"`
	Description     *string       `json:"description,omitempty"`
	Priority        *TaskPriority `json:"priority,omitempty"`
	Assignee        *string       `json:"assignee,omitempty"`
	ETA             *time.Time    `json:"eta_timestamp,omitempty"`
	// Tags replaces the whole tag set when not nil, an empty slice clears it.
	Tags []string `json:"tags,omitempty"`
}

// Validate validates the update fields.
func (u TaskUpdate) Validate() error {
	if u.ProgressPercent != nil {
		if err := validateProgress(*u.ProgressPercent); err != nil {
			return err
		}
	}
	if u.ActualCost != nil && *u.ActualCost < 0 {
		return fmt.Errorf("actual cost can't be negative: %w", ErrNotValid)
	}
	if u.Priority != nil && !u.Priority.Valid() {
		return fmt.Errorf("unknown priority %q: %w", *u.Priority, ErrNotValid)
	}
	return nil
}

// ApplyTo sets the non nil update fields on the task.
func (u TaskUpdate) ApplyTo(t *Task) {
	if u.ProgressPercent != nil {
		t.ProgressPercent = *u.ProgressPercent
	}
	if u.ActualCost != nil {
		t.ActualCost = *u.ActualCost
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.Assignee != nil {
		assignee := *u.Assignee
		t.Assignee = &assignee
	}
	if u.ETA != nil {
		eta := u.ETA.UTC()
		t.ETA = &eta
	}
	if u.Tags != nil {
		t.Tags = NormalizeTags(u.Tags)
	}
}

// NormalizeTags returns the tags as a set: trimmed, deduplicated and sorted.
func NormalizeTags(tags []string) []string {
	set := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		set = append(set, tag)
	}
	slices.Sort(set)
	return slices.Compact(set)
}

func validateProgress(p int) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("progress must be between 0 and 100, got %d: %w", p, ErrNotValid)
	}
	return nil
}
