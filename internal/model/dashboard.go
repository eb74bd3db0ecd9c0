package model

import (
	"fmt"
	"strings"
	"time"
)

// TradingStatus is the state reported by the trading collaborator.
type TradingStatus string

// TradingStatusIdle is the status the dashboard starts with.
const TradingStatusIdle TradingStatus = "idle"

// TradingSnapshot is the last known trading state.
type TradingSnapshot struct {
	Equity    float64       `json:"equity"`
	Positions int           `json:"positions"`
	Status    TradingStatus `json:"status"`
}

// DashboardStatus is the process wide singleton with the externally pushed telemetry.
type DashboardStatus struct {
	CostToday   float64         `json:"cost_today"`
	CostTotal   float64         `json:"cost_total"`
	Trading     TradingSnapshot `json:"trading"`
	LastUpdated time.Time       `json:"last_updated"`
}

// StatusUpdate is a partial update of the dashboard status, nil fields are left untouched.
type StatusUpdate struct {
	CostToday        *float64       `json:"cost_today,omitempty"`
	CostTotal        *float64       `json:"cost_total,omitempty"`
	TradingEquity    *float64       `json:"trading_equity,omitempty"`
	TradingPositions *int           `json:"trading_positions,omitempty"`
	TradingStatus    *TradingStatus `json:"trading_status,omitempty"`
}

// Empty returns true when the update doesn't change anything.
func (u StatusUpdate) Empty() bool {
	return u.CostToday == nil && u.CostTotal == nil && u.TradingEquity == nil &&
		u.TradingPositions == nil && u.TradingStatus == nil
}

// Validate validates the update values. Costs are absolute values reported by the
// caller so a lower total is a correction, not an error.
func (u StatusUpdate) Validate() error {
	if u.Empty() {
		return fmt.Errorf("at least one field is required: %w", ErrNotValid)
	}
	if u.CostToday != nil && *u.CostToday < 0 {
		return fmt.Errorf("cost today can't be negative: %w", ErrNotValid)
	}
	if u.CostTotal != nil && *u.CostTotal < 0 {
		return fmt.Errorf("cost total can't be negative: %w", ErrNotValid)
	}
	if u.TradingPositions != nil && *u.TradingPositions < 0 {
		return fmt.Errorf("trading positions can't be negative: %w", ErrNotValid)
	}
	if u.TradingStatus != nil && strings.TrimSpace(string(*u.TradingStatus)) == "" {
		return fmt.Errorf("trading status can't be empty: %w", ErrNotValid)
	}
	return nil
}

// ApplyTo sets the non nil update fields on the status.
func (u StatusUpdate) ApplyTo(s *DashboardStatus) {
	if u.CostToday != nil {
		s.CostToday = *u.CostToday
	}
	if u.CostTotal != nil {
		s.CostTotal = *u.CostTotal
	}
	if u.TradingEquity != nil {
		s.Trading.Equity = *u.TradingEquity
	}
	if u.TradingPositions != nil {
		s.Trading.Positions = *u.TradingPositions
	}
	if u.TradingStatus != nil {
		s.Trading.Status = *u.TradingStatus
	}
}

// TaskRollup is the number of tasks on each tracked status.
type TaskRollup struct {
	Queued    int `json:"queued"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Total returns the number of tasks on the tracked statuses.
func (r TaskRollup) Total() int { return r.Queued + r.Active + r.Completed + r.Failed }

// RollupFromCounts builds the rollup from per status counts. Statuses outside the
// tracked buckets are ignored.
func RollupFromCounts(counts map[TaskStatus]int) TaskRollup {
	return TaskRollup{
		Queued:    counts[TaskStatusQueued],
		Active:    counts[TaskStatusActive],
		Completed: counts[TaskStatusCompleted],
		Failed:    counts[TaskStatusFailed],
	}
}

// DashboardSnapshot is the dashboard status joined with the task rollup.
type DashboardSnapshot struct {
	DashboardStatus
	TaskSummary TaskRollup `json:"task_summary"`
}

// Activity is an entry of the bounded activity feed.
type Activity struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	Icon        string         `json:"icon"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Validate validates the activity.
func (a Activity) Validate() error {
	if strings.TrimSpace(a.Type) == "" {
		return fmt.Errorf("activity type is required: %w", ErrNotValid)
	}
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("activity title is required: %w", ErrNotValid)
	}
	return nil
}

// CostDelta is the absolute cost values reported by the telemetry pusher.
type CostDelta struct {
	Today float64 `json:"today"`
	Total float64 `json:"total"`
}

// Telemetry is a batch of externally observed facts.
type Telemetry struct {
	Costs      *CostDelta `json:"costs,omitempty"`
	Activities []Activity `json:"activities,omitempty"`
}

// Empty returns true when there is nothing to apply.
func (t Telemetry) Empty() bool { return t.Costs == nil && len(t.Activities) == 0 }
