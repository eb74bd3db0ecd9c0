package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/missionctl/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestTaskValidate(t *testing.T) {
	valid := func() model.Task {
		return model.Task{
			ID:        "t1",
			Title:     "deploy",
			Status:    model.TaskStatusQueued,
			Priority:  model.TaskPriorityNormal,
			CreatedAt: time.Now(),
		}
	}

	tests := map[string]struct {
		task   func() model.Task
		expErr bool
	}{
		"A valid task should not fail.": {
			task: valid,
		},
		"A task without id should fail.": {
			task:   func() model.Task { t := valid(); t.ID = ""; return t },
			expErr: true,
		},
		"A task with a blank title should fail.": {
			task:   func() model.Task { t := valid(); t.Title = "  "; return t },
			expErr: true,
		},
		"A task with an unknown status should fail.": {
			task:   func() model.Task { t := valid(); t.Status = "paused"; return t },
			expErr: true,
		},
		"A task with an unknown priority should fail.": {
			task:   func() model.Task { t := valid(); t.Priority = "urgent"; return t },
			expErr: true,
		},
		"A task with progress over 100 should fail.": {
			task:   func() model.Task { t := valid(); t.ProgressPercent = 101; return t },
			expErr: true,
		},
		"A task with negative costs should fail.": {
			task:   func() model.Task { t := valid(); t.ActualCost = -1; return t },
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.task().Validate()
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTaskStatus(t *testing.T) {
	tests := map[string]struct {
		status      model.TaskStatus
		expValid    bool
		expTerminal bool
	}{
		"Queued.":    {status: model.TaskStatusQueued, expValid: true},
		"Active.":    {status: model.TaskStatusActive, expValid: true},
		"Completed.": {status: model.TaskStatusCompleted, expValid: true, expTerminal: true},
		"Failed.":    {status: model.TaskStatusFailed, expValid: true, expTerminal: true},
		"Unknown.":   {status: "paused"},
		"Empty.":     {status: ""},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expValid, test.status.Valid())
			assert.Equal(t, test.expTerminal, test.status.Terminal())
		})
	}
}

func TestTaskUpdateApplyTo(t *testing.T) {
	eta := time.Date(2026, 5, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	tests := map[string]struct {
		task    model.Task
		update  model.TaskUpdate
		expTask model.Task
	}{
		"An empty update should not change anything.": {
			task:    model.Task{Title: "a", Tags: []string{"x"}},
			update:  model.TaskUpdate{},
			expTask: model.Task{Title: "a", Tags: []string{"x"}},
		},
		"Set fields should be applied.": {
			task: model.Task{Title: "a"},
			update: model.TaskUpdate{
				ProgressPercent: ptr(50),
				ActualCost:      ptr(2.5),
				Description:     ptr("desc"),
				Priority:        ptr(model.TaskPriorityHigh),
				Assignee:        ptr("bot"),
				ETA:             &eta,
			},
			expTask: model.Task{
				Title:           "a",
				ProgressPercent: 50,
				ActualCost:      2.5,
				Description:     "desc",
				Priority:        model.TaskPriorityHigh,
				Assignee:        ptr("bot"),
				ETA:             ptr(eta.UTC()),
			},
		},
		"Tags should replace the set normalized.": {
			task:    model.Task{Tags: []string{"old"}},
			update:  model.TaskUpdate{Tags: []string{" b", "a", "b", ""}},
			expTask: model.Task{Tags: []string{"a", "b"}},
		},
		"Empty tags should clear the set.": {
			task:    model.Task{Tags: []string{"old"}},
			update:  model.TaskUpdate{Tags: []string{}},
			expTask: model.Task{Tags: []string{}},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			task := test.task
			test.update.ApplyTo(&task)
			assert.Equal(t, test.expTask, task)
		})
	}
}

func TestTaskUpdateValidate(t *testing.T) {
	tests := map[string]struct {
		update model.TaskUpdate
		expErr bool
	}{
		"An empty update should be valid.": {
			update: model.TaskUpdate{},
		},
		"Progress bounds should be valid.": {
			update: model.TaskUpdate{ProgressPercent: ptr(100)},
		},
		"Negative progress should fail.": {
			update: model.TaskUpdate{ProgressPercent: ptr(-1)},
			expErr: true,
		},
		"Negative actual cost should fail.": {
			update: model.TaskUpdate{ActualCost: ptr(-0.1)},
			expErr: true,
		},
		"Unknown priority should fail.": {
			update: model.TaskUpdate{Priority: ptr(model.TaskPriority("urgent"))},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.update.Validate()
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
