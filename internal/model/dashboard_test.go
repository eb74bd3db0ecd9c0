package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/missionctl/internal/model"
)

func TestStatusUpdateValidate(t *testing.T) {
	tests := map[string]struct {
		update model.StatusUpdate
		expErr bool
	}{
		"An empty update should fail.": {
			update: model.StatusUpdate{},
			expErr: true,
		},
		"A negative cost should fail.": {
			update: model.StatusUpdate{CostToday: ptr(-1.0)},
			expErr: true,
		},
		"Negative positions should fail.": {
			update: model.StatusUpdate{TradingPositions: ptr(-1)},
			expErr: true,
		},
		"A blank trading status should fail.": {
			update: model.StatusUpdate{TradingStatus: ptr(model.TradingStatus(" "))},
			expErr: true,
		},
		"A negative cost total should fail.": {
			update: model.StatusUpdate{CostTotal: ptr(-0.5)},
			expErr: true,
		},
		"A cost total correction should be valid.": {
			update: model.StatusUpdate{CostTotal: ptr(9.0)},
		},
		"A cost today reset should be valid.": {
			update: model.StatusUpdate{CostToday: ptr(0.0)},
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

func TestStatusUpdateApplyTo(t *testing.T) {
	s := model.DashboardStatus{
		CostToday: 1,
		CostTotal: 10,
		Trading:   model.TradingSnapshot{Equity: 100000, Status: model.TradingStatusIdle},
	}

	model.StatusUpdate{
		CostTotal:        ptr(12.0),
		TradingPositions: ptr(3),
		TradingStatus:    ptr(model.TradingStatus("trading")),
	}.ApplyTo(&s)

	assert.Equal(t, model.DashboardStatus{
		CostToday: 1,
		CostTotal: 12,
		Trading:   model.TradingSnapshot{Equity: 100000, Positions: 3, Status: "trading"},
	}, s)
}

func TestRollupFromCounts(t *testing.T) {
	tests := map[string]struct {
		counts    map[model.TaskStatus]int
		expRollup model.TaskRollup
		expTotal  int
	}{
		"No tasks should be all zeros.": {
			counts:    nil,
			expRollup: model.TaskRollup{},
		},
		"Every tracked status should be counted.": {
			counts: map[model.TaskStatus]int{
				model.TaskStatusQueued:    2,
				model.TaskStatusActive:    1,
				model.TaskStatusCompleted: 4,
				model.TaskStatusFailed:    3,
			},
			expRollup: model.TaskRollup{Queued: 2, Active: 1, Completed: 4, Failed: 3},
			expTotal:  10,
		},
		"Untracked statuses should be ignored.": {
			counts: map[model.TaskStatus]int{
				model.TaskStatusQueued: 1,
				"legacy":               5,
			},
			expRollup: model.TaskRollup{Queued: 1},
			expTotal:  1,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := model.RollupFromCounts(test.counts)
			assert.Equal(t, test.expRollup, got)
			assert.Equal(t, test.expTotal, got.Total())
		})
	}
}

func TestActivityValidate(t *testing.T) {
	assert.NoError(t, model.Activity{Type: "deploy", Title: "ok"}.Validate())
	assert.ErrorIs(t, model.Activity{Title: "ok"}.Validate(), model.ErrNotValid)
	assert.ErrorIs(t, model.Activity{Type: "deploy"}.Validate(), model.ErrNotValid)
}

func TestTelemetryEmpty(t *testing.T) {
	assert.True(t, model.Telemetry{}.Empty())
	assert.True(t, model.Telemetry{Activities: []model.Activity{}}.Empty())
	assert.False(t, model.Telemetry{Costs: &model.CostDelta{}}.Empty())
}
