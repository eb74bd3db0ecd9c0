package dashboard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/missionctl/internal/app/dashboard"
	"github.com/slok/missionctl/internal/app/task"
	"github.com/slok/missionctl/internal/broadcast/broadcastmock"
	"github.com/slok/missionctl/internal/model"
	"github.com/slok/missionctl/internal/storage/memory"
	"github.com/slok/missionctl/internal/storage/storagemock"
)

func ptr[T any](v T) *T { return &v }

func TestServiceComputeRollup(t *testing.T) {
	tests := map[string]struct {
		counts    map[model.TaskStatus]int
		err       error
		expRollup model.TaskRollup
		expErr    bool
	}{
		"No tasks should return all buckets to zero": {
			counts:    map[model.TaskStatus]int{},
			expRollup: model.TaskRollup{},
		},

		"Every tracked status should be counted": {
			counts: map[model.TaskStatus]int{
				model.TaskStatusQueued:    3,
				model.TaskStatusActive:    2,
				model.TaskStatusCompleted: 7,
				model.TaskStatusFailed:    1,
			},
			expRollup: model.TaskRollup{Queued: 3, Active: 2, Completed: 7, Failed: 1},
		},

		"Untracked statuses should be ignored": {
			counts: map[model.TaskStatus]int{
				model.TaskStatusQueued: 1,
				"paused":               4,
			},
			expRollup: model.TaskRollup{Queued: 1},
		},

		"A storage error should fail": {
			err:    errors.New("boom"),
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := storagemock.NewMockRepository(t)
			repo.On("CountTasksByStatus", mock.Anything).Once().Return(test.counts, test.err)

			svc, err := dashboard.NewService(dashboard.ServiceConfig{Repository: repo})
			require.NoError(t, err)

			rollup, err := svc.ComputeRollup(context.Background())

			if test.expErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.expRollup, *rollup)
			}
		})
	}
}

func TestServiceMergeStatus(t *testing.T) {
	tests := map[string]struct {
		updates   []model.StatusUpdate
		expErr    error
		expStatus func(s *model.DashboardStatus)
	}{
		"Merging costs should keep the trading snapshot": {
			updates: []model.StatusUpdate{{CostToday: ptr(1.0), CostTotal: ptr(10.0)}},
			expStatus: func(s *model.DashboardStatus) {
				assert.Equal(t, 1.0, s.CostToday)
				assert.Equal(t, 10.0, s.CostTotal)
				assert.Equal(t, 100000.0, s.Trading.Equity)
				assert.Equal(t, model.TradingStatusIdle, s.Trading.Status)
			},
		},

		"Cost today can go down on a new day": {
			updates: []model.StatusUpdate{
				{CostToday: ptr(5.0), CostTotal: ptr(10.0)},
				{CostToday: ptr(0.0), CostTotal: ptr(10.0)},
			},
			expStatus: func(s *model.DashboardStatus) {
				assert.Equal(t, 0.0, s.CostToday)
				assert.Equal(t, 10.0, s.CostTotal)
			},
		},

		"A lower cost total should be applied as a correction": {
			updates: []model.StatusUpdate{
				{CostToday: ptr(2.0), CostTotal: ptr(10.0)},
				{CostTotal: ptr(9.0)},
			},
			expStatus: func(s *model.DashboardStatus) {
				assert.Equal(t, 2.0, s.CostToday)
				assert.Equal(t, 9.0, s.CostTotal)
			},
		},

		"An empty update should fail": {
			updates: []model.StatusUpdate{{}},
			expErr:  model.ErrNotValid,
		},

		"Negative positions should fail": {
			updates: []model.StatusUpdate{{TradingPositions: ptr(-2)}},
			expErr:  model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(t, err)
			svc, err := dashboard.NewService(dashboard.ServiceConfig{Repository: repo})
			require.NoError(t, err)

			before, err := repo.GetDashboardStatus(context.Background())
			require.NoError(t, err)

			var status *model.DashboardStatus
			for _, u := range test.updates {
				status, err = svc.MergeStatus(context.Background(), u)
				if err != nil {
					break
				}
			}

			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.False(t, status.LastUpdated.Before(before.LastUpdated))
			test.expStatus(status)
		})
	}
}

func TestServiceSnapshot(t *testing.T) {
	repo := storagemock.NewMockRepository(t)
	lastUpdated := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	repo.On("GetDashboardStatus", mock.Anything).Once().Return(&model.DashboardStatus{
		CostToday:   1.5,
		CostTotal:   20,
		Trading:     model.TradingSnapshot{Equity: 100000, Status: model.TradingStatusIdle},
		LastUpdated: lastUpdated,
	}, nil)
	repo.On("CountTasksByStatus", mock.Anything).Once().Return(map[model.TaskStatus]int{model.TaskStatusActive: 2}, nil)

	svc, err := dashboard.NewService(dashboard.ServiceConfig{Repository: repo})
	require.NoError(t, err)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DashboardSnapshot{
		DashboardStatus: model.DashboardStatus{
			CostToday:   1.5,
			CostTotal:   20,
			Trading:     model.TradingSnapshot{Equity: 100000, Status: model.TradingStatusIdle},
			LastUpdated: lastUpdated,
		},
		TaskSummary: model.TaskRollup{Active: 2},
	}, *snap)
}

// The deploy service lifecycle seen from the dashboard.
func TestDeployServiceLifecycle(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(err)

	pub := &broadcastmock.MockPublisher{}
	pub.On("Broadcast", mock.Anything, mock.Anything).Return(1)

	tasks, err := task.NewService(task.ServiceConfig{Repository: repo, Publisher: pub})
	require.NoError(err)
	dash, err := dashboard.NewService(dashboard.ServiceConfig{Repository: repo})
	require.NoError(err)

	created, err := tasks.Create(ctx, task.CreateRequest{Title: "Deploy service"})
	require.NoError(err)
	require.Equal(model.TaskStatusQueued, created.Status)
	require.Equal(0, created.ProgressPercent)

	active, err := tasks.Transition(ctx, task.TransitionRequest{TaskID: created.ID, Status: model.TaskStatusActive})
	require.NoError(err)
	require.NotNil(active.StartedAt)
	pub.AssertCalled(t, "Broadcast", mock.Anything, mock.MatchedBy(func(ev model.Event) bool {
		return ev.Type == model.EventTypeTaskUpdate && ev.Task != nil && ev.Task.Status == model.TaskStatusActive
	}))

	done, err := tasks.Transition(ctx, task.TransitionRequest{
		TaskID: created.ID,
		Status: model.TaskStatusCompleted,
		Update: model.TaskUpdate{ProgressPercent: ptr(100)},
	})
	require.NoError(err)
	require.NotNil(done.CompletedAt)
	require.Equal(100, done.ProgressPercent)

	rollup, err := dash.ComputeRollup(ctx)
	require.NoError(err)
	require.Equal(1, rollup.Completed)
	require.Equal(0, rollup.Queued)
	require.Equal(1, rollup.Total())

	_, err = tasks.Transition(ctx, task.TransitionRequest{TaskID: created.ID, Status: model.TaskStatusActive})
	require.ErrorIs(err, model.ErrIllegalTransition)
}
