package task_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/missionctl/internal/app/task"
	"github.com/slok/missionctl/internal/broadcast/broadcastmock"
	"github.com/slok/missionctl/internal/log"
	"github.com/slok/missionctl/internal/model"
	"github.com/slok/missionctl/internal/storage/memory"
	"github.com/slok/missionctl/internal/storage/storagemock"
)

func ptr[T any](v T) *T { return &v }

func isEvent(typ model.EventType, taskID string) any {
	return mock.MatchedBy(func(ev model.Event) bool { return ev.Type == typ && ev.TaskID == taskID })
}

func newMemoryRepo(t *testing.T) *memory.Repository {
	t.Helper()
	repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: log.Noop})
	require.NoError(t, err)
	return repo
}

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		config task.ServiceConfig
		expErr bool
	}{
		"valid config should create service": {
			config: task.ServiceConfig{
				Repository: &storagemock.MockRepository{},
				Publisher:  &broadcastmock.MockPublisher{},
				Logger:     log.Noop,
			},
		},
		"missing repository should fail": {
			config: task.ServiceConfig{Publisher: &broadcastmock.MockPublisher{}},
			expErr: true,
		},
		"missing publisher and logger should default": {
			config: task.ServiceConfig{Repository: &storagemock.MockRepository{}},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			svc, err := task.NewService(test.config)

			if test.expErr {
				require.Error(err)
				require.Nil(svc)
			} else {
				require.NoError(err)
				require.NotNil(svc)
			}
		})
	}
}

func TestServiceCreate(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		req     task.CreateRequest
		mockPub func(m *broadcastmock.MockPublisher)
		expTask func() model.Task
		expErr  error
	}{
		"Creating a task should store it queued and broadcast it": {
			req: task.CreateRequest{
				Title:         "  Deploy service ",
				EstimatedCost: 2.5,
				Tags:          []string{"ops", "deploy", "ops"},
			},
			mockPub: func(m *broadcastmock.MockPublisher) {
				m.On("Broadcast", mock.Anything, isEvent(model.EventTypeTaskUpdate, "task-1")).Once().Return(1)
			},
			expTask: func() model.Task {
				return model.Task{
					ID:            "task-1",
					Title:         "Deploy service",
					Status:        model.TaskStatusQueued,
					Priority:      model.TaskPriorityNormal,
					EstimatedCost: 2.5,
					Tags:          []string{"deploy", "ops"},
					Metadata:      map[string]any{},
					CreatedAt:     now,
				}
			},
		},

		"Creating a task without title should fail": {
			req:     task.CreateRequest{Title: " "},
			mockPub: func(m *broadcastmock.MockPublisher) {},
			expErr:  model.ErrNotValid,
		},

		"Creating a task with an unknown priority should fail": {
			req:     task.CreateRequest{Title: "t", Priority: "urgent"},
			mockPub: func(m *broadcastmock.MockPublisher) {},
			expErr:  model.ErrNotValid,
		},

		"Creating a task with a negative cost should fail": {
			req:     task.CreateRequest{Title: "t", EstimatedCost: -1},
			mockPub: func(m *broadcastmock.MockPublisher) {},
			expErr:  model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			pub := broadcastmock.NewMockPublisher(t)
			test.mockPub(pub)

			svc, err := task.NewService(task.ServiceConfig{
				Repository:  newMemoryRepo(t),
				Publisher:   pub,
				IDGenerator: func() string { return "task-1" },
				Clock:       func() time.Time { return now },
			})
			require.NoError(err)

			agg, err := svc.Create(context.Background(), test.req)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}
			require.NoError(err)
			assert.Equal(test.expTask(), agg.Task)
			assert.Empty(agg.Logs)
			assert.Empty(agg.Events)
			assert.Empty(agg.Agents)
		})
	}
}

func TestServiceTransition(t *testing.T) {
	t0 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		setup     func(t *testing.T, svc *task.Service)
		req       task.TransitionRequest
		expErr    error
		expStatus model.TaskStatus
		check     func(t *testing.T, agg *model.TaskAggregate)
	}{
		"Transitioning to active should stamp started at": {
			req:       task.TransitionRequest{TaskID: "task-1", Status: model.TaskStatusActive},
			expStatus: model.TaskStatusActive,
			check: func(t *testing.T, agg *model.TaskAggregate) {
				require.NotNil(t, agg.StartedAt)
				assert.Nil(t, agg.CompletedAt)
			},
		},

		"Transitioning to active twice should not reset started at": {
			setup: func(t *testing.T, svc *task.Service) {
				_, err := svc.Transition(context.Background(), task.TransitionRequest{TaskID: "task-1", Status: model.TaskStatusActive})
				require.NoError(t, err)
			},
			req:       task.TransitionRequest{TaskID: "task-1", Status: model.TaskStatusActive},
			expStatus: model.TaskStatusActive,
			check: func(t *testing.T, agg *model.TaskAggregate) {
				require.NotNil(t, agg.StartedAt)
				// Created at +1m, first activation at +2m.
				assert.Equal(t, t0.Add(2*time.Minute), *agg.StartedAt)
			},
		},

		"Transitioning to completed with updates should apply them together": {
			req: task.TransitionRequest{
				TaskID: "task-1",
				Status: model.TaskStatusCompleted,
				Update: model.TaskUpdate{
					ProgressPercent: ptr(100),
					ActualCost:      ptr(3.2),
					Assignee:        ptr("ops"),
					Tags:            []string{"done"},
				},
			},
			expStatus: model.TaskStatusCompleted,
			check: func(t *testing.T, agg *model.TaskAggregate) {
				require.NotNil(t, agg.CompletedAt)
				assert.Nil(t, agg.StartedAt)
				assert.Equal(t, 100, agg.ProgressPercent)
				assert.Equal(t, 3.2, agg.ActualCost)
				assert.Equal(t, "ops", *agg.Assignee)
				assert.Equal(t, []string{"done"}, agg.Tags)
			},
		},

		"Queued tasks can fail directly": {
			req:       task.TransitionRequest{TaskID: "task-1", Status: model.TaskStatusFailed},
			expStatus: model.TaskStatusFailed,
			check: func(t *testing.T, agg *model.TaskAggregate) {
				assert.NotNil(t, agg.CompletedAt)
			},
		},

		"An empty target status should only update fields": {
			req:       task.TransitionRequest{TaskID: "task-1", Update: model.TaskUpdate{ProgressPercent: ptr(30)}},
			expStatus: model.TaskStatusQueued,
			check: func(t *testing.T, agg *model.TaskAggregate) {
				assert.Equal(t, 30, agg.ProgressPercent)
				assert.Nil(t, agg.StartedAt)
			},
		},

		"Transitioning a completed task should fail": {
			setup: func(t *testing.T, svc *task.Service) {
				_, err := svc.Transition(context.Background(), task.TransitionRequest{TaskID: "task-1", Status: model.TaskStatusCompleted})
				require.NoError(t, err)
			},
			req:    task.TransitionRequest{TaskID: "task-1", Status: model.TaskStatusActive},
			expErr: model.ErrIllegalTransition,
		},

		"Updating fields of a failed task should fail": {
			setup: func(t *testing.T, svc *task.Service) {
				_, err := svc.Transition(context.Background(), task.TransitionRequest{TaskID: "task-1", Status: model.TaskStatusFailed})
				require.NoError(t, err)
			},
			req:    task.TransitionRequest{TaskID: "task-1", Update: model.TaskUpdate{ProgressPercent: ptr(10)}},
			expErr: model.ErrIllegalTransition,
		},

		"Transitioning to an unknown status should fail": {
			req:    task.TransitionRequest{TaskID: "task-1", Status: "paused"},
			expErr: model.ErrIllegalTransition,
		},

		"Transitioning a missing task should fail": {
			req:    task.TransitionRequest{TaskID: "missing", Status: model.TaskStatusActive},
			expErr: model.ErrNotFound,
		},

		"An invalid progress should fail": {
			req:    task.TransitionRequest{TaskID: "task-1", Update: model.TaskUpdate{ProgressPercent: ptr(101)}},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			pub := &broadcastmock.MockPublisher{}
			pub.On("Broadcast", mock.Anything, mock.Anything).Return(0)

			clock := t0
			svc, err := task.NewService(task.ServiceConfig{
				Repository:  newMemoryRepo(t),
				Publisher:   pub,
				IDGenerator: func() string { return "task-1" },
				Clock: func() time.Time {
					clock = clock.Add(time.Minute)
					return clock
				},
			})
			require.NoError(err)

			_, err = svc.Create(context.Background(), task.CreateRequest{Title: "Deploy service"})
			require.NoError(err)
			if test.setup != nil {
				test.setup(t, svc)
			}

			agg, err := svc.Transition(context.Background(), test.req)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}
			require.NoError(err)
			assert.Equal(test.expStatus, agg.Status)
			test.check(t, agg)
		})
	}
}

func TestServiceTransitionTerminalIsFinal(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	svc, err := task.NewService(task.ServiceConfig{Repository: newMemoryRepo(t)})
	require.NoError(err)

	created, err := svc.Create(ctx, task.CreateRequest{Title: "t"})
	require.NoError(err)
	done, err := svc.Transition(ctx, task.TransitionRequest{TaskID: created.ID, Status: model.TaskStatusCompleted})
	require.NoError(err)
	completedAt := *done.CompletedAt

	for _, st := range []model.TaskStatus{model.TaskStatusQueued, model.TaskStatusActive, model.TaskStatusCompleted, model.TaskStatusFailed} {
		_, err := svc.Transition(ctx, task.TransitionRequest{TaskID: created.ID, Status: st})
		require.ErrorIs(err, model.ErrIllegalTransition)
	}

	got, err := svc.Get(ctx, created.ID)
	require.NoError(err)
	require.Equal(completedAt, *got.CompletedAt)
	require.Equal(model.TaskStatusCompleted, got.Status)
}

func TestServiceTransitionConcurrentTerminal(t *testing.T) {
	ctx := context.Background()

	svc, err := task.NewService(task.ServiceConfig{Repository: newMemoryRepo(t)})
	require.NoError(t, err)
	created, err := svc.Create(ctx, task.CreateRequest{Title: "t"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := model.TaskStatusCompleted
			if i%2 == 0 {
				status = model.TaskStatusFailed
			}
			_, err := svc.Transition(ctx, task.TransitionRequest{TaskID: created.ID, Status: status})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, model.ErrIllegalTransition)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

// racingRepo runs a competing change after every read of the task made outside
// of the competing change itself.
type racingRepo struct {
	*memory.Repository
	race    func(ctx context.Context)
	racing  bool
	onlyOne bool
	raced   int
}

func (r *racingRepo) GetTask(ctx context.Context, id string) (*model.Task, error) {
	t, err := r.Repository.GetTask(ctx, id)
	if err != nil || r.racing || (r.onlyOne && r.raced > 0) {
		return t, err
	}

	r.racing = true
	r.race(ctx)
	r.racing = false
	r.raced++

	return t, err
}

func TestServiceTransitionStatusChangedMeanwhile(t *testing.T) {
	t0 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		competing  []model.TaskStatus
		onlyOne    bool
		req        func(id string) task.TransitionRequest
		expErr     bool
		expIllegal bool
		check      func(t *testing.T, agg *model.TaskAggregate)
	}{
		"Two racing activations should both succeed and keep the first start time.": {
			competing: []model.TaskStatus{model.TaskStatusActive},
			onlyOne:   true,
			req: func(id string) task.TransitionRequest {
				return task.TransitionRequest{TaskID: id, Status: model.TaskStatusActive, Update: model.TaskUpdate{ProgressPercent: ptr(40)}}
			},
			check: func(t *testing.T, agg *model.TaskAggregate) {
				assert.Equal(t, model.TaskStatusActive, agg.Status)
				assert.Equal(t, 40, agg.ProgressPercent)
				assert.Equal(t, t0.Add(2*time.Minute), *agg.StartedAt)
			},
		},
		"A fields only update racing an activation should apply on the active task.": {
			competing: []model.TaskStatus{model.TaskStatusActive},
			onlyOne:   true,
			req: func(id string) task.TransitionRequest {
				return task.TransitionRequest{TaskID: id, Update: model.TaskUpdate{ProgressPercent: ptr(75)}}
			},
			check: func(t *testing.T, agg *model.TaskAggregate) {
				assert.Equal(t, model.TaskStatusActive, agg.Status)
				assert.Equal(t, 75, agg.ProgressPercent)
				assert.NotNil(t, agg.StartedAt)
			},
		},
		"An activation racing a completion should be an illegal transition.": {
			competing: []model.TaskStatus{model.TaskStatusCompleted},
			onlyOne:   true,
			req: func(id string) task.TransitionRequest {
				return task.TransitionRequest{TaskID: id, Status: model.TaskStatusActive}
			},
			expErr:     true,
			expIllegal: true,
		},
		"A task that never stops changing should give up without an illegal transition.": {
			competing: []model.TaskStatus{model.TaskStatusActive, model.TaskStatusQueued},
			req: func(id string) task.TransitionRequest {
				return task.TransitionRequest{TaskID: id, Update: model.TaskUpdate{ProgressPercent: ptr(10)}}
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			assert := assert.New(t)
			ctx := context.Background()

			now := t0
			repo := &racingRepo{Repository: newMemoryRepo(t), onlyOne: test.onlyOne}
			svc, err := task.NewService(task.ServiceConfig{
				Repository: repo,
				Clock: func() time.Time {
					now = now.Add(time.Minute)
					return now
				},
			})
			require.NoError(err)

			repo.racing = true
			created, err := svc.Create(ctx, task.CreateRequest{Title: "t"})
			require.NoError(err)
			repo.racing = false

			repo.race = func(ctx context.Context) {
				status := test.competing[repo.raced%len(test.competing)]
				_, err := svc.Transition(ctx, task.TransitionRequest{TaskID: created.ID, Status: status})
				require.NoError(err)
			}

			agg, err := svc.Transition(ctx, test.req(created.ID))

			if test.expErr {
				require.Error(err)
				assert.Equal(test.expIllegal, errors.Is(err, model.ErrIllegalTransition))
				return
			}
			require.NoError(err)
			test.check(t, agg)
		})
	}
}

func TestServiceDelete(t *testing.T) {
	tests := map[string]struct {
		mockRepo func(m *storagemock.MockRepository)
		mockPub  func(m *broadcastmock.MockPublisher)
		expErr   bool
		expKind  model.ErrorKind
	}{
		"Deleting a task should broadcast the deletion": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("DeleteTask", mock.Anything, "task-1").Once().Return(nil)
			},
			mockPub: func(m *broadcastmock.MockPublisher) {
				m.On("Broadcast", mock.Anything, isEvent(model.EventTypeTaskDeleted, "task-1")).Once().Return(2)
			},
		},

		"Deleting a missing task should fail without broadcasting": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("DeleteTask", mock.Anything, "task-1").Once().Return(fmt.Errorf("task task-1: %w", model.ErrNotFound))
			},
			mockPub: func(m *broadcastmock.MockPublisher) {},
			expErr:  true,
			expKind: model.ErrorKindNotFound,
		},

		"A storage failure should fail without broadcasting": {
			mockRepo: func(m *storagemock.MockRepository) {
				m.On("DeleteTask", mock.Anything, "task-1").Once().Return(errors.New("disk full"))
			},
			mockPub: func(m *broadcastmock.MockPublisher) {},
			expErr:  true,
			expKind: model.ErrorKindStorage,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := storagemock.NewMockRepository(t)
			pub := broadcastmock.NewMockPublisher(t)
			test.mockRepo(repo)
			test.mockPub(pub)

			svc, err := task.NewService(task.ServiceConfig{Repository: repo, Publisher: pub})
			require.NoError(t, err)

			err = svc.Delete(context.Background(), "task-1")

			if test.expErr {
				require.Error(t, err)
				assert.Equal(t, test.expKind, model.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServiceGetAndList(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	repo := newMemoryRepo(t)

	ids := []string{"a", "b"}
	clock := time.Now()
	svc, err := task.NewService(task.ServiceConfig{
		Repository: repo,
		IDGenerator: func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		},
		Clock: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	require.NoError(err)

	_, err = svc.Create(ctx, task.CreateRequest{Title: "first"})
	require.NoError(err)
	_, err = svc.Create(ctx, task.CreateRequest{Title: "second"})
	require.NoError(err)

	tasks, err := svc.List(ctx)
	require.NoError(err)
	require.Len(tasks, 2)
	require.Equal("b", tasks[0].ID)
	require.Equal("a", tasks[1].ID)

	_, err = svc.Get(ctx, "missing")
	require.ErrorIs(err, model.ErrNotFound)

	require.NoError(svc.Delete(ctx, "a"))
	_, err = svc.Get(ctx, "a")
	require.ErrorIs(err, model.ErrNotFound)
}
