// Package storagemock has testify mocks for the storage interfaces.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/missionctl/internal/model"
	"github.com/slok/missionctl/internal/storage"
)

// MockRepository is a mock of storage.Repository.
type MockRepository struct {
	mock.Mock
}

var _ storage.Repository = &MockRepository{}

// NewMockRepository returns a mock registered with the test cleanup to assert its expectations.
func NewMockRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRepository {
	m := &MockRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *MockRepository) CreateTask(ctx context.Context, t model.Task) error {
	return _m.Called(ctx, t).Error(0)
}

func (_m *MockRepository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	ret := _m.Called(ctx, id)
	return get[*model.Task](ret, 0), ret.Error(1)
}

func (_m *MockRepository) ListTasks(ctx context.Context) ([]model.Task, error) {
	ret := _m.Called(ctx)
	return get[[]model.Task](ret, 0), ret.Error(1)
}

func (_m *MockRepository) UpdateTask(ctx context.Context, t model.Task, fromStatus model.TaskStatus) error {
	return _m.Called(ctx, t, fromStatus).Error(0)
}

func (_m *MockRepository) DeleteTask(ctx context.Context, id string) error {
	return _m.Called(ctx, id).Error(0)
}

func (_m *MockRepository) CountTasksByStatus(ctx context.Context) (map[model.TaskStatus]int, error) {
	ret := _m.Called(ctx)
	return get[map[model.TaskStatus]int](ret, 0), ret.Error(1)
}

func (_m *MockRepository) AddTaskLog(ctx context.Context, l model.TaskLog) (*model.TaskLog, error) {
	ret := _m.Called(ctx, l)
	return get[*model.TaskLog](ret, 0), ret.Error(1)
}

func (_m *MockRepository) ListTaskLogs(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error) {
	ret := _m.Called(ctx, taskID, limit)
	return get[[]model.TaskLog](ret, 0), ret.Error(1)
}

func (_m *MockRepository) AddTaskEvent(ctx context.Context, e model.TaskEvent) (*model.TaskEvent, error) {
	ret := _m.Called(ctx, e)
	return get[*model.TaskEvent](ret, 0), ret.Error(1)
}

func (_m *MockRepository) ListTaskEvents(ctx context.Context, taskID string) ([]model.TaskEvent, error) {
	ret := _m.Called(ctx, taskID)
	return get[[]model.TaskEvent](ret, 0), ret.Error(1)
}

func (_m *MockRepository) AddTaskAgent(ctx context.Context, a model.TaskAgent) (*model.TaskAgent, error) {
	ret := _m.Called(ctx, a)
	return get[*model.TaskAgent](ret, 0), ret.Error(1)
}

func (_m *MockRepository) GetTaskAgent(ctx context.Context, id int64) (*model.TaskAgent, error) {
	ret := _m.Called(ctx, id)
	return get[*model.TaskAgent](ret, 0), ret.Error(1)
}

func (_m *MockRepository) UpdateTaskAgent(ctx context.Context, id int64, u model.AgentUpdate) (*model.TaskAgent, error) {
	ret := _m.Called(ctx, id, u)
	return get[*model.TaskAgent](ret, 0), ret.Error(1)
}

func (_m *MockRepository) ListTaskAgents(ctx context.Context, taskID string) ([]model.TaskAgent, error) {
	ret := _m.Called(ctx, taskID)
	return get[[]model.TaskAgent](ret, 0), ret.Error(1)
}

func (_m *MockRepository) GetDashboardStatus(ctx context.Context) (*model.DashboardStatus, error) {
	ret := _m.Called(ctx)
	return get[*model.DashboardStatus](ret, 0), ret.Error(1)
}

func (_m *MockRepository) UpdateDashboardStatus(ctx context.Context, u model.StatusUpdate) (*model.DashboardStatus, error) {
	ret := _m.Called(ctx, u)
	return get[*model.DashboardStatus](ret, 0), ret.Error(1)
}

func (_m *MockRepository) AddActivity(ctx context.Context, a model.Activity) (*model.Activity, error) {
	ret := _m.Called(ctx, a)
	return get[*model.Activity](ret, 0), ret.Error(1)
}

func (_m *MockRepository) ListActivities(ctx context.Context, limit int) ([]model.Activity, error) {
	ret := _m.Called(ctx, limit)
	return get[[]model.Activity](ret, 0), ret.Error(1)
}

func (_m *MockRepository) PruneActivities(ctx context.Context, keep int) (int, error) {
	ret := _m.Called(ctx, keep)
	return ret.Int(0), ret.Error(1)
}

func (_m *MockRepository) AddChatMessage(ctx context.Context, m model.ChatMessage) (*model.ChatMessage, error) {
	ret := _m.Called(ctx, m)
	return get[*model.ChatMessage](ret, 0), ret.Error(1)
}

func (_m *MockRepository) ListChatMessages(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	ret := _m.Called(ctx, limit)
	return get[[]model.ChatMessage](ret, 0), ret.Error(1)
}

func (_m *MockRepository) MarkChatRead(ctx context.Context, lastID int64) (int, error) {
	ret := _m.Called(ctx, lastID)
	return ret.Int(0), ret.Error(1)
}

func (_m *MockRepository) CountUnreadChat(ctx context.Context) (int, error) {
	ret := _m.Called(ctx)
	return ret.Int(0), ret.Error(1)
}

func (_m *MockRepository) RecordAPIUsage(ctx context.Context, day string, r model.UsageRecord) (*model.APIUsage, error) {
	ret := _m.Called(ctx, day, r)
	return get[*model.APIUsage](ret, 0), ret.Error(1)
}

func (_m *MockRepository) ListAPIUsage(ctx context.Context, fromDay, toDay string) ([]model.APIUsage, error) {
	ret := _m.Called(ctx, fromDay, toDay)
	return get[[]model.APIUsage](ret, 0), ret.Error(1)
}

func (_m *MockRepository) SumAPIUsageCost(ctx context.Context, fromDay, toDay string) (float64, error) {
	ret := _m.Called(ctx, fromDay, toDay)
	return get[float64](ret, 0), ret.Error(1)
}

func get[T any](ret mock.Arguments, i int) T {
	var zero T
	v := ret.Get(i)
	if v == nil {
		return zero
	}
	return v.(T)
}
