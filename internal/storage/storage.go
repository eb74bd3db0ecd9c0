package storage

import (
	"context"

	"github.com/slok/missionctl/internal/model"
)

// TaskRepository is the interface for task persistence.
type TaskRepository interface {
	CreateTask(ctx context.Context, t model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context) ([]model.Task, error)
	// UpdateTask stores the task only if its stored status is still fromStatus,
	// otherwise it returns model.ErrIllegalTransition.
	UpdateTask(ctx context.Context, t model.Task, fromStatus model.TaskStatus) error
	// DeleteTask deletes the task and all its logs, timeline events and agents.
	DeleteTask(ctx context.Context, id string) error
	CountTasksByStatus(ctx context.Context) (map[model.TaskStatus]int, error)
}

// TaskDetailRepository is the interface for the entities nested under a task.
// Creating a nested entity for a missing task returns model.ErrNotFound.
type TaskDetailRepository interface {
	AddTaskLog(ctx context.Context, l model.TaskLog) (*model.TaskLog, error)
	ListTaskLogs(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error)
	AddTaskEvent(ctx context.Context, e model.TaskEvent) (*model.TaskEvent, error)
	ListTaskEvents(ctx context.Context, taskID string) ([]model.TaskEvent, error)
	AddTaskAgent(ctx context.Context, a model.TaskAgent) (*model.TaskAgent, error)
	GetTaskAgent(ctx context.Context, id int64) (*model.TaskAgent, error)
	UpdateTaskAgent(ctx context.Context, id int64, u model.AgentUpdate) (*model.TaskAgent, error)
	ListTaskAgents(ctx context.Context, taskID string) ([]model.TaskAgent, error)
}

// DashboardRepository is the interface for the dashboard singleton and the activity feed.
type DashboardRepository interface {
	GetDashboardStatus(ctx context.Context) (*model.DashboardStatus, error)
	// UpdateDashboardStatus applies the update and stamps the last updated time.
	UpdateDashboardStatus(ctx context.Context, u model.StatusUpdate) (*model.DashboardStatus, error)
	AddActivity(ctx context.Context, a model.Activity) (*model.Activity, error)
	ListActivities(ctx context.Context, limit int) ([]model.Activity, error)
	// PruneActivities keeps the newest keep activities and returns the number deleted.
	PruneActivities(ctx context.Context, keep int) (int, error)
}

// ChatRepository is the interface for chat message persistence.
type ChatRepository interface {
	AddChatMessage(ctx context.Context, m model.ChatMessage) (*model.ChatMessage, error)
	// ListChatMessages returns the newest limit messages, oldest first.
	ListChatMessages(ctx context.Context, limit int) ([]model.ChatMessage, error)
	// MarkChatRead marks as read every message up to lastID and returns the number marked.
	MarkChatRead(ctx context.Context, lastID int64) (int, error)
	// CountUnreadChat counts the unread messages of the external actor.
	CountUnreadChat(ctx context.Context) (int, error)
}

// UsageRepository is the interface for the API usage accumulated per day and model.
// Days use model.UsageDateLayout, ranges include both ends.
type UsageRepository interface {
	// RecordAPIUsage adds one request with its tokens and cost to the day and model totals.
	RecordAPIUsage(ctx context.Context, day string, r model.UsageRecord) (*model.APIUsage, error)
	// ListAPIUsage returns the totals between the days, newest day first.
	ListAPIUsage(ctx context.Context, fromDay, toDay string) ([]model.APIUsage, error)
	SumAPIUsageCost(ctx context.Context, fromDay, toDay string) (float64, error)
}

// Repository is the whole entity store.
type Repository interface {
	TaskRepository
	TaskDetailRepository
	DashboardRepository
	ChatRepository
	UsageRepository
}
