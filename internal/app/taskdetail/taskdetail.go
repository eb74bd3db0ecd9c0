package taskdetail

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/conventions"
	"github.com/slok/missionctl/internal/log"
	"github.com/slok/missionctl/internal/model"
	"github.com/slok/missionctl/internal/storage"
)

// ServiceConfig is the configuration for the task detail service.
type ServiceConfig struct {
	Repository storage.Repository
	Publisher  broadcast.Publisher
	Logger     log.Logger
	Clock      func() time.Time
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Publisher == nil {
		c.Publisher = broadcast.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TaskDetail"})
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return nil
}

// Service manages the logs, timeline events and sub-agents that hang from a task.
type Service struct {
	repo   storage.Repository
	pub    broadcast.Publisher
	logger log.Logger
	now    func() time.Time
}

// NewService creates a new task detail service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		pub:    cfg.Publisher,
		logger: cfg.Logger,
		now:    cfg.Clock,
	}, nil
}

// AppendLogRequest represents a new task log line.
type AppendLogRequest struct {
	TaskID string
	// Level defaults to info.
	Level   model.LogLevel
	Message string
}

// AppendLog appends a log line to an existing task.
func (s *Service) AppendLog(ctx context.Context, req AppendLogRequest) (*model.TaskLog, error) {
	level := req.Level
	if level == "" {
		level = model.LogLevelInfo
	}

	l, err := s.repo.AddTaskLog(ctx, model.TaskLog{
		TaskID:    req.TaskID,
		Level:     level,
		Message:   req.Message,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("could not append task log: %w", err)
	}

	s.pub.Broadcast(ctx, model.NewTaskLogEvent(*l))
	return l, nil
}

// AppendEventRequest represents a new timeline event.
type AppendEventRequest struct {
	TaskID    string
	EventType string
	Title     string
	Details   map[string]any
}

// AppendEvent appends a timeline event to an existing task.
func (s *Service) AppendEvent(ctx context.Context, req AppendEventRequest) (*model.TaskEvent, error) {
	e, err := s.repo.AddTaskEvent(ctx, model.TaskEvent{
		TaskID:    req.TaskID,
		EventType: req.EventType,
		Title:     req.Title,
		Details:   req.Details,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("could not append task event: %w", err)
	}

	s.pub.Broadcast(ctx, model.NewTaskEventEvent(*e))
	return e, nil
}

// SpawnAgentRequest represents a new sub-agent delegation.
type SpawnAgentRequest struct {
	TaskID     string
	AgentID    string
	SessionKey *string
}

// SpawnAgent registers a pending sub-agent under an existing task.
func (s *Service) SpawnAgent(ctx context.Context, req SpawnAgentRequest) (*model.TaskAgent, error) {
	a, err := s.repo.AddTaskAgent(ctx, model.TaskAgent{
		TaskID:     req.TaskID,
		AgentID:    req.AgentID,
		SessionKey: req.SessionKey,
		Status:     model.AgentStatusPending,
		StartedAt:  s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("could not spawn agent: %w", err)
	}

	s.logger.WithCtxValues(ctx).Infof("Spawned agent %s for task %s", a.AgentID, a.TaskID)
	s.pub.Broadcast(ctx, model.NewTaskAgentEvent(*a))
	return a, nil
}

// UpdateAgent applies a partial update to a sub-agent delegation.
func (s *Service) UpdateAgent(ctx context.Context, id int64, u model.AgentUpdate) (*model.TaskAgent, error) {
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent update: %w", err)
	}

	a, err := s.repo.UpdateTaskAgent(ctx, id, u)
	if err != nil {
		return nil, fmt.Errorf("could not update agent: %w", err)
	}

	s.pub.Broadcast(ctx, model.NewTaskAgentEvent(*a))
	return a, nil
}

// GetAggregate returns the task with its newest logs, its timeline and its agents.
// A missing task returns nil without error.
func (s *Service) GetAggregate(ctx context.Context, taskID string, logLimit int) (*model.TaskAggregate, error) {
	if logLimit <= 0 {
		logLimit = conventions.EmbeddedLogLimit
	}

	return storage.GetTaskAggregate(ctx, s.repo, taskID, logLimit)
}

// ListLogs returns the newest logs of a task, newest first.
func (s *Service) ListLogs(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error) {
	if limit <= 0 {
		limit = conventions.LogListLimit
	}

	logs, err := s.repo.ListTaskLogs(ctx, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list task logs: %w", err)
	}

	return logs, nil
}

// ListEvents returns the timeline of a task, newest first.
func (s *Service) ListEvents(ctx context.Context, taskID string) ([]model.TaskEvent, error) {
	events, err := s.repo.ListTaskEvents(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not list task events: %w", err)
	}

	return events, nil
}

// ListAgents returns the sub-agents of a task, most recently started first.
func (s *Service) ListAgents(ctx context.Context, taskID string) ([]model.TaskAgent, error) {
	agents, err := s.repo.ListTaskAgents(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not list task agents: %w", err)
	}

	return agents, nil
}
