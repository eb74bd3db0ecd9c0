package task

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/conventions"
	"github.com/slok/missionctl/internal/log"
	"github.com/slok/missionctl/internal/model"
	"github.com/slok/missionctl/internal/storage"
)

// ServiceConfig is the configuration for the task service.
type ServiceConfig struct {
	Repository storage.Repository
	Publisher  broadcast.Publisher
	Logger     log.Logger
	// IDGenerator returns the ID of new tasks.
	IDGenerator func() string
	Clock       func() time.Time
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Task"})
	if c.IDGenerator == nil {
		c.IDGenerator = uuid.NewString
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return nil
}

// Service owns the task lifecycle: creation, status transitions and deletion.
type Service struct {
	repo   storage.Repository
	pub    broadcast.Publisher
	logger log.Logger
	newID  func() string
	now    func() time.Time
}

// NewService creates a new task service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		pub:    cfg.Publisher,
		logger: cfg.Logger,
		newID:  cfg.IDGenerator,
		now:    cfg.Clock,
	}, nil
}

// CreateRequest represents the task creation parameters.
type CreateRequest struct {
	Title         string
	Description   string
	Priority      model.TaskPriority
	EstimatedCost float64
	Tags          []string
	Metadata      map[string]any
}

// Create creates a new queued task.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*model.TaskAggregate, error) {
	priority := req.Priority
	if priority == "" {
		priority = model.TaskPriorityNormal
	}

	t := model.Task{
		ID:            s.newID(),
		Title:         strings.TrimSpace(req.Title),
		Status:        model.TaskStatusQueued,
		Description:   req.Description,
		EstimatedCost: req.EstimatedCost,
		Priority:      priority,
		Tags:          model.NormalizeTags(req.Tags),
		Metadata:      maps.Clone(req.Metadata),
		CreatedAt:     s.now().UTC(),
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	if err := s.repo.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("could not create task: %w", err)
	}

	s.logger.WithCtxValues(ctx).Infof("Created task: %s (%s)", t.Title, t.ID)

	return s.publishTask(ctx, t.ID)
}

// TransitionRequest represents the task transition parameters.
type TransitionRequest struct {
	TaskID string
	// Status is the target status, empty keeps the current one.
	Status model.TaskStatus
	Update model.TaskUpdate
}

// Transition moves a task to a new status applying the field updates in the same
// write. Terminal tasks can't be changed anymore.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*model.TaskAggregate, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, fmt.Errorf("unknown target status %q: %w", req.Status, model.ErrIllegalTransition)
	}
	if err := req.Update.Validate(); err != nil {
		return nil, fmt.Errorf("invalid update: %w", err)
	}

	var (
		t        *model.Task
		from, to model.TaskStatus
	)
	for attempt := 1; ; attempt++ {
		var err error
		t, from, to, err = s.applyTransition(ctx, req)
		if err == nil {
			break
		}
		// A status change between our read and the guarded write is only fatal when
		// the task went terminal, which the next read reports.
		if !errors.Is(err, errStatusChanged) {
			return nil, err
		}
		if attempt >= maxTransitionAttempts {
			return nil, fmt.Errorf("could not update task %s, it changed concurrently %d times", req.TaskID, attempt)
		}
		s.logger.WithCtxValues(ctx).Debugf("Task %s changed while transitioning, retrying", req.TaskID)
	}

	if from != to {
		s.logger.WithCtxValues(ctx).Infof("Task %s transitioned: %s -> %s", t.ID, from, to)
	} else {
		s.logger.WithCtxValues(ctx).Debugf("Task %s updated", t.ID)
	}

	return s.publishTask(ctx, t.ID)
}

// maxTransitionAttempts bounds the re-reads after losing a status guard race.
const maxTransitionAttempts = 5

var errStatusChanged = errors.New("task status changed concurrently")

// applyTransition reads the task, computes the new state and stores it guarded by the
// status that was read.
func (s *Service) applyTransition(ctx context.Context, req TransitionRequest) (t *model.Task, from, to model.TaskStatus, err error) {
	t, err = s.repo.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, "", "", fmt.Errorf("could not get task: %w", err)
	}

	from = t.Status
	if from.Terminal() {
		return nil, "", "", fmt.Errorf("task %s is %s: %w", t.ID, from, model.ErrIllegalTransition)
	}

	to = req.Status
	if to == "" {
		to = from
	}

	req.Update.ApplyTo(t)
	t.Status = to

	now := s.now().UTC()
	if to == model.TaskStatusActive && t.StartedAt == nil {
		t.StartedAt = &now
	}
	if to.Terminal() && t.CompletedAt == nil {
		t.CompletedAt = &now
	}

	err = s.repo.UpdateTask(ctx, *t, from)
	if errors.Is(err, model.ErrIllegalTransition) {
		return nil, "", "", fmt.Errorf("%w: %w", errStatusChanged, err)
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("could not update task: %w", err)
	}

	return t, from, to, nil
}

// Delete deletes a task in any status together with its nested entities.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}

	s.logger.WithCtxValues(ctx).Infof("Deleted task: %s", id)
	s.pub.Broadcast(ctx, model.NewTaskDeletedEvent(id))

	return nil
}

// Get returns the task aggregate.
func (s *Service) Get(ctx context.Context, id string) (*model.TaskAggregate, error) {
	agg, err := storage.GetTaskAggregate(ctx, s.repo, id, conventions.EmbeddedLogLimit)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	return agg, nil
}

// List returns all the tasks, newest first.
func (s *Service) List(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.repo.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}

	return tasks, nil
}

// publishTask loads the fresh aggregate after a write and pushes it to the viewers.
func (s *Service) publishTask(ctx context.Context, id string) (*model.TaskAggregate, error) {
	agg, err := s.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not load task after write: %w", err)
	}

	s.pub.Broadcast(ctx, model.NewTaskUpdateEvent(*agg))
	return agg, nil
}
