package dashboard

import (
	"context"
	"fmt"

	"github.com/slok/missionctl/internal/log"
	"github.com/slok/missionctl/internal/model"
	"github.com/slok/missionctl/internal/storage"
)

// Repository is the storage needed by the dashboard service.
type Repository interface {
	CountTasksByStatus(ctx context.Context) (map[model.TaskStatus]int, error)
	GetDashboardStatus(ctx context.Context) (*model.DashboardStatus, error)
	UpdateDashboardStatus(ctx context.Context, u model.StatusUpdate) (*model.DashboardStatus, error)
}

var _ Repository = storage.Repository(nil)

// ServiceConfig is the configuration for the dashboard service.
type ServiceConfig struct {
	Repository Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Dashboard"})
	return nil
}

// Service aggregates the task rollup and owns the writes to the dashboard status.
type Service struct {
	repo   Repository
	logger log.Logger
}

// NewService creates a new dashboard service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// ComputeRollup counts the tasks on each tracked status.
func (s *Service) ComputeRollup(ctx context.Context) (*model.TaskRollup, error) {
	counts, err := s.repo.CountTasksByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not count tasks: %w", err)
	}

	for status, n := range counts {
		if !status.Valid() {
			s.logger.Debugf("Ignoring %d tasks with untracked status %q", n, status)
		}
	}

	rollup := model.RollupFromCounts(counts)
	return &rollup, nil
}

// MergeStatus applies a partial update to the dashboard status. The update values
// overwrite the stored ones, including lower costs.
func (s *Service) MergeStatus(ctx context.Context, u model.StatusUpdate) (*model.DashboardStatus, error) {
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("invalid status update: %w", err)
	}

	status, err := s.repo.UpdateDashboardStatus(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("could not update dashboard status: %w", err)
	}

	s.logger.Debugf("Dashboard status updated")
	return status, nil
}

// Snapshot returns the dashboard status joined with the current task rollup.
func (s *Service) Snapshot(ctx context.Context) (*model.DashboardSnapshot, error) {
	status, err := s.repo.GetDashboardStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get dashboard status: %w", err)
	}

	rollup, err := s.ComputeRollup(ctx)
	if err != nil {
		return nil, err
	}

	return &model.DashboardSnapshot{
		DashboardStatus: *status,
		TaskSummary:     *rollup,
	}, nil
}
