package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/conventions"
	"github.com/slok/missionctl/internal/log"
	"github.com/slok/missionctl/internal/model"
	"github.com/slok/missionctl/internal/storage"
)

// StatusMerger is the single writer of the dashboard status.
type StatusMerger interface {
	MergeStatus(ctx context.Context, u model.StatusUpdate) (*model.DashboardStatus, error)
	Snapshot(ctx context.Context) (*model.DashboardSnapshot, error)
}

// ServiceConfig is the configuration for the reconcile service.
type ServiceConfig struct {
	Repository storage.DashboardRepository
	Dashboard  StatusMerger
	Publisher  broadcast.Publisher
	Logger     log.Logger
	Clock      func() time.Time
	// Retention is the number of activities kept, defaults to 50.
	Retention int
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Dashboard == nil {
		return fmt.Errorf("dashboard is required")
	}
	if c.Publisher == nil {
		c.Publisher = broadcast.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Reconcile"})
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Retention <= 0 {
		c.Retention = conventions.ActivityRetention
	}
	return nil
}

// Service applies externally observed telemetry to the dashboard.
type Service struct {
	repo      storage.DashboardRepository
	dashboard StatusMerger
	pub       broadcast.Publisher
	logger    log.Logger
	now       func() time.Time
	retention int
}

// NewService creates a new reconcile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:      cfg.Repository,
		dashboard: cfg.Dashboard,
		pub:       cfg.Publisher,
		logger:    cfg.Logger,
		now:       cfg.Clock,
		retention: cfg.Retention,
	}, nil
}

// Request is a batch of telemetry, at least one of the parts is required.
type Request model.Telemetry

// Reconcile applies the costs and the activities of the batch and then pushes one
// dashboard snapshot to the viewers. The parts are independent: when one fails the
// other is kept and the first error is returned.
func (s *Service) Reconcile(ctx context.Context, req Request) (*model.DashboardSnapshot, error) {
	if model.Telemetry(req).Empty() {
		return nil, fmt.Errorf("costs or activities are required: %w", model.ErrNotValid)
	}

	var errs []error
	applied := false

	if req.Costs != nil {
		_, err := s.dashboard.MergeStatus(ctx, model.StatusUpdate{
			CostToday: &req.Costs.Today,
			CostTotal: &req.Costs.Total,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("could not merge costs: %w", err))
		} else {
			applied = true
		}
	}

	if len(req.Activities) > 0 {
		n, err := s.addActivities(ctx, req.Activities)
		if n > 0 {
			applied = true
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if !applied {
		return nil, errs[0]
	}

	snap, err := s.dashboard.Snapshot(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("could not get dashboard snapshot: %w", err))
		return nil, errs[0]
	}
	s.pub.Broadcast(ctx, model.NewStatusUpdateEvent(*snap))

	if len(errs) > 0 {
		s.logger.WithCtxValues(ctx).Warningf("Telemetry partially applied: %s", errors.Join(errs...))
		return snap, errs[0]
	}

	s.logger.WithCtxValues(ctx).Debugf("Telemetry reconciled (costs: %t, activities: %d)", req.Costs != nil, len(req.Activities))
	return snap, nil
}

// RecordActivity stores a single activity and pushes it to the viewers.
func (s *Service) RecordActivity(ctx context.Context, a model.Activity) (*model.Activity, error) {
	stored, err := s.addActivity(ctx, a)
	if err != nil {
		return nil, err
	}
	if err := s.prune(ctx); err != nil {
		return nil, err
	}

	s.pub.Broadcast(ctx, model.NewActivityEvent(*stored))
	return stored, nil
}

// ListActivities returns the newest activities, newest first.
func (s *Service) ListActivities(ctx context.Context, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = conventions.ActivityListLimit
	}

	acts, err := s.repo.ListActivities(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list activities: %w", err)
	}

	return acts, nil
}

// addActivities stores the batch in order and prunes once, it returns the number
// of stored activities.
func (s *Service) addActivities(ctx context.Context, acts []model.Activity) (int, error) {
	stored := 0
	for i, a := range acts {
		if _, err := s.addActivity(ctx, a); err != nil {
			return stored, fmt.Errorf("activity %d: %w", i, err)
		}
		stored++
	}

	if err := s.prune(ctx); err != nil {
		return stored, err
	}

	return stored, nil
}

func (s *Service) addActivity(ctx context.Context, a model.Activity) (*model.Activity, error) {
	if a.Timestamp.IsZero() {
		a.Timestamp = s.now().UTC()
	}

	stored, err := s.repo.AddActivity(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("could not add activity: %w", err)
	}

	return stored, nil
}

func (s *Service) prune(ctx context.Context) error {
	deleted, err := s.repo.PruneActivities(ctx, s.retention)
	if err != nil {
		return fmt.Errorf("could not prune activities: %w", err)
	}
	if deleted > 0 {
		s.logger.WithCtxValues(ctx).Debugf("Pruned %d old activities", deleted)
	}

	return nil
}
