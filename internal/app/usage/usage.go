package usage

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

// ServiceConfig is the configuration for the API usage service.
type ServiceConfig struct {
	Repository storage.UsageRepository
	Publisher  broadcast.Publisher
	Logger     log.Logger
	Clock      func() time.Time
	// DailyBudget and MonthlyBudget are the spend limits reported by the budget status.
	DailyBudget   float64
	MonthlyBudget float64
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Usage"})
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.DailyBudget < 0 || c.MonthlyBudget < 0 {
		return fmt.Errorf("budgets can't be negative")
	}
	if c.DailyBudget == 0 {
		c.DailyBudget = conventions.DefaultDailyBudget
	}
	if c.MonthlyBudget == 0 {
		c.MonthlyBudget = conventions.DefaultMonthlyBudget
	}
	return nil
}

// Service accounts the API requests of the external actor per day and model and
// reports the spend against the budgets.
type Service struct {
	repo    storage.UsageRepository
	pub     broadcast.Publisher
	logger  log.Logger
	now     func() time.Time
	daily   float64
	monthly float64
}

// NewService creates a new API usage service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:    cfg.Repository,
		pub:     cfg.Publisher,
		logger:  cfg.Logger,
		now:     cfg.Clock,
		daily:   cfg.DailyBudget,
		monthly: cfg.MonthlyBudget,
	}, nil
}

// Log adds the request to today's totals of its model and pushes it to the viewers.
func (s *Service) Log(ctx context.Context, r model.UsageRecord) (*model.APIUsage, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid usage record: %w", err)
	}

	u, err := s.repo.RecordAPIUsage(ctx, model.UsageDay(s.now()), r)
	if err != nil {
		return nil, fmt.Errorf("could not record api usage: %w", err)
	}

	s.logger.WithCtxValues(ctx).Debugf("API usage logged for %s (%d requests today)", u.Model, u.Requests)
	s.pub.Broadcast(ctx, model.NewAPIUsageEvent(r))

	return u, nil
}

// ListRequest is the day range of an API usage listing, both ends included.
// A zero To is today and a zero From is UsageListDays before To.
type ListRequest struct {
	From time.Time
	To   time.Time
}

// List returns the day and model totals of the range, newest day first.
func (s *Service) List(ctx context.Context, req ListRequest) ([]model.APIUsage, error) {
	to := req.To
	if to.IsZero() {
		to = s.now()
	}
	from := req.From
	if from.IsZero() {
		from = to.AddDate(0, 0, -conventions.UsageListDays)
	}

	fromDay, toDay := model.UsageDay(from), model.UsageDay(to)
	if fromDay > toDay {
		return nil, fmt.Errorf("range start %s is after its end %s: %w", fromDay, toDay, model.ErrNotValid)
	}

	usage, err := s.repo.ListAPIUsage(ctx, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("could not list api usage: %w", err)
	}

	return usage, nil
}

// BudgetStatus returns the spend of the current UTC day and month against the budgets.
func (s *Service) BudgetStatus(ctx context.Context) (*model.BudgetStatus, error) {
	now := s.now().UTC()
	today := model.UsageDay(now)
	monthStart := model.UsageDay(time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC))

	daily, err := s.repo.SumAPIUsageCost(ctx, today, today)
	if err != nil {
		return nil, fmt.Errorf("could not get daily api cost: %w", err)
	}
	monthly, err := s.repo.SumAPIUsageCost(ctx, monthStart, today)
	if err != nil {
		return nil, fmt.Errorf("could not get monthly api cost: %w", err)
	}

	status := &model.BudgetStatus{
		Daily:   model.BudgetWindow{Used: daily, Limit: s.daily},
		Monthly: model.BudgetWindow{Used: monthly, Limit: s.monthly},
	}
	if status.Daily.Exceeded() || status.Monthly.Exceeded() {
		s.logger.WithCtxValues(ctx).Warningf("API budget exceeded (daily %.2f/%.2f, monthly %.2f/%.2f)",
			daily, s.daily, monthly, s.monthly)
	}

	return status, nil
}
