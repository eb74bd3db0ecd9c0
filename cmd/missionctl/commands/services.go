package commands

import (
	"context"
	"fmt"

	"github.com/slok/missionctl/internal/app/chat"
	"github.com/slok/missionctl/internal/app/dashboard"
	"github.com/slok/missionctl/internal/app/reconcile"
	"github.com/slok/missionctl/internal/app/task"
	"github.com/slok/missionctl/internal/app/taskdetail"
	"github.com/slok/missionctl/internal/app/usage"
	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/storage/sqlite"
)

// services are the application services over the SQLite entity store.
type services struct {
	repo       *sqlite.Repository
	tasks      *task.Service
	details    *taskdetail.Service
	dashboard  *dashboard.Service
	reconciler *reconcile.Service
	chat       *chat.Service
	usage      *usage.Service
}

// newServices wires the application services. The offline commands use a
// noop publisher, the server passes its broadcast hub.
func newServices(ctx context.Context, root *RootCommand, pub broadcast.Publisher) (*services, error) {
	logger := root.Logger

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: root.DBPath,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	s := &services{repo: repo}
	err = s.init(pub, root)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	return s, nil
}

func (s *services) init(pub broadcast.Publisher, root *RootCommand) error {
	logger := root.Logger
	var err error

	s.tasks, err = task.NewService(task.ServiceConfig{
		Repository: s.repo,
		Publisher:  pub,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create task service: %w", err)
	}

	s.details, err = taskdetail.NewService(taskdetail.ServiceConfig{
		Repository: s.repo,
		Publisher:  pub,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create task detail service: %w", err)
	}

	s.dashboard, err = dashboard.NewService(dashboard.ServiceConfig{
		Repository: s.repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create dashboard service: %w", err)
	}

	s.reconciler, err = reconcile.NewService(reconcile.ServiceConfig{
		Repository: s.repo,
		Dashboard:  s.dashboard,
		Publisher:  pub,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create reconcile service: %w", err)
	}

	s.chat, err = chat.NewService(chat.ServiceConfig{
		Repository: s.repo,
		Publisher:  pub,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create chat service: %w", err)
	}

	s.usage, err = usage.NewService(usage.ServiceConfig{
		Repository:    s.repo,
		Publisher:     pub,
		Logger:        logger,
		DailyBudget:   root.DailyBudget,
		MonthlyBudget: root.MonthlyBudget,
	})
	if err != nil {
		return fmt.Errorf("could not create api usage service: %w", err)
	}

	return nil
}

func (s *services) close() error { return s.repo.Close() }
