package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/missionctl/internal/model"
)

// AggregateRepository is the subset of the store needed to build a task aggregate.
type AggregateRepository interface {
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTaskLogs(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error)
	ListTaskEvents(ctx context.Context, taskID string) ([]model.TaskEvent, error)
	ListTaskAgents(ctx context.Context, taskID string) ([]model.TaskAgent, error)
}

// GetTaskAggregate loads a task with its newest logLimit logs, its timeline and its
// agents. A missing task is not an error, it returns nil.
func GetTaskAggregate(ctx context.Context, repo AggregateRepository, taskID string, logLimit int) (*model.TaskAggregate, error) {
	task, err := repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	logs, err := repo.ListTaskLogs(ctx, taskID, logLimit)
	if err != nil {
		return nil, fmt.Errorf("could not list task logs: %w", err)
	}

	events, err := repo.ListTaskEvents(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not list task events: %w", err)
	}

	agents, err := repo.ListTaskAgents(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not list task agents: %w", err)
	}

	return &model.TaskAggregate{
		Task:   *task,
		Logs:   nonNil(logs),
		Events: nonNil(events),
		Agents: nonNil(agents),
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
