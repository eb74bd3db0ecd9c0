package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/slok/missionctl/internal/model"
)

// AddTaskLog appends a log line to a task.
func (r *Repository) AddTaskLog(ctx context.Context, l model.TaskLog) (*model.TaskLog, error) {
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task log: %w", err)
	}

	ts := timeToMillis(l.Timestamp)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO task_logs (task_id, level, message, timestamp) VALUES (?, ?, ?, ?)`,
		l.TaskID, l.Level, l.Message, ts,
	)
	if err != nil {
		if isForeignKeyErr(err) {
			return nil, fmt.Errorf("task %s: %w", l.TaskID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not insert task log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("could not get task log id: %w", err)
	}

	l.ID = id
	l.Timestamp = timeFromMillis(ts)
	return &l, nil
}

// ListTaskLogs returns the newest limit logs of a task, newest first.
func (r *Repository) ListTaskLogs(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, level, message, timestamp
		FROM task_logs
		WHERE task_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, taskID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("could not query task logs: %w", err)
	}
	defer rows.Close()

	logs := []model.TaskLog{}
	for rows.Next() {
		var l model.TaskLog
		var ts int64
		if err := rows.Scan(&l.ID, &l.TaskID, &l.Level, &l.Message, &ts); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		l.Timestamp = timeFromMillis(ts)
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return logs, nil
}

// AddTaskEvent appends a timeline event to a task.
func (r *Repository) AddTaskEvent(ctx context.Context, e model.TaskEvent) (*model.TaskEvent, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task event: %w", err)
	}

	details, err := marshalNullableMap(e.Details)
	if err != nil {
		return nil, err
	}

	ts := timeToMillis(e.Timestamp)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO task_events (task_id, event_type, title, details, timestamp) VALUES (?, ?, ?, ?, ?)`,
		e.TaskID, e.EventType, e.Title, details, ts,
	)
	if err != nil {
		if isForeignKeyErr(err) {
			return nil, fmt.Errorf("task %s: %w", e.TaskID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not insert task event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("could not get task event id: %w", err)
	}

	e.ID = id
	e.Timestamp = timeFromMillis(ts)
	return &e, nil
}

// ListTaskEvents returns the whole timeline of a task, newest first.
func (r *Repository) ListTaskEvents(ctx context.Context, taskID string) ([]model.TaskEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, event_type, title, details, timestamp
		FROM task_events
		WHERE task_id = ?
		ORDER BY timestamp DESC, id DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not query task events: %w", err)
	}
	defer rows.Close()

	events := []model.TaskEvent{}
	for rows.Next() {
		var e model.TaskEvent
		var details sql.NullString
		var ts int64
		if err := rows.Scan(&e.ID, &e.TaskID, &e.EventType, &e.Title, &details, &ts); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		e.Details, err = unmarshalNullableMap(details)
		if err != nil {
			return nil, err
		}
		e.Timestamp = timeFromMillis(ts)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return events, nil
}

const agentColumns = `id, task_id, agent_id, session_key, status, started_at, completed_at, cost`

// AddTaskAgent registers a sub-agent delegation of a task.
func (r *Repository) AddTaskAgent(ctx context.Context, a model.TaskAgent) (*model.TaskAgent, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task agent: %w", err)
	}

	startedAt := timeToMillis(a.StartedAt)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO task_agents (task_id, agent_id, session_key, status, started_at, completed_at, cost) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.TaskID, a.AgentID, a.SessionKey, a.Status, startedAt, timePtrToMillis(a.CompletedAt), a.Cost,
	)
	if err != nil {
		if isForeignKeyErr(err) {
			return nil, fmt.Errorf("task %s: %w", a.TaskID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not insert task agent: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("could not get task agent id: %w", err)
	}

	a.ID = id
	a.StartedAt = timeFromMillis(startedAt)
	r.logger.Debugf("Spawned agent %s for task %s", a.AgentID, a.TaskID)
	return &a, nil
}

// GetTaskAgent retrieves a delegation by its store ID.
func (r *Repository) GetTaskAgent(ctx context.Context, id int64) (*model.TaskAgent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM task_agents WHERE id = ?`, id)
	agent, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task agent %d: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task agent: %w", err)
	}

	return &agent, nil
}

// UpdateTaskAgent applies a partial update to a delegation and returns the result.
func (r *Repository) UpdateTaskAgent(ctx context.Context, id int64, u model.AgentUpdate) (*model.TaskAgent, error) {
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent update: %w", err)
	}

	var sets []string
	var args []any
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *u.Status)
	}
	if u.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, u.StartedAt.UTC().UnixMilli())
	}
	if u.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, u.CompletedAt.UTC().UnixMilli())
	}
	if u.Cost != nil {
		sets = append(sets, "cost = ?")
		args = append(args, *u.Cost)
	}
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, `UPDATE task_agents SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("could not update task agent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("task agent %d: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Updated task agent in repository: %d", id)
	return r.GetTaskAgent(ctx, id)
}

// ListTaskAgents returns the delegations of a task, most recently started first.
func (r *Repository) ListTaskAgents(ctx context.Context, taskID string) ([]model.TaskAgent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+agentColumns+`
		FROM task_agents
		WHERE task_id = ?
		ORDER BY started_at DESC, id DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not query task agents: %w", err)
	}
	defer rows.Close()

	agents := []model.TaskAgent{}
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		agents = append(agents, agent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return agents, nil
}

func scanAgent(s scanner) (model.TaskAgent, error) {
	var a model.TaskAgent
	var sessionKey sql.NullString
	var startedAt int64
	var completedAt sql.NullInt64

	err := s.Scan(&a.ID, &a.TaskID, &a.AgentID, &sessionKey, &a.Status, &startedAt, &completedAt, &a.Cost)
	if err != nil {
		return model.TaskAgent{}, err
	}

	a.SessionKey = stringPtrFromNull(sessionKey)
	a.StartedAt = timeFromMillis(startedAt)
	a.CompletedAt = timePtrFromMillis(completedAt)
	return a, nil
}
