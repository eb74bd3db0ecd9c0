package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/slok/missionctl/internal/model"
)

const taskColumns = `
	id, title, status, description, progress_percent, eta,
	estimated_cost, actual_cost, priority, assignee, tags, metadata,
	created_at, started_at, completed_at
`

// CreateTask creates a new task in the repository.
func (r *Repository) CreateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	tags, metadata, err := marshalTaskColumns(t)
	if err != nil {
		return err
	}

	query := `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		t.ID,
		t.Title,
		t.Status,
		t.Description,
		t.ProgressPercent,
		timePtrToMillis(t.ETA),
		t.EstimatedCost,
		t.ActualCost,
		t.Priority,
		t.Assignee,
		tags,
		metadata,
		timeToMillis(t.CreatedAt),
		timePtrToMillis(t.StartedAt),
		timePtrToMillis(t.CompletedAt),
	)
	if err != nil {
		if isUniqueErr(err) {
			return fmt.Errorf("task %s: %w", t.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Created task in repository: %s", t.ID)
	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}

	return &task, nil
}

// ListTasks returns all tasks, newest first.
func (r *Repository) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

// UpdateTask updates all the mutable task fields in a single statement, guarded by
// the status the caller based its changes on.
func (r *Repository) UpdateTask(ctx context.Context, t model.Task, fromStatus model.TaskStatus) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	tags, metadata, err := marshalTaskColumns(t)
	if err != nil {
		return err
	}

	query := `
		UPDATE tasks
		SET
			title = ?,
			status = ?,
			description = ?,
			progress_percent = ?,
			eta = ?,
			estimated_cost = ?,
			actual_cost = ?,
			priority = ?,
			assignee = ?,
			tags = ?,
			metadata = ?,
			started_at = ?,
			completed_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		t.Title,
		t.Status,
		t.Description,
		t.ProgressPercent,
		timePtrToMillis(t.ETA),
		t.EstimatedCost,
		t.ActualCost,
		t.Priority,
		t.Assignee,
		tags,
		metadata,
		timePtrToMillis(t.StartedAt),
		timePtrToMillis(t.CompletedAt),
		t.ID,
		fromStatus,
	)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		// Either the task is gone or its status changed under us.
		if _, err := r.GetTask(ctx, t.ID); err != nil {
			return err
		}
		return fmt.Errorf("task %s is no longer %s: %w", t.ID, fromStatus, model.ErrIllegalTransition)
	}

	r.logger.Debugf("Updated task in repository: %s (%s -> %s)", t.ID, fromStatus, t.Status)
	return nil
}

// DeleteTask deletes a task, the foreign keys cascade to its nested entities.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted task from repository: %s", id)
	return nil
}

// CountTasksByStatus returns the number of tasks grouped by their stored status.
func (r *Repository) CountTasksByStatus(ctx context.Context) (map[model.TaskStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("could not count tasks: %w", err)
	}
	defer rows.Close()

	counts := map[model.TaskStatus]int{}
	for rows.Next() {
		var status model.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return counts, nil
}

func marshalTaskColumns(t model.Task) (tags string, metadata string, err error) {
	tagList := t.Tags
	if tagList == nil {
		tagList = []string{}
	}
	tags, err = marshalJSON(tagList)
	if err != nil {
		return "", "", err
	}

	meta := t.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metadata, err = marshalJSON(meta)
	if err != nil {
		return "", "", err
	}

	return tags, metadata, nil
}

func scanTask(s scanner) (model.Task, error) {
	var t model.Task
	var eta, createdAt, startedAt, completedAt sql.NullInt64
	var assignee sql.NullString
	var tags, metadata string

	err := s.Scan(
		&t.ID,
		&t.Title,
		&t.Status,
		&t.Description,
		&t.ProgressPercent,
		&eta,
		&t.EstimatedCost,
		&t.ActualCost,
		&t.Priority,
		&assignee,
		&tags,
		&metadata,
		&createdAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return model.Task{}, err
	}

	if !createdAt.Valid {
		return model.Task{}, fmt.Errorf("created_at is required")
	}
	t.CreatedAt = timeFromMillis(createdAt.Int64)
	t.ETA = timePtrFromMillis(eta)
	t.StartedAt = timePtrFromMillis(startedAt)
	t.CompletedAt = timePtrFromMillis(completedAt)
	t.Assignee = stringPtrFromNull(assignee)

	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return model.Task{}, fmt.Errorf("could not unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &t.Metadata); err != nil {
		return model.Task{}, fmt.Errorf("could not unmarshal metadata: %w", err)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}

	return t, nil
}
