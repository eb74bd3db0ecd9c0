package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/slok/missionctl/internal/model"
)

// GetDashboardStatus returns the dashboard singleton.
func (r *Repository) GetDashboardStatus(ctx context.Context) (*model.DashboardStatus, error) {
	var s model.DashboardStatus
	var lastUpdated int64

	err := r.db.QueryRowContext(ctx, `
		SELECT cost_today, cost_total, trading_equity, trading_positions, trading_status, last_updated
		FROM dashboard_status
		WHERE id = 1
	`).Scan(&s.CostToday, &s.CostTotal, &s.Trading.Equity, &s.Trading.Positions, &s.Trading.Status, &lastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("dashboard status: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query dashboard status: %w", err)
	}

	s.LastUpdated = timeFromMillis(lastUpdated)
	return &s, nil
}

// UpdateDashboardStatus applies a partial update to the singleton in one statement.
func (r *Repository) UpdateDashboardStatus(ctx context.Context, u model.StatusUpdate) (*model.DashboardStatus, error) {
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("invalid status update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE dashboard_status
		SET
			cost_today = COALESCE(?, cost_today),
			cost_total = COALESCE(?, cost_total),
			trading_equity = COALESCE(?, trading_equity),
			trading_positions = COALESCE(?, trading_positions),
			trading_status = COALESCE(?, trading_status),
			last_updated = ?
		WHERE id = 1
	`, u.CostToday, u.CostTotal, u.TradingEquity, u.TradingPositions, u.TradingStatus, nowMillis())
	if err != nil {
		return nil, fmt.Errorf("could not update dashboard status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("dashboard status: %w", model.ErrNotFound)
	}

	r.logger.Debugf("Updated dashboard status")
	return r.GetDashboardStatus(ctx)
}

// AddActivity appends an activity to the feed.
func (r *Repository) AddActivity(ctx context.Context, a model.Activity) (*model.Activity, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid activity: %w", err)
	}

	metadata, err := marshalNullableMap(a.Metadata)
	if err != nil {
		return nil, err
	}

	ts := timeToMillis(a.Timestamp)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO activities (type, icon, title, description, metadata, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		a.Type, a.Icon, a.Title, a.Description, metadata, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("could not insert activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("could not get activity id: %w", err)
	}

	a.ID = id
	a.Timestamp = timeFromMillis(ts)
	return &a, nil
}

// ListActivities returns the newest limit activities, newest first.
func (r *Repository) ListActivities(ctx context.Context, limit int) ([]model.Activity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, icon, title, description, metadata, timestamp
		FROM activities
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("could not query activities: %w", err)
	}
	defer rows.Close()

	activities := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		var metadata sql.NullString
		var ts int64
		if err := rows.Scan(&a.ID, &a.Type, &a.Icon, &a.Title, &a.Description, &metadata, &ts); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		a.Metadata, err = unmarshalNullableMap(metadata)
		if err != nil {
			return nil, err
		}
		a.Timestamp = timeFromMillis(ts)
		activities = append(activities, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return activities, nil
}

// PruneActivities deletes everything but the newest keep activities.
func (r *Repository) PruneActivities(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep can't be negative: %w", model.ErrNotValid)
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM activities
		WHERE id NOT IN (
			SELECT id FROM activities ORDER BY timestamp DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("could not prune activities: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get rows affected: %w", err)
	}

	if deleted > 0 {
		r.logger.Debugf("Pruned %d activities", deleted)
	}
	return int(deleted), nil
}
