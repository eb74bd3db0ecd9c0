package sqlite

import (
	"context"
	"fmt"

	"github.com/slok/missionctl/internal/model"
)

// RecordAPIUsage adds the request to the day and model totals in a single upsert.
func (r *Repository) RecordAPIUsage(ctx context.Context, day string, rec model.UsageRecord) (*model.APIUsage, error) {
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid usage record: %w", err)
	}

	var u model.APIUsage
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO api_usage (usage_date, model, requests, tokens_in, tokens_out, cost)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT (usage_date, model) DO UPDATE SET
			requests = requests + 1,
			tokens_in = tokens_in + excluded.tokens_in,
			tokens_out = tokens_out + excluded.tokens_out,
			cost = cost + excluded.cost
		RETURNING id, usage_date, model, requests, tokens_in, tokens_out, cost
	`, day, rec.Model, rec.TokensIn, rec.TokensOut, rec.Cost).Scan(
		&u.ID, &u.UsageDate, &u.Model, &u.Requests, &u.TokensIn, &u.TokensOut, &u.Cost,
	)
	if err != nil {
		return nil, fmt.Errorf("could not record api usage: %w", err)
	}

	r.logger.Debugf("Recorded api usage: %s %s (%d requests)", u.UsageDate, u.Model, u.Requests)
	return &u, nil
}

// ListAPIUsage returns the totals between the days, newest day first.
func (r *Repository) ListAPIUsage(ctx context.Context, fromDay, toDay string) ([]model.APIUsage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, usage_date, model, requests, tokens_in, tokens_out, cost
		FROM api_usage
		WHERE usage_date BETWEEN ? AND ?
		ORDER BY usage_date DESC, model ASC
	`, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("could not query api usage: %w", err)
	}
	defer rows.Close()

	usage := []model.APIUsage{}
	for rows.Next() {
		var u model.APIUsage
		if err := rows.Scan(&u.ID, &u.UsageDate, &u.Model, &u.Requests, &u.TokensIn, &u.TokensOut, &u.Cost); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		usage = append(usage, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return usage, nil
}

// SumAPIUsageCost sums the cost between the days.
func (r *Repository) SumAPIUsageCost(ctx context.Context, fromDay, toDay string) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0) FROM api_usage WHERE usage_date BETWEEN ? AND ?`,
		fromDay, toDay,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("could not sum api usage cost: %w", err)
	}

	return total, nil
}
