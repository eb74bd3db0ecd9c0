package model

import (
	"fmt"
	"strings"
	"time"
)

// UsageDateLayout is the layout of the UTC day the API usage is accumulated by.
const UsageDateLayout = "2006-01-02"

// UsageDay returns the UTC day of t in UsageDateLayout.
func UsageDay(t time.Time) string { return t.UTC().Format(UsageDateLayout) }

// UsageRecord is a single API request reported by the external actor.
type UsageRecord struct {
	Model     string  `json:"model"`
	TokensIn  int64   `json:"tokens_in"`
	TokensOut int64   `json:"tokens_out"`
	Cost      float64 `json:"cost"`
}

// Validate validates the record.
func (r UsageRecord) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("model is required: %w", ErrNotValid)
	}
	if r.TokensIn < 0 || r.TokensOut < 0 {
		return fmt.Errorf("tokens can't be negative: %w", ErrNotValid)
	}
	if r.Cost < 0 {
		return fmt.Errorf("cost can't be negative: %w", ErrNotValid)
	}
	return nil
}

// APIUsage is the accumulated usage of a model on a day.
type APIUsage struct {
	ID        int64   `json:"id"`
	UsageDate string  `json:"usage_date"`
	Model     string  `json:"model"`
	Requests  int     `json:"requests"`
	TokensIn  int64   `json:"tokens_in"`
	TokensOut int64   `json:"tokens_out"`
	Cost      float64 `json:"cost"`
}

// BudgetWindow is the spent cost of a period against its limit.
type BudgetWindow struct {
	Used  float64 `json:"used"`
	Limit float64 `json:"limit"`
}

// Exceeded returns true when the used cost reached the limit.
func (w BudgetWindow) Exceeded() bool { return w.Used >= w.Limit }

// BudgetStatus is the API spend of the current day and month.
type BudgetStatus struct {
	Daily   BudgetWindow `json:"daily"`
	Monthly BudgetWindow `json:"monthly"`
}
