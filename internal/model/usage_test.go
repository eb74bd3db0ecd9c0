package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/missionctl/internal/model"
)

func TestUsageRecordValidate(t *testing.T) {
	tests := map[string]struct {
		record model.UsageRecord
		expErr bool
	}{
		"A record with only the model should be valid.": {
			record: model.UsageRecord{Model: "sonnet"},
		},
		"A record without model should fail.": {
			record: model.UsageRecord{Model: " ", TokensIn: 10},
			expErr: true,
		},
		"Negative tokens should fail.": {
			record: model.UsageRecord{Model: "sonnet", TokensOut: -1},
			expErr: true,
		},
		"A negative cost should fail.": {
			record: model.UsageRecord{Model: "sonnet", Cost: -0.01},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.record.Validate()

			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUsageDay(t *testing.T) {
	// Late evening in New York is already the next day in UTC.
	ny := time.FixedZone("EST", -5*60*60)
	assert.Equal(t, "2026-03-11", model.UsageDay(time.Date(2026, 3, 10, 22, 0, 0, 0, ny)))
}

func TestBudgetWindowExceeded(t *testing.T) {
	assert.False(t, model.BudgetWindow{Used: 4.99, Limit: 5}.Exceeded())
	assert.True(t, model.BudgetWindow{Used: 5, Limit: 5}.Exceeded())
}
