package logrus_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/missionctl/internal/log"
	loglogrus "github.com/slok/missionctl/internal/log/logrus"
)

func TestLogrusCtxValues(t *testing.T) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	logger := loglogrus.NewLogrus(logrus.NewEntry(l)).WithValues(log.Kv{"svc": "app.Task"})

	ctx := logger.SetValuesOnCtx(context.Background(), log.Kv{"request_id": "r1"})
	logger.WithCtxValues(ctx).Infof("Created task: %s", "t1")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "Created task: t1", entry.Message)
	assert.Equal(t, logrus.Fields{"svc": "app.Task", "request_id": "r1"}, entry.Data)
}
