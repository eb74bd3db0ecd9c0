// Package broadcastmock has testify mocks for the broadcast interfaces.
package broadcastmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/model"
)

// MockPublisher is a mock of broadcast.Publisher.
type MockPublisher struct {
	mock.Mock
}

var _ broadcast.Publisher = &MockPublisher{}

// NewMockPublisher returns a mock registered with the test cleanup to assert its expectations.
func NewMockPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPublisher {
	m := &MockPublisher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *MockPublisher) Broadcast(ctx context.Context, ev model.Event, exclude ...string) int {
	args := []any{ctx, ev}
	for _, id := range exclude {
		args = append(args, id)
	}
	return _m.Called(args...).Int(0)
}
