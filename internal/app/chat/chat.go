package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/conventions"
	"github.com/slok/missionctl/internal/log"
	"github.com/slok/missionctl/internal/model"
	"github.com/slok/missionctl/internal/storage"
)

// ServiceConfig is the configuration for the chat service.
type ServiceConfig struct {
	Repository storage.ChatRepository
	Publisher  broadcast.Publisher
	Logger     log.Logger
	Clock      func() time.Time
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Publisher == nil {
		c.Publisher = broadcast.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Chat"})
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return nil
}

// Service relays the chat messages between the viewers and the external actor.
type Service struct {
	repo   storage.ChatRepository
	pub    broadcast.Publisher
	logger log.Logger
	now    func() time.Time
}

// NewService creates a new chat service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		pub:    cfg.Publisher,
		logger: cfg.Logger,
		now:    cfg.Clock,
	}, nil
}

// SendRequest represents a chat message to relay.
type SendRequest struct {
	Message  string
	FromUser bool
	// SenderID is the viewer session that sent the message, it doesn't receive the
	// broadcast. Empty when the message doesn't come from a viewer.
	SenderID string
}

// Send stores the message and pushes it to every viewer except the sender.
func (s *Service) Send(ctx context.Context, req SendRequest) (*model.ChatMessage, error) {
	m, err := s.repo.AddChatMessage(ctx, model.ChatMessage{
		FromUser:  req.FromUser,
		Message:   req.Message,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("could not store chat message: %w", err)
	}
	s.logger.WithCtxValues(ctx).Debugf("Chat message %d stored (from user: %t)", m.ID, m.FromUser)

	var exclude []string
	if req.SenderID != "" {
		exclude = append(exclude, req.SenderID)
	}
	s.pub.Broadcast(ctx, model.NewChatEvent(*m), exclude...)

	return m, nil
}

// List returns the newest messages in conversation order.
func (s *Service) List(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = conventions.ChatListLimit
	}

	msgs, err := s.repo.ListChatMessages(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list chat messages: %w", err)
	}

	return msgs, nil
}

// MarkRead marks the conversation as read up to lastID.
func (s *Service) MarkRead(ctx context.Context, lastID int64) (int, error) {
	if lastID <= 0 {
		return 0, fmt.Errorf("last id must be positive: %w", model.ErrNotValid)
	}

	marked, err := s.repo.MarkChatRead(ctx, lastID)
	if err != nil {
		return 0, fmt.Errorf("could not mark chat read: %w", err)
	}

	return marked, nil
}

// UnreadCount returns the number of unread messages of the external actor.
func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	count, err := s.repo.CountUnreadChat(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not count unread chat: %w", err)
	}

	return count, nil
}
