package sqlite

import (
	"context"
	"fmt"

	"github.com/slok/missionctl/internal/model"
)

// AddChatMessage stores a chat message.
func (r *Repository) AddChatMessage(ctx context.Context, m model.ChatMessage) (*model.ChatMessage, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat message: %w", err)
	}

	ts := timeToMillis(m.Timestamp)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_messages (from_user, message, timestamp, read) VALUES (?, ?, ?, ?)`,
		m.FromUser, m.Message, ts, m.Read,
	)
	if err != nil {
		return nil, fmt.Errorf("could not insert chat message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("could not get chat message id: %w", err)
	}

	m.ID = id
	m.Timestamp = timeFromMillis(ts)
	return &m, nil
}

// ListChatMessages returns the newest limit messages in conversation order.
func (r *Repository) ListChatMessages(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, from_user, message, timestamp, read
		FROM chat_messages
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("could not query chat messages: %w", err)
	}
	defer rows.Close()

	messages := []model.ChatMessage{}
	for rows.Next() {
		var m model.ChatMessage
		var ts int64
		if err := rows.Scan(&m.ID, &m.FromUser, &m.Message, &ts, &m.Read); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		m.Timestamp = timeFromMillis(ts)
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	// Query is newest first, callers read them as a conversation.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkChatRead marks as read every unread message up to lastID.
func (r *Repository) MarkChatRead(ctx context.Context, lastID int64) (int, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE chat_messages SET read = 1 WHERE id <= ? AND read = 0`, lastID)
	if err != nil {
		return 0, fmt.Errorf("could not mark chat messages read: %w", err)
	}

	marked, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get rows affected: %w", err)
	}

	return int(marked), nil
}

// CountUnreadChat counts the unread messages that don't come from the user.
func (r *Repository) CountUnreadChat(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_messages WHERE from_user = 0 AND read = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("could not count unread chat messages: %w", err)
	}

	return count, nil
}
