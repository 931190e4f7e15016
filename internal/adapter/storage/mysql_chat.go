package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/cropchain/internal/core/domain"
)

func (m *MySQLAdapter) FindConversation(ctx context.Context, participantA, participantB int64) (*domain.Conversation, error) {
	var c domain.Conversation
	err := m.db.QueryRowContext(ctx, `
		SELECT id, participant_a, participant_b, created_at
		FROM conversations WHERE participant_a = ? AND participant_b = ?`,
		participantA, participantB,
	).Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return &c, nil
}

// InsertConversation relies on the unique (participant_a, participant_b) key
// to reject a second row for the same pair.
func (m *MySQLAdapter) InsertConversation(ctx context.Context, participantA, participantB int64) (domain.Conversation, error) {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO conversations (participant_a, participant_b, created_at)
		VALUES (?, ?, NOW(6))`,
		participantA, participantB,
	)
	if isDuplicateEntry(err) {
		return domain.Conversation{}, domain.ErrConversationExists
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.Conversation{}, err
	}
	conv, err := m.GetConversation(ctx, id)
	if err != nil {
		return domain.Conversation{}, err
	}
	if conv == nil {
		return domain.Conversation{}, domain.ErrConversationNotFound
	}
	return *conv, nil
}

func (m *MySQLAdapter) GetConversation(ctx context.Context, conversationID int64) (*domain.Conversation, error) {
	var c domain.Conversation
	err := m.db.QueryRowContext(ctx, `
		SELECT id, participant_a, participant_b, created_at
		FROM conversations WHERE id = ?`, conversationID,
	).Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return &c, nil
}

func (m *MySQLAdapter) AppendMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	var attachment sql.NullString
	if msg.Attachment != "" {
		attachment = sql.NullString{String: msg.Attachment, Valid: true}
	}

	result, err := m.db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, body, attachment, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ConversationID, msg.SenderID, msg.Body, attachment, msg.CreatedAt,
	)
	if err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	msg.ID, err = result.LastInsertId()
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// RecentMessages reads the newest rows and returns them oldest first.
func (m *MySQLAdapter) RecentMessages(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, body, attachment, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var (
			msg        domain.Message
			attachment sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &attachment, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Attachment = attachment.String
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
