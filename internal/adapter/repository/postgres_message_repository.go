package repository

import (
	"context"
	"database/sql"
	"errors"

	"otomart/internal/domain/entity"
	"otomart/internal/domain/repository"
	apperrors "otomart/pkg/errors"
)

type postgresMessageRepository struct {
	db *sql.DB
}

func NewPostgresMessageRepository(db *Database) repository.MessageRepository {
	return &postgresMessageRepository{db: db.Conn}
}

const messageColumns = `id, conversation_id, sender_id, content, message_type,
    file_url, file_name, status, parent_message_id, created_at, updated_at`

func (r *postgresMessageRepository) CreateWithReceipts(ctx context.Context, message *entity.Message, recipientIDs []int64) error {
	return withRetry(ctx, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		err = tx.QueryRowContext(ctx, `
            INSERT INTO messages (conversation_id, sender_id, content, message_type,
                file_url, file_name, status, parent_message_id)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            RETURNING id, created_at, updated_at`,
			message.ConversationID, message.SenderID, message.Content, message.Type,
			message.FileURL, message.FileName, message.Status, message.ParentMessageID,
		).Scan(&message.ID, &message.CreatedAt, &message.UpdatedAt)
		if err != nil {
			return err
		}

		for _, userID := range recipientIDs {
			_, err = tx.ExecContext(ctx, `
                INSERT INTO read_receipts (message_id, conversation_id, user_id)
                VALUES ($1, $2, $3)
                ON CONFLICT (message_id, user_id) DO NOTHING`,
				message.ID, message.ConversationID, userID)
			if err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

func (r *postgresMessageRepository) GetByID(ctx context.Context, id int64) (*entity.Message, error) {
	var m entity.Message
	err := withRetry(ctx, func() error {
		return r.db.QueryRowContext(ctx,
			`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id,
		).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type,
			&m.FileURL, &m.FileName, &m.Status, &m.ParentMessageID, &m.CreatedAt, &m.UpdatedAt)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("Message", err)
		}
		return nil, err
	}
	return &m, nil
}

func (r *postgresMessageRepository) ListByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]*entity.Message, int64, error) {
	var messages []*entity.Message
	var total int64

	err := withRetry(ctx, func() error {
		messages = messages[:0]
		total = 0

		rows, err := r.db.QueryContext(ctx, `
            SELECT `+messageColumns+`, count(*) OVER() AS total
            FROM messages
            WHERE conversation_id = $1
            ORDER BY id DESC
            LIMIT $2 OFFSET $3`,
			conversationID, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m entity.Message
			if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content,
				&m.Type, &m.FileURL, &m.FileName, &m.Status, &m.ParentMessageID,
				&m.CreatedAt, &m.UpdatedAt, &total); err != nil {
				return err
			}
			messages = append(messages, &m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (r *postgresMessageRepository) AdvanceStatus(ctx context.Context, messageID int64, status string) (bool, error) {
	// Guarded update: the projection only moves forward, concurrent receipts
	// can never regress it.
	var guard string
	switch status {
	case entity.MessageStatusDelivered:
		guard = `status = 'sent'`
	case entity.MessageStatusRead:
		guard = `status IN ('sent', 'delivered')`
	default:
		return false, apperrors.BadRequest("Invalid message status transition", nil)
	}

	var advanced bool
	err := withRetry(ctx, func() error {
		result, err := r.db.ExecContext(ctx,
			`UPDATE messages SET status = $2, updated_at = now()
             WHERE id = $1 AND `+guard,
			messageID, status)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		advanced = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return advanced, nil
}
