package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"otomart/internal/domain/entity"
	"otomart/internal/domain/repository"
	apperrors "otomart/pkg/errors"
)

type postgresConversationRepository struct {
	db *sql.DB
}

func NewPostgresConversationRepository(db *Database) repository.ConversationRepository {
	return &postgresConversationRepository{db: db.Conn}
}

const conversationColumns = `id, name, type, status, creator_id, pair_key,
    last_message, last_message_at, created_at, updated_at`

func scanConversation(row interface{ Scan(...interface{}) error }) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := row.Scan(&conv.ID, &conv.Name, &conv.Type, &conv.Status, &conv.CreatorID,
		&conv.PairKey, &conv.LastMessage, &conv.LastMessageAt, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *postgresConversationRepository) CreatePrivate(ctx context.Context, conv *entity.Conversation, participants []*entity.Participant) error {
	return withRetry(ctx, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		err = tx.QueryRowContext(ctx, `
            INSERT INTO conversations (name, type, status, creator_id, pair_key)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id, last_message_at, created_at, updated_at`,
			conv.Name, conv.Type, conv.Status, conv.CreatorID, conv.PairKey,
		).Scan(&conv.ID, &conv.LastMessageAt, &conv.CreatedAt, &conv.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.New("CONFLICT", "Conversation already exists for this pair", 409, err)
			}
			return err
		}

		for _, p := range participants {
			p.ConversationID = conv.ID
			err = tx.QueryRowContext(ctx, `
                INSERT INTO participants (conversation_id, user_id, role, is_active)
                VALUES ($1, $2, $3, TRUE)
                RETURNING id, joined_at`,
				p.ConversationID, p.UserID, p.Role,
			).Scan(&p.ID, &p.JoinedAt)
			if err != nil {
				return err
			}
			p.IsActive = true
		}

		return tx.Commit()
	})
}

func (r *postgresConversationRepository) GetByID(ctx context.Context, id int64) (*entity.Conversation, error) {
	var conv *entity.Conversation
	err := withRetry(ctx, func() error {
		row := r.db.QueryRowContext(ctx,
			`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
		var scanErr error
		conv, scanErr = scanConversation(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("Conversation", err)
		}
		return nil, err
	}
	return conv, nil
}

func (r *postgresConversationRepository) GetPrivateByPairKey(ctx context.Context, pairKey string) (*entity.Conversation, error) {
	var conv *entity.Conversation
	err := withRetry(ctx, func() error {
		row := r.db.QueryRowContext(ctx, `
            SELECT `+conversationColumns+` FROM conversations
            WHERE type = 'private' AND pair_key = $1 AND status <> 'deleted'`, pairKey)
		var scanErr error
		conv, scanErr = scanConversation(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("Conversation", err)
		}
		return nil, err
	}
	return conv, nil
}

func (r *postgresConversationRepository) ListByUserID(ctx context.Context, userID int64, status string, limit, offset int) ([]*entity.Conversation, int64, error) {
	var conversations []*entity.Conversation
	var total int64

	err := withRetry(ctx, func() error {
		conversations = conversations[:0]
		total = 0

		rows, err := r.db.QueryContext(ctx, `
            SELECT `+conversationColumns+`, count(*) OVER() AS total
            FROM conversations c
            JOIN participants p ON p.conversation_id = c.id
                AND p.user_id = $1 AND p.is_active
            WHERE ($2 = '' AND c.status <> 'deleted') OR c.status = $2
            ORDER BY c.last_message_at DESC
            LIMIT $3 OFFSET $4`,
			userID, status, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var conv entity.Conversation
			if err := rows.Scan(&conv.ID, &conv.Name, &conv.Type, &conv.Status,
				&conv.CreatorID, &conv.PairKey, &conv.LastMessage, &conv.LastMessageAt,
				&conv.CreatedAt, &conv.UpdatedAt, &total); err != nil {
				return err
			}
			conversations = append(conversations, &conv)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return conversations, total, nil
}

func (r *postgresConversationRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return withRetry(ctx, func() error {
		result, err := r.db.ExecContext(ctx, `
            UPDATE conversations SET status = $2, updated_at = now() WHERE id = $1`,
			id, status)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperrors.NotFound("Conversation", nil)
		}
		return nil
	})
}

func (r *postgresConversationRepository) UpdateLastMessage(ctx context.Context, id int64, preview string, at time.Time) error {
	return withRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
            UPDATE conversations
            SET last_message = $2, last_message_at = $3, updated_at = now()
            WHERE id = $1`,
			id, preview, at)
		return err
	})
}

func (r *postgresConversationRepository) ListParticipants(ctx context.Context, conversationID int64) ([]*entity.Participant, error) {
	var participants []*entity.Participant

	err := withRetry(ctx, func() error {
		participants = participants[:0]

		rows, err := r.db.QueryContext(ctx, `
            SELECT id, conversation_id, user_id, role, is_active, joined_at, left_at
            FROM participants
            WHERE conversation_id = $1
            ORDER BY joined_at`, conversationID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p entity.Participant
			if err := rows.Scan(&p.ID, &p.ConversationID, &p.UserID, &p.Role,
				&p.IsActive, &p.JoinedAt, &p.LeftAt); err != nil {
				return err
			}
			participants = append(participants, &p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *postgresConversationRepository) GetActiveParticipant(ctx context.Context, conversationID, userID int64) (*entity.Participant, error) {
	var p entity.Participant
	err := withRetry(ctx, func() error {
		return r.db.QueryRowContext(ctx, `
            SELECT id, conversation_id, user_id, role, is_active, joined_at, left_at
            FROM participants
            WHERE conversation_id = $1 AND user_id = $2 AND is_active`,
			conversationID, userID,
		).Scan(&p.ID, &p.ConversationID, &p.UserID, &p.Role, &p.IsActive, &p.JoinedAt, &p.LeftAt)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("Participant", err)
		}
		return nil, err
	}
	return &p, nil
}
