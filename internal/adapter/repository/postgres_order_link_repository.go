package repository

import (
	"context"
	"database/sql"
	"errors"

	"otomart/internal/domain/entity"
	"otomart/internal/domain/repository"
	apperrors "otomart/pkg/errors"
)

type postgresOrderLinkRepository struct {
	db *sql.DB
}

func NewPostgresOrderLinkRepository(db *Database) repository.OrderLinkRepository {
	return &postgresOrderLinkRepository{db: db.Conn}
}

func (r *postgresOrderLinkRepository) GetByOrderID(ctx context.Context, orderID int64) (*entity.OrderConversationLink, error) {
	var link entity.OrderConversationLink
	err := withRetry(ctx, func() error {
		return r.db.QueryRowContext(ctx, `
            SELECT id, order_id, conversation_id, status, created_at
            FROM order_conversation_links WHERE order_id = $1`, orderID,
		).Scan(&link.ID, &link.OrderID, &link.ConversationID, &link.Status, &link.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("Order link", err)
		}
		return nil, err
	}
	return &link, nil
}

func (r *postgresOrderLinkRepository) Create(ctx context.Context, link *entity.OrderConversationLink) (*entity.OrderConversationLink, bool, error) {
	var created bool
	var result *entity.OrderConversationLink

	err := withRetry(ctx, func() error {
		created = false
		err := r.db.QueryRowContext(ctx, `
            INSERT INTO order_conversation_links (order_id, conversation_id, status)
            VALUES ($1, $2, $3)
            ON CONFLICT DO NOTHING
            RETURNING id, created_at`,
			link.OrderID, link.ConversationID, link.Status,
		).Scan(&link.ID, &link.CreatedAt)
		if err == nil {
			created = true
			result = link
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		// Lost the race or the order is already linked: hand back the
		// existing row instead of erroring.
		var existing entity.OrderConversationLink
		err = r.db.QueryRowContext(ctx, `
            SELECT id, order_id, conversation_id, status, created_at
            FROM order_conversation_links WHERE order_id = $1`, link.OrderID,
		).Scan(&existing.ID, &existing.OrderID, &existing.ConversationID,
			&existing.Status, &existing.CreatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// conversation side conflicted: it is bound to another order
				return apperrors.New("CONFLICT", "Conversation is already linked to another order", 409, nil)
			}
			return err
		}
		result = &existing
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}
