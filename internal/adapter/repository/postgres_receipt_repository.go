package repository

import (
	"context"
	"database/sql"
	"time"

	"otomart/internal/domain/repository"
)

type postgresReadReceiptRepository struct {
	db *sql.DB
}

func NewPostgresReadReceiptRepository(db *Database) repository.ReadReceiptRepository {
	return &postgresReadReceiptRepository{db: db.Conn}
}

func (r *postgresReadReceiptRepository) MarkRead(ctx context.Context, conversationID, userID, uptoMessageID int64, at time.Time) ([]int64, error) {
	var marked []int64

	err := withRetry(ctx, func() error {
		marked = marked[:0]

		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `
            UPDATE read_receipts
            SET read_at = $4
            WHERE conversation_id = $1 AND user_id = $2 AND read_at IS NULL
              AND ($3 = 0 OR message_id <= $3)
            RETURNING message_id`,
			conversationID, userID, uptoMessageID, at)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			marked = append(marked, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(marked) > 0 {
			// Advance the convenience projection in the same transaction;
			// the guard keeps it monotonic under concurrent readers.
			_, err = tx.ExecContext(ctx, `
                UPDATE messages SET status = 'read', updated_at = $2
                WHERE id = ANY($1) AND status <> 'read'`,
				marked, at)
			if err != nil {
				return err
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return marked, nil
}

func (r *postgresReadReceiptRepository) UnreadCount(ctx context.Context, userID, conversationID int64) (int64, error) {
	var count int64
	err := withRetry(ctx, func() error {
		return r.db.QueryRowContext(ctx, `
            SELECT count(*) FROM read_receipts
            WHERE user_id = $1 AND conversation_id = $2 AND read_at IS NULL`,
			userID, conversationID,
		).Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *postgresReadReceiptRepository) UnreadCounts(ctx context.Context, userID int64, conversationIDs []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return counts, nil
	}

	err := withRetry(ctx, func() error {
		rows, err := r.db.QueryContext(ctx, `
            SELECT conversation_id, count(*) FROM read_receipts
            WHERE user_id = $1 AND conversation_id = ANY($2) AND read_at IS NULL
            GROUP BY conversation_id`,
			userID, conversationIDs)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var conversationID, count int64
			if err := rows.Scan(&conversationID, &count); err != nil {
				return err
			}
			counts[conversationID] = count
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *postgresReadReceiptRepository) UnreadTotal(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := withRetry(ctx, func() error {
		return r.db.QueryRowContext(ctx, `
            SELECT count(*)
            FROM read_receipts r
            JOIN conversations c ON c.id = r.conversation_id AND c.status = 'active'
            JOIN participants p ON p.conversation_id = r.conversation_id
                AND p.user_id = r.user_id AND p.is_active
            WHERE r.user_id = $1 AND r.read_at IS NULL`,
			userID,
		).Scan(&total)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
