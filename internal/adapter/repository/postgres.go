package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	apperrors "otomart/pkg/errors"
)

const retryBackoff = 100 * time.Millisecond

type Database struct {
	Conn *sql.DB
}

func NewDatabase(dsn string) (*Database, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn}, nil
}

func (d *Database) AutoMigrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            username VARCHAR(120) UNIQUE NOT NULL,
            email VARCHAR(190) UNIQUE NOT NULL,
            role VARCHAR(20) NOT NULL DEFAULT 'user',
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE TABLE IF NOT EXISTS vehicles (
            id BIGSERIAL PRIMARY KEY,
            seller_id BIGINT NOT NULL REFERENCES users(id),
            title VARCHAR(255) NOT NULL,
            price NUMERIC(14,2) NOT NULL DEFAULT 0,
            status VARCHAR(20) NOT NULL DEFAULT 'listed',
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE TABLE IF NOT EXISTS orders (
            id BIGSERIAL PRIMARY KEY,
            vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
            buyer_id BIGINT NOT NULL REFERENCES users(id),
            seller_id BIGINT NOT NULL REFERENCES users(id),
            status VARCHAR(20) NOT NULL DEFAULT 'pending',
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE TABLE IF NOT EXISTS conversations (
            id BIGSERIAL PRIMARY KEY,
            name VARCHAR(255) NOT NULL DEFAULT '',
            type VARCHAR(10) NOT NULL CHECK (type IN ('private', 'group')),
            status VARCHAR(10) NOT NULL DEFAULT 'active'
                CHECK (status IN ('active', 'archived', 'deleted')),
            creator_id BIGINT NOT NULL REFERENCES users(id),
            pair_key VARCHAR(50) NOT NULL DEFAULT '',
            last_message TEXT NOT NULL DEFAULT '',
            last_message_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		// One non-deleted private thread per unordered user pair.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_pair_key
            ON conversations (pair_key)
            WHERE type = 'private' AND status <> 'deleted'`,

		`CREATE TABLE IF NOT EXISTS participants (
            id BIGSERIAL PRIMARY KEY,
            conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL REFERENCES users(id),
            role VARCHAR(10) NOT NULL CHECK (role IN ('sender', 'recipient', 'admin')),
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            left_at TIMESTAMPTZ
        )`,

		// At most one active membership per (conversation, user).
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_participants_active
            ON participants (conversation_id, user_id)
            WHERE is_active`,

		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            conversation_id BIGINT NOT NULL REFERENCES conversations(id),
            sender_id BIGINT NOT NULL DEFAULT 0,
            content TEXT NOT NULL,
            message_type VARCHAR(10) NOT NULL DEFAULT 'text'
                CHECK (message_type IN ('text', 'image', 'video', 'file', 'system')),
            file_url TEXT NOT NULL DEFAULT '',
            file_name VARCHAR(255) NOT NULL DEFAULT '',
            status VARCHAR(10) NOT NULL DEFAULT 'sent'
                CHECK (status IN ('sent', 'delivered', 'read')),
            parent_message_id BIGINT REFERENCES messages(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE INDEX IF NOT EXISTS idx_messages_conversation
            ON messages (conversation_id, id DESC)`,

		`CREATE TABLE IF NOT EXISTS read_receipts (
            id BIGSERIAL PRIMARY KEY,
            message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            conversation_id BIGINT NOT NULL REFERENCES conversations(id),
            user_id BIGINT NOT NULL REFERENCES users(id),
            read_at TIMESTAMPTZ,
            UNIQUE (message_id, user_id)
        )`,

		// Unread counts resolve from this partial index, no table scan.
		`CREATE INDEX IF NOT EXISTS idx_read_receipts_unread
            ON read_receipts (conversation_id, user_id)
            WHERE read_at IS NULL`,

		`CREATE TABLE IF NOT EXISTS order_conversation_links (
            id BIGSERIAL PRIMARY KEY,
            order_id BIGINT NOT NULL UNIQUE REFERENCES orders(id),
            conversation_id BIGINT NOT NULL UNIQUE REFERENCES conversations(id),
            status VARCHAR(10) NOT NULL DEFAULT 'active'
                CHECK (status IN ('active', 'archived', 'closed')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
	}

	for _, query := range queries {
		if _, err := d.Conn.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// withRetry runs op, retrying once with a short backoff on transient store
// failures; a second failure surfaces as StorageUnavailable. Deterministic
// errors (no rows, constraint violations, application errors) pass through.
func withRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !retryable(err) {
		return err
	}

	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err = op(); err != nil {
		if !retryable(err) {
			return err
		}
		return apperrors.StorageUnavailable(err)
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled) {
		return false
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// connection failures (class 08), serialization/deadlock rollbacks
		return strings.HasPrefix(pgErr.Code, "08") ||
			pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	// driver-level/network errors
	return true
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
