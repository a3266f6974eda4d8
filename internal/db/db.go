package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

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
		_ = conn.Close()
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn}, nil
}

// Ping reports whether the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	return d.Conn.PingContext(ctx)
}

// AutoMigrate creates the message log. Users are owned by the identity
// service, so sender_id and recipient_id are plain text columns.
func (d *Database) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
            id CHAR(26) PRIMARY KEY,
            sender_id TEXT NOT NULL,
            recipient_id TEXT NOT NULL,
            body TEXT NOT NULL,
            kind VARCHAR(10) NOT NULL DEFAULT 'text'
                CHECK (kind IN ('text', 'image', 'video', 'gif', 'audio', 'file')),
            seen BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
        )`,

		// Unread bucket: recipient_id = $1 AND seen = FALSE.
		`CREATE INDEX IF NOT EXISTS messages_unseen_idx
            ON messages (recipient_id, created_at) WHERE seen = FALSE`,

		// Conversation replay and mark-seen by direction.
		`CREATE INDEX IF NOT EXISTS messages_pair_idx
            ON messages (sender_id, recipient_id, created_at)`,
	}

	for _, query := range queries {
		_, err := d.Conn.ExecContext(ctx, query)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
