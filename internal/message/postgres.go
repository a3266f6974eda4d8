package message

import (
	"context"
	"database/sql"
)

const messageColumns = "id, sender_id, recipient_id, body, kind, seen, created_at"

// PostgresStore is the production Store. The schema lives in db.AutoMigrate.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Append inserts one row. created_at comes from clock_timestamp() so rows
// are stamped in the order they reach the database.
func (s *PostgresStore) Append(ctx context.Context, in NewMessage) (Message, error) {
	in, err := in.normalize()
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:        newID(),
		Sender:    in.Sender,
		Recipient: in.Recipient,
		Body:      in.Body,
		Kind:      in.Kind,
	}
	query := `
		INSERT INTO messages (id, sender_id, recipient_id, body, kind)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seen, created_at
	`
	err = s.db.QueryRowContext(ctx, query, msg.ID, msg.Sender, msg.Recipient, msg.Body, string(msg.Kind)).
		Scan(&msg.Seen, &msg.CreatedAt)
	if err != nil {
		return Message{}, storeErr("append", err)
	}
	return msg, nil
}

func (s *PostgresStore) FindUnseenFor(ctx context.Context, userID string) ([]Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE recipient_id = $1 AND seen = FALSE
		ORDER BY created_at ASC, id ASC
	`
	msgs, err := s.query(ctx, query, userID)
	if err != nil {
		return nil, storeErr("find unseen", err)
	}
	return msgs, nil
}

func (s *PostgresStore) FindConversation(ctx context.Context, a, b string) ([]Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at ASC, id ASC
	`
	msgs, err := s.query(ctx, query, a, b)
	if err != nil {
		return nil, storeErr("find conversation", err)
	}
	return msgs, nil
}

func (s *PostgresStore) MarkSeen(ctx context.Context, senderID, recipientID string) (int64, error) {
	query := `
		UPDATE messages SET seen = TRUE
		WHERE sender_id = $1 AND recipient_id = $2 AND seen = FALSE
	`
	res, err := s.db.ExecContext(ctx, query, senderID, recipientID)
	if err != nil {
		return 0, storeErr("mark seen", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("mark seen", err)
	}
	return n, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var (
			msg  Message
			kind string
		)
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Recipient, &msg.Body, &kind, &msg.Seen, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Kind = Kind(kind)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
