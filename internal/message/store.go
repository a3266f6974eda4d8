//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package message

import "context"

// Store is the durable message log.
type Store interface {
	// Append persists in and returns it with ID, Seen and CreatedAt assigned.
	Append(ctx context.Context, in NewMessage) (Message, error)
	// FindUnseenFor returns messages addressed to userID that are not seen yet,
	// oldest first.
	FindUnseenFor(ctx context.Context, userID string) ([]Message, error)
	// FindConversation returns both directions between a and b, oldest first.
	// The result does not depend on argument order.
	FindConversation(ctx context.Context, a, b string) ([]Message, error)
	// MarkSeen flips every unseen sender→recipient message to seen and returns
	// how many rows changed. The reverse direction is left alone.
	MarkSeen(ctx context.Context, senderID, recipientID string) (int64, error)
	Close() error
}
