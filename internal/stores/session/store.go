package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when no session matches the id and owner
var ErrSessionNotFound = errors.New("session not found")

// Store defines the durable session/message operations used by the pipeline.
// All writes are single-row appends or targeted recency updates, except
// AppendMessages which writes one turn atomically.
type Store interface {
	// CreateSession creates a new session owned by ownerID
	CreateSession(ctx context.Context, ownerID string, metadata Metadata) (*Session, error)

	// GetOwnedSession returns the session only if it exists and belongs to ownerID
	GetOwnedSession(ctx context.Context, sessionID uuid.UUID, ownerID string) (*Session, error)

	// TouchSession moves the recency marker forward. It never moves it backwards.
	TouchSession(ctx context.Context, sessionID uuid.UUID, at time.Time) error

	// AppendMessages writes the messages in slice order, all or nothing
	AppendMessages(ctx context.Context, messages ...*Message) error

	// ListRecentMessages returns at most limit of the newest messages of an owned
	// session, oldest first. A limit <= 0 returns every message.
	ListRecentMessages(ctx context.Context, sessionID uuid.UUID, ownerID string, limit int) ([]*Message, error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool
	Close() error
}
