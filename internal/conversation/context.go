package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/ethanbaker/voicechat/internal/stores/session"
	"github.com/ethanbaker/voicechat/pkg/apperr"
	"github.com/google/uuid"
)

const (
	// DefaultContextLimit is used when no limit is supplied
	DefaultContextLimit = 20

	// MaxContextLimit caps caller-supplied limits
	MaxContextLimit = 100
)

// Entry is one prior message as seen by the generator
type Entry struct {
	Role      session.Role
	Content   string
	CreatedAt time.Time
}

// ContextLoader reads the recent history of a session
type ContextLoader struct {
	store        session.Store
	defaultLimit int
}

// NewContextLoader creates a loader returning defaultLimit entries when no limit is given
func NewContextLoader(store session.Store, defaultLimit int) *ContextLoader {
	if defaultLimit <= 0 {
		defaultLimit = DefaultContextLimit
	}
	return &ContextLoader{store: store, defaultLimit: min(defaultLimit, MaxContextLimit)}
}

// Limit resolves a caller-supplied limit against the default and the cap
func (l *ContextLoader) Limit(requested int) int {
	if requested <= 0 {
		return l.defaultLimit
	}
	return min(requested, MaxContextLimit)
}

// Messages returns at most limit of the newest stored messages of an owned
// session, oldest first. An unknown or foreign session is NotFound.
func (l *ContextLoader) Messages(ctx context.Context, sessionID uuid.UUID, ownerID string, limit int) ([]*session.Message, error) {
	messages, err := l.store.ListRecentMessages(ctx, sessionID, ownerID, l.Limit(limit))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, apperr.NotFound("session not found")
		}
		return nil, apperr.Storage("failed to load conversation context", err)
	}
	return messages, nil
}

// Load returns the role/content history used to seed generation. An empty
// session yields an empty list.
func (l *ContextLoader) Load(ctx context.Context, sessionID uuid.UUID, ownerID string, limit int) ([]Entry, error) {
	messages, err := l.Messages(ctx, sessionID, ownerID, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, Entry{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}

	return entries, nil
}
