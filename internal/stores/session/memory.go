package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps sessions in process memory (for development and tests)
type InMemoryStore struct {
	sessions map[uuid.UUID]*Session
	messages map[uuid.UUID][]*Message // sessionID -> messages
	nextID   uint
	clock    stampClock
	mu       sync.RWMutex
}

// NewInMemoryStore creates a new in-memory session store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[uuid.UUID]*Session),
		messages: make(map[uuid.UUID][]*Message),
	}
}

// CreateSession creates a new session in memory
func (s *InMemoryStore) CreateSession(ctx context.Context, ownerID string, metadata Metadata) (*Session, error) {
	if metadata == nil {
		metadata = Metadata{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	session := &Session{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		CreatedAt:      now,
		LastActivityAt: now,
		Metadata:       metadata,
	}

	s.sessions[session.ID] = session
	s.messages[session.ID] = []*Message{}

	copied := *session
	return &copied, nil
}

// GetOwnedSession retrieves a session by ID if it belongs to the owner
func (s *InMemoryStore) GetOwnedSession(ctx context.Context, sessionID uuid.UUID, ownerID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists || session.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}

	copied := *session
	return &copied, nil
}

// TouchSession bumps the recency marker if the new value is later
func (s *InMemoryStore) TouchSession(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, exists := s.sessions[sessionID]; exists && at.After(session.LastActivityAt) {
		session.LastActivityAt = at.UTC()
	}

	return nil
}

// AppendMessages saves a batch of messages to memory, all or nothing
func (s *InMemoryStore) AppendMessages(ctx context.Context, messages ...*Message) error {
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before writing anything
	for _, msg := range messages {
		if msg == nil {
			return fmt.Errorf("message cannot be nil")
		}
		if _, exists := s.sessions[msg.SessionID]; !exists {
			return fmt.Errorf("failed to save message: %w", ErrSessionNotFound)
		}
	}

	s.clock.stamp(messages)

	for _, msg := range messages {
		s.nextID++
		msg.ID = s.nextID

		copied := *msg
		s.messages[msg.SessionID] = append(s.messages[msg.SessionID], &copied)
	}

	return nil
}

// ListRecentMessages returns the newest messages of an owned session, oldest first
func (s *InMemoryStore) ListRecentMessages(ctx context.Context, sessionID uuid.UUID, ownerID string, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists || session.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}

	all := s.messages[sessionID]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}

	// Return copies to avoid race conditions
	result := make([]*Message, 0, len(all)-start)
	for _, msg := range all[start:] {
		copied := *msg
		result = append(result, &copied)
	}

	sortMessages(result)
	return result, nil
}

// Ping always succeeds for the in-memory store
func (s *InMemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (s *InMemoryStore) Close() error {
	return nil
}
