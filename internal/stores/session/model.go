package session

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Metadata is an opaque key/value map stored as a JSON column
type Metadata map[string]any

// Value implements the driver.Valuer interface for database storage
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database retrieval
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Metadata", value)
	}

	out := Metadata{}
	if len(bytes) > 0 {
		if err := json.Unmarshal(bytes, &out); err != nil {
			return fmt.Errorf("failed to unmarshal session metadata: %w", err)
		}
	}

	*m = out
	return nil
}

// Session represents one ongoing conversation owned by a single user
type Session struct {
	ID             uuid.UUID `json:"id" gorm:"type:char(36);primaryKey;not null"`
	OwnerID        string    `json:"owner_id" gorm:"size:255;not null;index"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at;not null"`
	LastActivityAt time.Time `json:"last_activity_at" gorm:"column:last_activity_at;not null"`
	Metadata       Metadata  `json:"metadata" gorm:"column:metadata;type:text"`
}

// Message is one half of a turn. Messages are append-only.
type Message struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID uuid.UUID `json:"session_id" gorm:"type:char(36);not null;index:idx_messages_session_created,priority:1"`
	Role      Role      `json:"role" gorm:"size:16;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;not null;index:idx_messages_session_created,priority:2"`
}

// NewMessage creates an unsaved message for a session
func NewMessage(sessionID uuid.UUID, role Role, content string) *Message {
	return &Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	}
}

// sortMessages orders messages by creation time, with ID as the tie-breaker
func sortMessages(messages []*Message) {
	for i := 1; i < len(messages); i++ {
		key := messages[i]
		j := i - 1

		for j >= 0 && (messages[j].CreatedAt.After(key.CreatedAt) || (messages[j].CreatedAt.Equal(key.CreatedAt) && messages[j].ID > key.ID)) {
			messages[j+1] = messages[j]
			j--
		}
		messages[j+1] = key
	}
}

// stampClock hands out strictly increasing creation times within a process so
// that time order matches insertion order even when the wall clock stalls
type stampClock struct {
	mu   sync.Mutex
	last time.Time
}

// stamp assigns creation times to messages in slice order
func (c *stampClock) stamp(messages []*Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := time.Now().UTC().Truncate(time.Microsecond)
	for _, msg := range messages {
		if !next.After(c.last) {
			next = c.last.Add(time.Microsecond)
		}
		msg.CreatedAt = next
		c.last = next
	}
}
