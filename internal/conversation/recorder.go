package conversation

import (
	"context"

	"github.com/ethanbaker/voicechat/internal/stores/session"
	"github.com/ethanbaker/voicechat/pkg/apperr"
	"github.com/google/uuid"
)

// TurnRecorder persists completed turns
type TurnRecorder struct {
	store session.Store
}

// NewTurnRecorder creates a recorder over store
func NewTurnRecorder(store session.Store) *TurnRecorder {
	return &TurnRecorder{store: store}
}

// Record appends the user message and then the assistant message of one turn.
// Both are written or neither is.
func (r *TurnRecorder) Record(ctx context.Context, sessionID uuid.UUID, userText, assistantText string) error {
	err := r.store.AppendMessages(ctx,
		session.NewMessage(sessionID, session.RoleUser, userText),
		session.NewMessage(sessionID, session.RoleAssistant, assistantText),
	)
	if err != nil {
		return apperr.Storage("failed to save the conversation turn", err)
	}

	return nil
}
