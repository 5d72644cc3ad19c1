// Package conversation holds the session-facing steps of a voice turn:
// resolving the caller's session, loading its recent context and recording
// the finished turn.
package conversation

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ethanbaker/voicechat/internal/stores/session"
	"github.com/ethanbaker/voicechat/pkg/apperr"
	"github.com/google/uuid"
)

// Resolution is the outcome of resolving a turn's session
type Resolution struct {
	SessionID uuid.UUID
	Created   bool
}

// Resolver finds the caller's session or creates a new one
type Resolver struct {
	store session.Store
	now   func() time.Time
}

// NewResolver creates a resolver over store
func NewResolver(store session.Store) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// Resolve returns the requested session when it exists and is owned by
// ownerID, after bumping its recency marker. A missing, malformed, unknown or
// foreign session id yields a brand-new session instead of an error, so stale
// client-side references never break a turn.
func (r *Resolver) Resolve(ctx context.Context, ownerID, requested string) (Resolution, error) {
	if requested != "" {
		id, err := uuid.Parse(requested)
		if err != nil {
			log.Printf("[SESSION]: Ignoring malformed session id %q for owner %s", requested, ownerID)
		} else {
			_, err := r.store.GetOwnedSession(ctx, id, ownerID)
			switch {
			case err == nil:
				if err := r.store.TouchSession(ctx, id, r.now()); err != nil {
					return Resolution{}, apperr.Storage("failed to update session", err)
				}
				return Resolution{SessionID: id}, nil

			case errors.Is(err, session.ErrSessionNotFound):
				log.Printf("[SESSION]: Session %s not found for owner %s, starting a new one", id, ownerID)

			default:
				return Resolution{}, apperr.Storage("failed to look up session", err)
			}
		}
	}

	s, err := r.Create(ctx, ownerID, nil)
	if err != nil {
		return Resolution{}, err
	}

	return Resolution{SessionID: s.ID, Created: true}, nil
}

// Create starts a new session owned by ownerID
func (r *Resolver) Create(ctx context.Context, ownerID string, metadata session.Metadata) (*session.Session, error) {
	s, err := r.store.CreateSession(ctx, ownerID, metadata)
	if err != nil {
		return nil, apperr.Storage("failed to create session", err)
	}

	log.Printf("[SESSION]: Created session %s for owner %s", s.ID, ownerID)
	return s, nil
}
