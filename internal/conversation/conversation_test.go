package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethanbaker/voicechat/internal/stores/session"
	"github.com/ethanbaker/voicechat/pkg/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenStore fails selected operations on top of an in-memory store
type brokenStore struct {
	*session.InMemoryStore
	failGet    bool
	failAppend bool
}

func (s *brokenStore) GetOwnedSession(ctx context.Context, id uuid.UUID, ownerID string) (*session.Session, error) {
	if s.failGet {
		return nil, errors.New("connection reset")
	}
	return s.InMemoryStore.GetOwnedSession(ctx, id, ownerID)
}

func (s *brokenStore) AppendMessages(ctx context.Context, messages ...*session.Message) error {
	if s.failAppend {
		return errors.New("disk full")
	}
	return s.InMemoryStore.AppendMessages(ctx, messages...)
}

func TestResolver_ExistingSessionIsTouched(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()

	existing, err := store.CreateSession(ctx, "owner", nil)
	require.NoError(t, err)

	r := NewResolver(store)
	later := existing.LastActivityAt.Add(time.Minute)
	r.now = func() time.Time { return later }

	res, err := r.Resolve(ctx, "owner", existing.ID.String())
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.SessionID)
	assert.False(t, res.Created)

	got, err := store.GetOwnedSession(ctx, existing.ID, "owner")
	require.NoError(t, err)
	assert.True(t, got.LastActivityAt.Equal(later.UTC()))
}

func TestResolver_FallsBackToNewSession(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()

	foreign, err := store.CreateSession(ctx, "someone-else", nil)
	require.NoError(t, err)

	for name, requested := range map[string]string{
		"none":      "",
		"malformed": "not-a-uuid",
		"unknown":   uuid.NewString(),
		"foreign":   foreign.ID.String(),
	} {
		t.Run(name, func(t *testing.T) {
			res, err := NewResolver(store).Resolve(ctx, "owner", requested)
			require.NoError(t, err)
			assert.True(t, res.Created)
			assert.NotEqual(t, foreign.ID, res.SessionID)

			created, err := store.GetOwnedSession(ctx, res.SessionID, "owner")
			require.NoError(t, err)
			assert.Equal(t, "owner", created.OwnerID)
		})
	}
}

func TestResolver_StoreFailureIsNotMistakenForNotFound(t *testing.T) {
	store := &brokenStore{InMemoryStore: session.NewInMemoryStore(), failGet: true}

	_, err := NewResolver(store).Resolve(context.Background(), "owner", uuid.NewString())
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
}

func TestContextLoader_LimitResolution(t *testing.T) {
	l := NewContextLoader(session.NewInMemoryStore(), 0)
	assert.Equal(t, DefaultContextLimit, l.Limit(0))
	assert.Equal(t, DefaultContextLimit, l.Limit(-3))
	assert.Equal(t, 5, l.Limit(5))
	assert.Equal(t, MaxContextLimit, l.Limit(1000))
}

func TestContextLoader_NewestBoundedOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	s, err := store.CreateSession(ctx, "owner", nil)
	require.NoError(t, err)

	recorder := NewTurnRecorder(store)
	for i := range 15 {
		require.NoError(t, recorder.Record(ctx, s.ID, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
	}

	entries, err := NewContextLoader(store, 20).Load(ctx, s.ID, "owner", 0)
	require.NoError(t, err)
	require.Len(t, entries, 20)
	assert.Equal(t, "q5", entries[0].Content)
	assert.Equal(t, session.RoleUser, entries[0].Role)
	assert.Equal(t, "a14", entries[19].Content)
	assert.Equal(t, session.RoleAssistant, entries[19].Role)

	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i].CreatedAt.After(entries[i-1].CreatedAt))
	}
}

func TestContextLoader_EmptyAndForeignSessions(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	s, err := store.CreateSession(ctx, "owner", nil)
	require.NoError(t, err)

	l := NewContextLoader(store, 20)

	entries, err := l.Load(ctx, s.ID, "owner", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = l.Load(ctx, s.ID, "intruder", 0)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestTurnRecorder_WritesUserThenAssistant(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	s, err := store.CreateSession(ctx, "owner", nil)
	require.NoError(t, err)

	require.NoError(t, NewTurnRecorder(store).Record(ctx, s.ID, "hello", "hi there"))

	messages, err := store.ListRecentMessages(ctx, s.ID, "owner", 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, session.RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, session.RoleAssistant, messages[1].Role)
	assert.Equal(t, "hi there", messages[1].Content)
}

func TestTurnRecorder_FailureIsStorageError(t *testing.T) {
	ctx := context.Background()
	store := &brokenStore{InMemoryStore: session.NewInMemoryStore(), failAppend: true}
	s, err := store.CreateSession(ctx, "owner", nil)
	require.NoError(t, err)

	err = NewTurnRecorder(store).Record(ctx, s.ID, "hello", "hi")
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))

	messages, err := store.ListRecentMessages(ctx, s.ID, "owner", 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
