package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories runs every test against each Store implementation
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()

	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewInMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			store, err := NewSqliteStore(filepath.Join(t.TempDir(), "voicechat.db"))
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })
			return store
		},
	}
}

func TestStore_CreateAndGetOwnedSession(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			created, err := store.CreateSession(ctx, "owner-1", Metadata{"device": "kitchen"})
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, created.ID)
			assert.False(t, created.CreatedAt.IsZero())
			assert.Equal(t, created.CreatedAt, created.LastActivityAt)

			got, err := store.GetOwnedSession(ctx, created.ID, "owner-1")
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, "owner-1", got.OwnerID)
			assert.Equal(t, "kitchen", got.Metadata["device"])

			// Foreign owner and unknown ids are indistinguishable
			_, err = store.GetOwnedSession(ctx, created.ID, "owner-2")
			assert.ErrorIs(t, err, ErrSessionNotFound)

			_, err = store.GetOwnedSession(ctx, uuid.New(), "owner-1")
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestStore_TouchSessionIsMonotonic(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			created, err := store.CreateSession(ctx, "owner", nil)
			require.NoError(t, err)

			later := created.LastActivityAt.Add(time.Minute)
			require.NoError(t, store.TouchSession(ctx, created.ID, later))

			got, err := store.GetOwnedSession(ctx, created.ID, "owner")
			require.NoError(t, err)
			assert.WithinDuration(t, later, got.LastActivityAt, time.Millisecond)

			// Moving backwards is ignored
			require.NoError(t, store.TouchSession(ctx, created.ID, created.LastActivityAt))

			got, err = store.GetOwnedSession(ctx, created.ID, "owner")
			require.NoError(t, err)
			assert.WithinDuration(t, later, got.LastActivityAt, time.Millisecond)
		})
	}
}

func TestStore_MessageOrdering(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			sess, err := store.CreateSession(ctx, "owner", nil)
			require.NoError(t, err)

			// Write A, B, C as separate appends
			for _, content := range []string{"A", "B", "C"} {
				require.NoError(t, store.AppendMessages(ctx, NewMessage(sess.ID, RoleUser, content)))
			}

			messages, err := store.ListRecentMessages(ctx, sess.ID, "owner", 0)
			require.NoError(t, err)
			require.Len(t, messages, 3)
			assert.Equal(t, []string{"A", "B", "C"}, contents(messages))

			for i := 1; i < len(messages); i++ {
				assert.True(t, messages[i].CreatedAt.After(messages[i-1].CreatedAt) || messages[i].CreatedAt.Equal(messages[i-1].CreatedAt))
				assert.Greater(t, messages[i].ID, messages[i-1].ID)
			}
		})
	}
}

func TestStore_ListRecentMessagesLimit(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			sess, err := store.CreateSession(ctx, "owner", nil)
			require.NoError(t, err)

			for i := range 5 {
				require.NoError(t, store.AppendMessages(ctx,
					NewMessage(sess.ID, RoleUser, "q"+string(rune('0'+i))),
					NewMessage(sess.ID, RoleAssistant, "a"+string(rune('0'+i))),
				))
			}

			messages, err := store.ListRecentMessages(ctx, sess.ID, "owner", 3)
			require.NoError(t, err)
			assert.Equal(t, []string{"a3", "q4", "a4"}, contents(messages))

			messages, err = store.ListRecentMessages(ctx, sess.ID, "owner", 100)
			require.NoError(t, err)
			assert.Len(t, messages, 10)
			assert.Equal(t, RoleUser, messages[0].Role)
			assert.Equal(t, RoleAssistant, messages[9].Role)
		})
	}
}

func TestStore_ListRecentMessagesEmptyAndForeign(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			sess, err := store.CreateSession(ctx, "owner", nil)
			require.NoError(t, err)

			messages, err := store.ListRecentMessages(ctx, sess.ID, "owner", 20)
			require.NoError(t, err)
			assert.Empty(t, messages)

			_, err = store.ListRecentMessages(ctx, sess.ID, "intruder", 20)
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestStore_ConcurrentAppendsKeepPairsTogether(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			if name == "sqlite" {
				t.Skip("sqlite serializes writers with file locks")
			}

			ctx := context.Background()
			store := factory(t)

			sess, err := store.CreateSession(ctx, "owner", nil)
			require.NoError(t, err)

			var wg sync.WaitGroup
			for range 10 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, store.AppendMessages(ctx,
						NewMessage(sess.ID, RoleUser, "question"),
						NewMessage(sess.ID, RoleAssistant, "answer"),
					))
				}()
			}
			wg.Wait()

			messages, err := store.ListRecentMessages(ctx, sess.ID, "owner", 0)
			require.NoError(t, err)
			require.Len(t, messages, 20)

			// Each batch is written under one lock, so pairs stay adjacent
			for i := 0; i < len(messages); i += 2 {
				assert.Equal(t, RoleUser, messages[i].Role)
				assert.Equal(t, RoleAssistant, messages[i+1].Role)
			}
		})
	}
}

func TestInMemoryStore_AppendIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	sess, err := store.CreateSession(ctx, "owner", nil)
	require.NoError(t, err)

	err = store.AppendMessages(ctx,
		NewMessage(sess.ID, RoleUser, "hello"),
		NewMessage(uuid.New(), RoleAssistant, "orphan"),
	)
	require.ErrorIs(t, err, ErrSessionNotFound)

	messages, err := store.ListRecentMessages(ctx, sess.ID, "owner", 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestMetadataScan(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    Metadata
		wantErr bool
	}{
		{name: "nil", value: nil, want: Metadata{}},
		{name: "bytes", value: []byte(`{"a":"b"}`), want: Metadata{"a": "b"}},
		{name: "string", value: `{"n":1}`, want: Metadata{"n": float64(1)}},
		{name: "empty", value: "", want: Metadata{}},
		{name: "bad json", value: "{", wantErr: true},
		{name: "bad type", value: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Metadata
			err := m.Scan(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleUser.IsValid())
	assert.True(t, RoleAssistant.IsValid())
	assert.True(t, RoleSystem.IsValid())
	assert.False(t, Role("tool").IsValid())
}

func contents(messages []*Message) []string {
	out := make([]string, 0, len(messages))
	for _, msg := range messages {
		out = append(out, msg.Content)
	}
	return out
}
