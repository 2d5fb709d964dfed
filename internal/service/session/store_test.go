package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/trailblazer/backend/internal/model/chat"
	"github.com/zhouzirui/trailblazer/backend/internal/model/persona"
	"github.com/zhouzirui/trailblazer/backend/internal/service/session"
)

func newStore(t *testing.T) *session.Store {
	t.Helper()
	return session.NewStore(persona.NewSeedStore(), session.Options{})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCreateUsesDefaultPersona(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "marie_curie", sess.PersonaKey)
	assert.Empty(t, sess.History)
	assert.Len(t, sess.ID, 32)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

func TestCreateGeneratesDistinctIDs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		sess, err := store.Create(ctx, "rosa_parks")
		require.NoError(t, err)
		_, dup := seen[sess.ID]
		require.False(t, dup, "duplicate id %s", sess.ID)
		seen[sess.ID] = struct{}{}
	}
	assert.Equal(t, 200, store.Len())
}

func TestCreateUnknownPersona(t *testing.T) {
	store := newStore(t)

	_, err := store.Create(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, persona.ErrUnknownPersona)
	assert.Equal(t, 0, store.Len())
}

func TestUnknownSessionRejected(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	err = store.SetPersona(ctx, "missing", "rosa_parks")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	err = store.AppendTurn(ctx, "missing", chat.RoleUser, "hello")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	_, err = store.Acquire(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestAppendTurnRejectsSystemRole(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "")
	require.NoError(t, err)

	err = store.AppendTurn(ctx, sess.ID, chat.RoleSystem, "be nice")
	assert.ErrorIs(t, err, session.ErrInvalidRole)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.History)
}

func TestAppendTurnKeepsMostRecentWindow(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "")
	require.NoError(t, err)

	var all []string
	for i := 0; i < 40; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		content := fmt.Sprintf("m%02d", i)
		all = append(all, content)
		require.NoError(t, store.AppendTurn(ctx, sess.ID, role, content))

		got, err := store.Get(ctx, sess.ID)
		require.NoError(t, err)
		require.LessOrEqual(t, len(got.History), session.DefaultMaxTurns)

		start := 0
		if len(all) > session.DefaultMaxTurns {
			start = len(all) - session.DefaultMaxTurns
		}
		want := all[start:]
		require.Len(t, got.History, len(want))
		for j, msg := range got.History {
			assert.Equal(t, want[j], msg.Content)
		}
	}
}

func TestOverflowKeepsLastSixPairs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "")
	require.NoError(t, err)

	for turn := 1; turn <= 14; turn++ {
		require.NoError(t, store.AppendTurn(ctx, sess.ID, chat.RoleUser, fmt.Sprintf("user %d", turn)))
		require.NoError(t, store.AppendTurn(ctx, sess.ID, chat.RoleAssistant, fmt.Sprintf("assistant %d", turn)))
	}

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 12)
	assert.Equal(t, "user 9", got.History[0].Content)
	assert.Equal(t, chat.RoleUser, got.History[0].Role)
	assert.Equal(t, "assistant 14", got.History[11].Content)
	assert.Equal(t, chat.RoleAssistant, got.History[11].Role)
}

func TestSetPersonaPreservesHistory(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "marie_curie")
	require.NoError(t, err)
	require.NoError(t, store.AppendTurn(ctx, sess.ID, chat.RoleUser, "Tell me about radium."))
	require.NoError(t, store.AppendTurn(ctx, sess.ID, chat.RoleAssistant, "It glows."))

	before, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)

	require.NoError(t, store.SetPersona(ctx, sess.ID, "rosa_parks"))

	after, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "rosa_parks", after.PersonaKey)
	assert.Equal(t, before.History, after.History)
}

func TestSetPersonaUnknownLeavesSessionUnchanged(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "ada_lovelace")
	require.NoError(t, err)

	err = store.SetPersona(ctx, sess.ID, "nonexistent")
	assert.ErrorIs(t, err, persona.ErrUnknownPersona)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada_lovelace", got.PersonaKey)
}

func TestGetReturnsCopy(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "")
	require.NoError(t, err)
	require.NoError(t, store.AppendTurn(ctx, sess.ID, chat.RoleUser, "hi"))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	got.History[0].Content = "tampered"

	again, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", again.History[0].Content)
}

func TestConcurrentAppendsAcrossSessions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	ids := make([]string, 8)
	for i := range ids {
		sess, err := store.Create(ctx, "")
		require.NoError(t, err)
		ids[i] = sess.ID
	}

	var g errgroup.Group
	for _, id := range ids {
		for w := 0; w < 4; w++ {
			id := id
			g.Go(func() error {
				for i := 0; i < 50; i++ {
					if err := store.AppendTurn(ctx, id, chat.RoleUser, "x"); err != nil {
						return err
					}
				}
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got.History, session.DefaultMaxTurns)
	}
}

func TestAcquireSerializesExchanges(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "")
	require.NoError(t, err)

	release, err := store.Acquire(ctx, sess.ID)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = store.Acquire(waitCtx, sess.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := store.Create(ctx, "")
	require.NoError(t, err)
	releaseOther, err := store.Acquire(ctx, other.ID)
	require.NoError(t, err, "other sessions must not contend")
	releaseOther()

	release()
	release()

	again, err := store.Acquire(ctx, sess.ID)
	require.NoError(t, err)
	again()
}

func TestAcquireAfterDeleteFails(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "")
	require.NoError(t, err)

	release, err := store.Acquire(ctx, sess.ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := store.Acquire(ctx, sess.ID)
		done <- err
	}()

	store.Delete(ctx, sess.ID)
	release()

	assert.ErrorIs(t, <-done, session.ErrSessionNotFound)
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := session.NewStore(persona.NewSeedStore(), session.Options{
		TTL: 10 * time.Minute,
		Now: clock.Now,
	})
	ctx := context.Background()

	idle, err := store.Create(ctx, "")
	require.NoError(t, err)
	clock.Advance(8 * time.Minute)

	active, err := store.Create(ctx, "")
	require.NoError(t, err)
	busy, err := store.Create(ctx, "")
	require.NoError(t, err)
	release, err := store.Acquire(ctx, busy.ID)
	require.NoError(t, err)
	defer release()

	clock.Advance(5 * time.Minute)

	assert.Equal(t, 1, store.Sweep(clock.Now()))

	_, err = store.Get(ctx, idle.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = store.Get(ctx, active.ID)
	assert.NoError(t, err)
	_, err = store.Get(ctx, busy.ID)
	assert.NoError(t, err)
}

func TestExpiredSessionNotFoundBeforeSweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := session.NewStore(persona.NewSeedStore(), session.Options{
		TTL: time.Minute,
		Now: clock.Now,
	})
	ctx := context.Background()

	sess, err := store.Create(ctx, "")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	err = store.AppendTurn(ctx, sess.ID, chat.RoleUser, "still there?")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestSweepDisabledWithoutTTL(t *testing.T) {
	store := newStore(t)
	_, err := store.Create(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 0, store.Sweep(time.Now().Add(24*time.Hour)))
	assert.Equal(t, 1, store.Len())
}
