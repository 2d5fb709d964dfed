package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/trailblazer/backend/internal/model/persona"
	"github.com/zhouzirui/trailblazer/backend/internal/service/session"
)

func TestNewJanitorRejectsBadSchedule(t *testing.T) {
	store := session.NewStore(persona.NewSeedStore(), session.Options{TTL: time.Minute})

	_, err := session.NewJanitor(store, "every now and then", nil)
	assert.Error(t, err)
}

func TestJanitorRunOnceReportsEvictions(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	store := session.NewStore(persona.NewSeedStore(), session.Options{
		TTL: time.Minute,
		Now: func() time.Time { return past },
	})
	_, err := store.Create(context.Background(), "")
	require.NoError(t, err)

	var evicted int
	janitor, err := session.NewJanitor(store, "", func(n int) { evicted += n })
	require.NoError(t, err)

	janitor.RunOnce()
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 0, store.Len())

	janitor.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	janitor.Stop(ctx)
}
