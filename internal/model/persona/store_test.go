package persona_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/trailblazer/backend/internal/model/persona"
)

func TestSeedStoreListsPersonasInOrder(t *testing.T) {
	store := persona.NewSeedStore()

	got := store.List()
	require.Len(t, got, 5)
	assert.Equal(t, persona.Summary{Key: "marie_curie", Display: "Marie Curie"}, got[0])
	assert.Equal(t, "rosa_parks", got[4].Key)
	assert.Equal(t, "marie_curie", store.DefaultKey())
}

func TestSeedStoreGet(t *testing.T) {
	store := persona.NewSeedStore()

	p, err := store.Get("ada_lovelace")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.Display)
	assert.Contains(t, p.SystemPrompt, "Analytical Engine")

	_, err = store.Get("nonexistent")
	assert.True(t, errors.Is(err, persona.ErrUnknownPersona))
}

func TestListReturnsCopy(t *testing.T) {
	store := persona.NewSeedStore()

	list := store.List()
	list[0].Display = "changed"

	p, err := store.Get("marie_curie")
	require.NoError(t, err)
	assert.Equal(t, "Marie Curie", p.Display)
}

func TestNewMemoryStoreRejectsMissingDefault(t *testing.T) {
	_, err := persona.NewMemoryStore([]persona.Persona{{Key: "a", SystemPrompt: "x"}}, "b")
	assert.ErrorIs(t, err, persona.ErrUnknownPersona)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
		wantDef string
	}{
		{
			name:    "default falls back to first",
			doc:     "personas:\n  - key: a\n    system: hi\n  - key: b\n    system: yo\n",
			wantDef: "a",
		},
		{
			name:    "explicit default",
			doc:     "default: b\npersonas:\n  - key: a\n    system: hi\n  - key: b\n    system: yo\n",
			wantDef: "b",
		},
		{name: "empty", doc: "personas: []\n", wantErr: true},
		{name: "duplicate", doc: "personas:\n  - key: a\n    system: hi\n  - key: a\n    system: yo\n", wantErr: true},
		{name: "missing prompt", doc: "personas:\n  - key: a\n", wantErr: true},
		{name: "unknown default", doc: "default: z\npersonas:\n  - key: a\n    system: hi\n", wantErr: true},
		{name: "malformed", doc: "personas: [", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items, def, err := persona.Parse([]byte(tc.doc))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantDef, def)
			for _, p := range items {
				assert.NotEmpty(t, p.Display, "display defaults to key")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	doc := "personas:\n  - key: grace_hopper\n    display: Grace Hopper\n    system: You are Grace Hopper.\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	items, def, err := persona.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "grace_hopper", def)
	assert.Equal(t, "You are Grace Hopper.", items[0].SystemPrompt)

	_, _, err = persona.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
