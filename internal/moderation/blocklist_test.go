package moderation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backy/backend/internal/model"
)

func TestBlocklistEmailBeforeIP(t *testing.T) {
	ctx := context.Background()
	bl := NewBlocklist(NewMemBlocklistStore())

	_, err := bl.Block(ctx, "s1", "", "iphash", "ip reason", "mod", "req-1")
	require.NoError(t, err)
	_, err = bl.Block(ctx, "s1", "Spammer@Example.com ", "", "email reason", "mod", "req-2")
	require.NoError(t, err)

	entry, err := bl.IsBlocked(ctx, "s1", "spammer@example.com", "iphash")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, model.IdentityEmail, entry.Kind)
	assert.Equal(t, "email reason", entry.Reason)

	entry, _ = bl.IsBlocked(ctx, "s1", "someone@example.com", "iphash")
	require.NotNil(t, entry)
	assert.Equal(t, model.IdentityIP, entry.Kind)

	entry, _ = bl.IsBlocked(ctx, "s2", "spammer@example.com", "iphash")
	assert.Nil(t, entry, "entries are scoped per site")
}

func TestBlocklistBlockOverwrites(t *testing.T) {
	ctx := context.Background()
	bl := NewBlocklist(NewMemBlocklistStore())

	entries, err := bl.Block(ctx, "s1", "a@example.com", "hash", "first", "mod", "")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = bl.Block(ctx, "s1", "a@example.com", "", "second", "mod", "")
	require.NoError(t, err)

	all, err := bl.List(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	entry, _ := bl.IsBlocked(ctx, "s1", "a@example.com", "")
	assert.Equal(t, "second", entry.Reason)
}

func TestBlocklistNoIdentities(t *testing.T) {
	bl := NewBlocklist(NewMemBlocklistStore())
	entry, err := bl.IsBlocked(context.Background(), "s1", "", "")
	assert.NoError(t, err)
	assert.Nil(t, entry)
}
