package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/store"
)

func TestLookupUser(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = lookupUser(ctx, s.Users(), "15550009999")
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)

	u, err := s.Users().GetByWaID(ctx, "15550009999")
	require.NoError(t, err)
	assert.Nil(t, u, "lookup must not create the user")

	created, _, err := s.Users().GetOrCreate(ctx, "15550009999", "Ana", "")
	require.NoError(t, err)
	got, err := lookupUser(ctx, s.Users(), "15550009999")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}
