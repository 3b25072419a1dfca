package repository

import (
	"context"
	"testing"

	domrepo "FinCast/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSArtifactStore(t.TempDir())
	require.NoError(t, err)

	payload := []byte(`{"weights":[0.1,0.2,0.3]}`)
	require.NoError(t, s.Save(ctx, "sequence_BTCUSDT_20260301_120000", payload))
	assert.True(t, s.Exists("sequence_BTCUSDT_20260301_120000"))

	got, err := s.Load(ctx, "sequence_BTCUSDT_20260301_120000")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestArtifactOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSArtifactStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "v1", []byte("old")))
	require.NoError(t, s.Save(ctx, "v1", []byte("new")))

	got, err := s.Load(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestArtifactMissing(t *testing.T) {
	s, err := NewFSArtifactStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, domrepo.ErrArtifactMissing)
	assert.False(t, s.Exists("ghost"))
}
