package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pisoprint/internal/paper"
)

func TestMemorySessions_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessions(0)

	_, err := s.Get(ctx, "doc")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	want := Session{BaseName: "doc", TotalPages: 4, OriginalSize: paper.Legal, CreatedAt: time.Now()}
	require.NoError(t, s.Save(ctx, want))
	got, err := s.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Delete(ctx, "doc"))
	_, err = s.Get(ctx, "doc")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, s.Ping(ctx))
}

func TestMemorySessions_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemorySessions(time.Hour)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, Session{BaseName: "doc", TotalPages: 1}))
	now = now.Add(59 * time.Minute)
	_, err := s.Get(ctx, "doc")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = s.Get(ctx, "doc")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
