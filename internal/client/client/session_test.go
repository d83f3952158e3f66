package client

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := OpenSessionStore(context.Background(), "file:"+filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionStore_EmptyLoad(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
}

func TestSessionStore_SaveLoadOverwriteClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	exp := time.Date(2025, 4, 1, 12, 15, 0, 0, time.UTC)

	first := &Session{Email: "a@b.com", Tokens: Tokens{AccessToken: "acc1", RefreshToken: "ref1", ExpiresAt: exp}}
	require.NoError(t, s.Save(ctx, first))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	second := &Session{Email: "a@b.com", Tokens: Tokens{AccessToken: "acc2", RefreshToken: "ref1", ExpiresAt: exp.Add(time.Hour)}}
	require.NoError(t, s.Save(ctx, second))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)
}

func TestSessionStore_ReopenKeepsSession(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	s, err := OpenSessionStore(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, &Session{Email: "a@b.com", Tokens: Tokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Unix(1700000000, 0).UTC()}}))
	require.NoError(t, s.Close())

	s, err = OpenSessionStore(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r", got.RefreshToken)
}
