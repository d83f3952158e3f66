package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.StorageKind = config.StorageMemory
	c.PasswordHasher = cryptox.KindBcrypt
	return c
}

func TestRun_NoCommand(t *testing.T) {
	var out bytes.Buffer
	err := NewApp(testConfig(), strings.NewReader(""), &out).Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, out.String(), "Usage: authctl")
	assert.Contains(t, out.String(), "revoke-sessions")
}

func TestRun_UnknownCommandIsUsageError(t *testing.T) {
	var out bytes.Buffer
	err := NewApp(testConfig(), strings.NewReader(""), &out).Run(context.Background(), []string{"frobnicate"})
	require.ErrorIs(t, err, ErrUsage)
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	err := NewApp(testConfig(), strings.NewReader(""), &out).Run(context.Background(), []string{"help"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "hash-password")
}

func TestRun_SkipsServerFlagsBeforeCommand(t *testing.T) {
	var out bytes.Buffer
	err := NewApp(testConfig(), strings.NewReader(""), &out).Run(context.Background(), []string{"-storage", "memory", "migrate"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "nothing to migrate")
}

func TestHashPassword_FromPipe(t *testing.T) {
	var out bytes.Buffer
	app := NewApp(testConfig(), strings.NewReader("pw12345678\n"), &out)

	require.NoError(t, app.Run(context.Background(), []string{"hash-password"}))

	hash := strings.TrimSpace(out.String())
	h, err := cryptox.NewPasswordHasher(cryptox.KindBcrypt)
	require.NoError(t, err)
	ok, err := h.Verify("pw12345678", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPassword_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	app := NewApp(testConfig(), strings.NewReader(""), &out)
	require.Error(t, app.Run(context.Background(), []string{"hash-password"}))
}

func TestHashPassword_UnknownHasher(t *testing.T) {
	c := testConfig()
	c.PasswordHasher = "md5"
	app := NewApp(c, strings.NewReader("pw\n"), io.Discard)
	require.Error(t, app.Run(context.Background(), []string{"hash-password"}))
}

type fakeRevoker struct {
	gotUser string
	n       int64
	err     error
}

func (f *fakeRevoker) RevokeAllSessions(ctx context.Context, userID string) (int64, error) {
	f.gotUser = userID
	return f.n, f.err
}

func stubRevoker(t *testing.T, r sessionRevoker, openErr error) *bool {
	t.Helper()
	closed := false
	orig := openRevoker
	openRevoker = func(context.Context, *config.Config, io.Writer) (sessionRevoker, func() error, error) {
		if openErr != nil {
			return nil, nil, openErr
		}
		return r, func() error { closed = true; return nil }, nil
	}
	t.Cleanup(func() { openRevoker = orig })
	return &closed
}

func TestRevokeSessions(t *testing.T) {
	r := &fakeRevoker{n: 3}
	closed := stubRevoker(t, r, nil)

	var out bytes.Buffer
	err := NewApp(testConfig(), strings.NewReader(""), &out).
		Run(context.Background(), []string{"revoke-sessions", "-user", "u-1"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", r.gotUser)
	assert.Contains(t, out.String(), "revoked 3 session(s) of user u-1")
	assert.True(t, *closed)
}

func TestRevokeSessions_MissingUser(t *testing.T) {
	stubRevoker(t, &fakeRevoker{}, nil)
	err := NewApp(testConfig(), strings.NewReader(""), io.Discard).
		Run(context.Background(), []string{"revoke-sessions"})
	require.ErrorIs(t, err, ErrUsage)
}

func TestRevokeSessions_Errors(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		stubRevoker(t, nil, errors.New("db down"))
		err := NewApp(testConfig(), strings.NewReader(""), io.Discard).
			Run(context.Background(), []string{"revoke-sessions", "-user", "u-1"})
		require.EqualError(t, err, "db down")
	})

	t.Run("revoke", func(t *testing.T) {
		stubRevoker(t, &fakeRevoker{err: errors.New("boom")}, nil)
		err := NewApp(testConfig(), strings.NewReader(""), io.Discard).
			Run(context.Background(), []string{"revoke-sessions", "-user", "u-1"})
		require.EqualError(t, err, "boom")
	})
}

func TestRevokeSessions_InMemoryService(t *testing.T) {
	var out bytes.Buffer
	err := NewApp(testConfig(), strings.NewReader(""), &out).
		Run(context.Background(), []string{"revoke-sessions", "-user", "nobody"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "revoked 0 session(s)")
}

func TestPrintConfig_MasksSecrets(t *testing.T) {
	c := testConfig()
	c.SecretKey = "super-secret"
	var out bytes.Buffer

	require.NoError(t, NewApp(c, strings.NewReader(""), &out).Run(context.Background(), []string{"config"}))
	assert.NotContains(t, out.String(), "super-secret")
	assert.Contains(t, out.String(), masked)
	assert.Contains(t, out.String(), "15m0s")
}

func TestPrintConfig_ReportsInvalid(t *testing.T) {
	c := testConfig()
	c.StorageKind = "redis"
	err := NewApp(c, strings.NewReader(""), io.Discard).Run(context.Background(), []string{"config"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage kind")
}
