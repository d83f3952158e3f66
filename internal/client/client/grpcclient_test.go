package client

import (
	"context"
	"errors"
	"net"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	gs "github.com/dmitrijs2005/credkeeper/internal/server/grpc"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type mailbox struct {
	mu     sync.Mutex
	bodies []string
}

func (m *mailbox) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies = append(m.bodies, body)
	return nil
}

var tokenInLink = regexp.MustCompile(`verify\?token=([0-9a-f]+)`)

func (m *mailbox) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.bodies)
	match := tokenInLink.FindStringSubmatch(m.bodies[len(m.bodies)-1])
	require.Len(t, match, 2)
	return match[1]
}

type harness struct {
	client *GRPCClient
	clock  *timex.FixedClock
	mail   *mailbox
}

// newHarness runs a real server over an in-memory listener.
func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := timex.NewFixedClock(time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC))
	issuer, err := auth.NewIssuer([]byte("client-secret"), 15*time.Minute)
	require.NoError(t, err)
	hasher, err := cryptox.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	mail := &mailbox{}
	cfg := &config.Config{
		RefreshTokenValidityDuration:      7 * 24 * time.Hour,
		VerificationTokenValidityDuration: 24 * time.Hour,
	}
	svc := services.NewAuthService(nil, repomanager.NewInMemoryRepositoryManager(clock),
		issuer, hasher, mail, clock, logging.NewNopLogger(), cfg)

	srv, err := gs.NewGRPCServer("bufnet", logging.NewNopLogger(), svc, "https://app.example.com")
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	c, err := NewGRPCClient("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
		cancel()
		<-done
	})
	return &harness{client: c, clock: clock, mail: mail}
}

func (h *harness) verifiedLogin(t *testing.T) Tokens {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.client.Register(ctx, "a@b.com", "pw12345678"))
	require.NoError(t, h.client.VerifyAccount(ctx, h.mail.lastToken(t)))
	tokens, err := h.client.Login(ctx, "a@b.com", "pw12345678", "test-device")
	require.NoError(t, err)
	return tokens
}

func TestClient_ErrorMapping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.client.Register(ctx, "a@b.com", "pw12345678"))
	require.ErrorIs(t, h.client.Register(ctx, "a@b.com", "pw12345678"), common.ErrDuplicateEmail)

	_, err := h.client.Login(ctx, "a@b.com", "pw12345678", "")
	require.ErrorIs(t, err, common.ErrAccountNotVerified)

	_, err = h.client.Login(ctx, "a@b.com", "wrong-password", "")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)

	require.ErrorIs(t, h.client.VerifyAccount(ctx, "deadbeef"), common.ErrInvalidOrExpiredToken)
	require.ErrorIs(t, h.client.Register(ctx, "bad", "pw12345678"), ErrInvalidArgument)
}

func TestClient_LoginWhoAmILogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tokens := h.verifiedLogin(t)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, time.Date(2025, 4, 1, 12, 15, 0, 0, time.UTC), tokens.ExpiresAt)

	id, err := h.client.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", id.Subject)
	assert.Equal(t, []string{common.DefaultRoleName}, id.Roles)

	require.NoError(t, h.client.Logout(ctx))
	assert.Equal(t, Tokens{}, h.client.Tokens())
	require.ErrorIs(t, h.client.Logout(ctx), ErrNoSession)
}

func TestClient_RefreshesExpiredAccessToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.verifiedLogin(t)

	h.clock.Advance(20 * time.Minute)

	id, err := h.client.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", id.Subject)

	now := h.client.Tokens()
	assert.NotEqual(t, first.AccessToken, now.AccessToken)
	assert.Equal(t, first.RefreshToken, now.RefreshToken)
}

func TestClient_RevokedRefreshTokenSurfacesExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tokens := h.verifiedLogin(t)
	require.NoError(t, h.client.Logout(ctx))
	h.client.SetTokens(tokens)

	h.clock.Advance(20 * time.Minute)

	_, err := h.client.WhoAmI(ctx)
	require.ErrorIs(t, err, common.ErrTokenExpired)

	_, err = h.client.Refresh(ctx)
	require.ErrorIs(t, err, common.ErrTokenRevoked)
}

func TestClient_RefreshWithoutSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{status.Error(codes.Unavailable, "down"), ErrUnavailable},
		{status.Error(codes.DeadlineExceeded, "slow"), ErrUnavailable},
		{status.Error(codes.Unauthenticated, "token revoked"), common.ErrTokenRevoked},
		{status.Error(codes.Unauthenticated, "missing token"), ErrUnauthorized},
		{status.Error(codes.PermissionDenied, "account not verified"), common.ErrAccountNotVerified},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, mapError(tt.in), tt.want)
	}

	plain := errors.New("plain")
	assert.Equal(t, plain, mapError(plain))
	assert.NoError(t, mapError(nil))
}
