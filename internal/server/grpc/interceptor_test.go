package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type stubAuth struct {
	principal *auth.Principal
	authErr   error
	gotToken  string

	resp   *services.AuthResponse
	err    error
	device string
}

func (s *stubAuth) Register(ctx context.Context, email, password, appBaseURL string) (*services.AuthResponse, error) {
	return &services.AuthResponse{}, s.err
}

func (s *stubAuth) Login(ctx context.Context, email, password, deviceInfo string) (*services.AuthResponse, error) {
	s.device = deviceInfo
	return s.resp, s.err
}

func (s *stubAuth) Refresh(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	return s.resp, s.err
}

func (s *stubAuth) Logout(ctx context.Context, refreshToken string) error { return s.err }

func (s *stubAuth) VerifyAccount(ctx context.Context, token string) error { return s.err }

func (s *stubAuth) ResendVerification(ctx context.Context, email, appBaseURL string) error {
	return s.err
}

func (s *stubAuth) Authenticate(ctx context.Context, accessToken string) (*auth.Principal, error) {
	s.gotToken = accessToken
	return s.principal, s.authErr
}

func newTestServer(svc AuthService) *GRPCServer {
	s, _ := NewGRPCServer("", logging.NewNopLogger(), svc, "https://app.example.com")
	return s
}

func TestInterceptor_Unprotected_AllowsWithoutToken(t *testing.T) {
	s := newTestServer(&stubAuth{})

	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodLogin)}
	handlerCalled := false
	h := func(ctx context.Context, req any) (any, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	require.NoError(t, err)
	assert.True(t, handlerCalled)
	assert.Equal(t, "ok", resp)
}

func TestInterceptor_Protected_MissingToken(t *testing.T) {
	s := newTestServer(&stubAuth{})

	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodWhoAmI)}
	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	}

	_, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "missing token", status.Convert(err).Message())
}

func TestInterceptor_Protected_InvalidToken(t *testing.T) {
	svc := &stubAuth{authErr: common.ErrTokenInvalid}
	s := newTestServer(svc)

	md := metadata.New(map[string]string{common.AccessTokenHeaderName: "not-a-valid-jwt"})
	ctx := metadata.NewIncomingContext(context.Background(), md)
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodWhoAmI)}
	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called for invalid token")
		return nil, nil
	}

	_, err := s.accessTokenInterceptor(ctx, nil, info, h)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "not-a-valid-jwt", svc.gotToken)
}

func TestInterceptor_Protected_ValidToken_SetsPrincipal(t *testing.T) {
	want := &auth.Principal{Subject: "a@b.com", Roles: []string{"ROLE_USER"}, ExpiresAt: time.Now().Add(time.Hour)}

	tests := []struct {
		name string
		md   metadata.MD
	}{
		{"bearer header", metadata.Pairs(common.AuthorizationHeaderName, common.BearerPrefix+"tok")},
		{"raw access_token", metadata.Pairs(common.AccessTokenHeaderName, "tok")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubAuth{principal: want}
			s := newTestServer(svc)
			ctx := metadata.NewIncomingContext(context.Background(), tt.md)
			info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodWhoAmI)}

			var got *auth.Principal
			h := func(ctx context.Context, req any) (any, error) {
				got, _ = auth.PrincipalFromContext(ctx)
				return "ok", nil
			}

			resp, err := s.accessTokenInterceptor(ctx, nil, info, h)
			require.NoError(t, err)
			assert.Equal(t, "ok", resp)
			assert.Equal(t, want, got)
			assert.Equal(t, "tok", svc.gotToken)
		})
	}
}
