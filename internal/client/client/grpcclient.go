package client

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	gs "github.com/dmitrijs2005/credkeeper/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Tokens is the credential pair held by a logged-in client.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Identity is what the server reports for the current access token.
type Identity struct {
	Subject   string
	Roles     []string
	ExpiresAt time.Time
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn

	mu     sync.Mutex
	tokens Tokens
}

// NewGRPCClient connects lazily to endpointURL. Extra options are appended
// after the defaults, so tests can swap the dialer.
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}

	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}
	conn, err := grpc.NewClient(endpointURL, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// Tokens returns a copy of the current credentials.
func (c *GRPCClient) Tokens() Tokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

// SetTokens installs credentials restored from a saved session.
func (c *GRPCClient) SetTokens(t Tokens) {
	c.mu.Lock()
	c.tokens = t
	c.mu.Unlock()
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)

	return metadata.NewOutgoingContext(ctx, md)
}

func isExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	tokens := c.Tokens()
	if tokens.AccessToken == "" || method == gs.FullMethod(gs.MethodRefresh) {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	err := invoker(withAccessToken(ctx, tokens.AccessToken), method, req, reply, cc, opts...)
	if err == nil || !isExpired(err) || tokens.RefreshToken == "" {
		return err
	}

	if _, rerr := c.Refresh(ctx); rerr != nil {
		return err
	}

	// tokens refreshed, retrying with the new access token
	return invoker(withAccessToken(ctx, c.Tokens().AccessToken), method, req, reply, cc, opts...)
}

func (c *GRPCClient) call(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, gs.FullMethod(method), req, out); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func tokensFrom(s *structpb.Struct) Tokens {
	return Tokens{
		AccessToken:  str(s, "accessToken"),
		RefreshToken: str(s, "refreshToken"),
		ExpiresAt:    parseTime(str(s, "expiresAt")),
	}
}

func (c *GRPCClient) Register(ctx context.Context, email, password string) error {
	_, err := c.call(ctx, gs.MethodRegister, map[string]any{"email": email, "password": password})
	return err
}

func (c *GRPCClient) VerifyAccount(ctx context.Context, token string) error {
	_, err := c.call(ctx, gs.MethodVerifyAccount, map[string]any{"token": token})
	return err
}

func (c *GRPCClient) ResendVerification(ctx context.Context, email string) error {
	_, err := c.call(ctx, gs.MethodResendVerification, map[string]any{"email": email})
	return err
}

// Login stores the issued tokens on success.
func (c *GRPCClient) Login(ctx context.Context, email, password, deviceInfo string) (Tokens, error) {
	resp, err := c.call(ctx, gs.MethodLogin, map[string]any{
		"email":      email,
		"password":   password,
		"deviceInfo": deviceInfo,
	})
	if err != nil {
		return Tokens{}, err
	}

	t := tokensFrom(resp)
	c.SetTokens(t)
	return t, nil
}

// Refresh trades the held refresh token for a new access token.
func (c *GRPCClient) Refresh(ctx context.Context) (Tokens, error) {
	current := c.Tokens()
	if current.RefreshToken == "" {
		return Tokens{}, ErrNoSession
	}

	resp, err := c.call(ctx, gs.MethodRefresh, map[string]any{"refreshToken": current.RefreshToken})
	if err != nil {
		return Tokens{}, err
	}

	t := tokensFrom(resp)
	if t.RefreshToken == "" {
		t.RefreshToken = current.RefreshToken
	}
	c.SetTokens(t)
	return t, nil
}

// Logout revokes the refresh token on the server and forgets both tokens.
func (c *GRPCClient) Logout(ctx context.Context) error {
	current := c.Tokens()
	if current.RefreshToken == "" {
		return ErrNoSession
	}

	if _, err := c.call(ctx, gs.MethodLogout, map[string]any{"refreshToken": current.RefreshToken}); err != nil {
		return err
	}
	c.SetTokens(Tokens{})
	return nil
}

func (c *GRPCClient) WhoAmI(ctx context.Context) (*Identity, error) {
	resp, err := c.call(ctx, gs.MethodWhoAmI, map[string]any{})
	if err != nil {
		return nil, err
	}

	id := &Identity{Subject: str(resp, "subject"), ExpiresAt: parseTime(str(resp, "expiresAt"))}
	for _, v := range resp.GetFields()["roles"].GetListValue().GetValues() {
		id.Roles = append(id.Roles, v.GetStringValue())
	}
	return id, nil
}
