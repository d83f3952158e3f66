package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func field(in *structpb.Struct, name string) string {
	return in.GetFields()[name].GetStringValue()
}

func message(msg string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"message": structpb.NewStringValue(msg),
	}}
}

func tokenReply(r *services.AuthResponse) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"accessToken":  structpb.NewStringValue(r.AccessToken),
		"refreshToken": structpb.NewStringValue(r.RefreshToken),
		"expiresAt":    structpb.NewStringValue(r.AccessExpiresAt.UTC().Format(time.RFC3339)),
	}}
}

func invalidArgument(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}

// toStatus maps service errors onto gRPC codes. Unknown errors are logged
// and reported as Internal without detail.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrDuplicateEmail):
		return status.Error(codes.AlreadyExists, "email already registered")
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, common.ErrAccountNotVerified):
		return status.Error(codes.PermissionDenied, "account not verified")
	case errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "token expired")
	case errors.Is(err, common.ErrTokenRevoked):
		return status.Error(codes.Unauthenticated, "token revoked")
	case errors.Is(err, common.ErrTokenNotFound), errors.Is(err, common.ErrTokenInvalid):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return status.Error(codes.InvalidArgument, "invalid or expired token")
	default:
		s.logger.Error(ctx, "rpc failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	email, password := field(in, "email"), field(in, "password")
	err := validation.Errors{
		"email":    validation.Validate(email, validation.Required, is.Email),
		"password": validation.Validate(password, validation.Required, validation.Length(8, 128)),
	}.Filter()
	if err != nil {
		return nil, invalidArgument(err)
	}

	if _, err := s.auth.Register(ctx, email, password, s.appBaseURL); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "email", email)
	return message("registered, check your email to verify the account"), nil
}

// Login records the deviceInfo field, or the caller's user-agent when it
// is absent, on the new session.
func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	email, password := field(in, "email"), field(in, "password")
	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	device := field(in, "deviceInfo")
	if device == "" {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ua := md.Get("user-agent"); len(ua) > 0 {
				device = ua[0]
			}
		}
	}

	tokens, err := s.auth.Login(ctx, email, password, device)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return tokenReply(tokens), nil
}

func (s *GRPCServer) Refresh(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	token := field(in, "refreshToken")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "refreshToken is required")
	}

	tokens, err := s.auth.Refresh(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return tokenReply(tokens), nil
}

func (s *GRPCServer) Logout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	token := field(in, "refreshToken")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "refreshToken is required")
	}

	if err := s.auth.Logout(ctx, token); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return message("logged out"), nil
}

func (s *GRPCServer) VerifyAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	token := field(in, "token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "invalid or expired token")
	}

	if err := s.auth.VerifyAccount(ctx, token); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return message("account verified"), nil
}

func (s *GRPCServer) ResendVerification(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	email := field(in, "email")
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return nil, invalidArgument(err)
	}

	if err := s.auth.ResendVerification(ctx, email, s.appBaseURL); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return message("if the account exists and is not verified, a new link was sent"), nil
}

func (s *GRPCServer) WhoAmI(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	roles := make([]any, len(p.Roles))
	for i, r := range p.Roles {
		roles[i] = r
	}
	out, err := structpb.NewStruct(map[string]any{
		"subject":   p.Subject,
		"roles":     roles,
		"expiresAt": p.ExpiresAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}
