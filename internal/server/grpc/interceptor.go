package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// protected lists the methods that need a valid access token.
var protected = map[string]struct{}{
	FullMethod(MethodWhoAmI): {},
}

// accessTokenFromMetadata reads "authorization: Bearer <token>", falling
// back to the raw access_token key.
func accessTokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(common.AuthorizationHeaderName) {
		if strings.HasPrefix(v, common.BearerPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(v, common.BearerPrefix))
		}
	}
	if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
		return values[0]
	}
	return ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if _, ok := protected[info.FullMethod]; ok {

		accessToken := accessTokenFromMetadata(ctx)
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		p, err := s.auth.Authenticate(ctx, accessToken)
		if err != nil {
			return nil, s.toStatus(ctx, err)
		}

		ctx = auth.WithPrincipal(ctx, p)

	}

	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "rpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}
