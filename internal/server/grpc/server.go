package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// AuthService is the part of services.AuthService exposed over gRPC.
type AuthService interface {
	Register(ctx context.Context, email, password, appBaseURL string) (*services.AuthResponse, error)
	Login(ctx context.Context, email, password, deviceInfo string) (*services.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyAccount(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email, appBaseURL string) error
	Authenticate(ctx context.Context, accessToken string) (*auth.Principal, error)
}

type GRPCServer struct {
	address    string
	auth       AuthService
	appBaseURL string
	logger     logging.Logger
	health     *health.Server
}

// NewGRPCServer builds the server. appBaseURL prefixes the activation
// links mailed by Register and ResendVerification.
func NewGRPCServer(a string, l logging.Logger, svc AuthService, appBaseURL string) (*GRPCServer, error) {
	return &GRPCServer{
		address:    a,
		logger:     l.With("module", "grpc_server"),
		auth:       svc,
		appBaseURL: appBaseURL,
		health:     health.NewServer(),
	}, nil
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	srv.RegisterService(&authServiceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
