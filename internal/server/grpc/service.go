package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Requests and
// replies are google.protobuf.Struct values keyed like the JSON API.
const ServiceName = "credkeeper.auth.v1.AuthService"

const (
	MethodRegister           = "Register"
	MethodLogin              = "Login"
	MethodRefresh            = "Refresh"
	MethodLogout             = "Logout"
	MethodVerifyAccount      = "VerifyAccount"
	MethodResendVerification = "ResendVerification"
	MethodWhoAmI             = "WhoAmI"
)

// FullMethod returns "/<ServiceName>/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AuthServer is implemented by GRPCServer.
type AuthServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResendVerification(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WhoAmI(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(AuthServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodRegister, AuthServer.Register),
		unaryMethod(MethodLogin, AuthServer.Login),
		unaryMethod(MethodRefresh, AuthServer.Refresh),
		unaryMethod(MethodLogout, AuthServer.Logout),
		unaryMethod(MethodVerifyAccount, AuthServer.VerifyAccount),
		unaryMethod(MethodResendVerification, AuthServer.ResendVerification),
		unaryMethod(MethodWhoAmI, AuthServer.WhoAmI),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "credkeeper/auth/v1/auth.proto",
}
