package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "secrets.v1.SecretService"

// Full method names, as seen by interceptors.
const (
	MethodRegisterUser  = "/" + ServiceName + "/RegisterUser"
	MethodLogin         = "/" + ServiceName + "/Login"
	MethodListUsers     = "/" + ServiceName + "/ListUsers"
	MethodCreateSecret  = "/" + ServiceName + "/CreateSecret"
	MethodListSecrets   = "/" + ServiceName + "/ListSecrets"
	MethodGetSecret     = "/" + ServiceName + "/GetSecret"
	MethodUpdateSecret  = "/" + ServiceName + "/UpdateSecret"
	MethodDeleteSecret  = "/" + ServiceName + "/DeleteSecret"
	MethodSearchSecrets = "/" + ServiceName + "/SearchSecrets"
	MethodListAuditLogs = "/" + ServiceName + "/ListAuditLogs"
	MethodGetStatistics = "/" + ServiceName + "/GetStatistics"
)

// SecretServiceServer is the server API of secrets.v1.SecretService.
type SecretServiceServer interface {
	RegisterUser(context.Context, *RegisterUserRequest) (*UserResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	ListUsers(context.Context, *ListUsersRequest) (*ListUsersResponse, error)
	CreateSecret(context.Context, *CreateSecretRequest) (*SecretResponse, error)
	ListSecrets(context.Context, *ListSecretsRequest) (*ListSecretsResponse, error)
	GetSecret(context.Context, *GetSecretRequest) (*SecretResponse, error)
	UpdateSecret(context.Context, *UpdateSecretRequest) (*SecretResponse, error)
	DeleteSecret(context.Context, *DeleteSecretRequest) (*DeleteSecretResponse, error)
	SearchSecrets(context.Context, *SearchSecretsRequest) (*ListSecretsResponse, error)
	ListAuditLogs(context.Context, *ListAuditLogsRequest) (*ListAuditLogsResponse, error)
	GetStatistics(context.Context, *GetStatisticsRequest) (*StatisticsResponse, error)
}

// RegisterSecretServiceServer registers srv on s.
func RegisterSecretServiceServer(s grpc.ServiceRegistrar, srv SecretServiceServer) {
	s.RegisterService(&secretServiceDesc, srv)
}

var secretServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SecretServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("RegisterUser", SecretServiceServer.RegisterUser),
		unary("Login", SecretServiceServer.Login),
		unary("ListUsers", SecretServiceServer.ListUsers),
		unary("CreateSecret", SecretServiceServer.CreateSecret),
		unary("ListSecrets", SecretServiceServer.ListSecrets),
		unary("GetSecret", SecretServiceServer.GetSecret),
		unary("UpdateSecret", SecretServiceServer.UpdateSecret),
		unary("DeleteSecret", SecretServiceServer.DeleteSecret),
		unary("SearchSecrets", SecretServiceServer.SearchSecrets),
		unary("ListAuditLogs", SecretServiceServer.ListAuditLogs),
		unary("GetStatistics", SecretServiceServer.GetStatistics),
	},
	Streams: []grpc.StreamDesc{},
}

// unary adapts a typed method to a grpc.MethodDesc, decoding the request
// with the negotiated codec and running the interceptor chain.
func unary[Req, Resp any](name string, call func(SecretServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SecretServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SecretServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
