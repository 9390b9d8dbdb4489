package collatzv1

import (
	"context"

	"google.golang.org/grpc"
)

const sessionService = "collatz.v1.SessionService"

// SessionServiceServer reports and changes the daemon's auth session.
type SessionServiceServer interface {
	GetSessionStatus(context.Context, *GetSessionStatusRequest) (*GetSessionStatusResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)
	WatchSessionStatus(*WatchSessionStatusRequest, ServerStream[StatusEvent]) error
}

var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: sessionService,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(sessionService, "GetSessionStatus", SessionServiceServer.GetSessionStatus),
		unary(sessionService, "Login", SessionServiceServer.Login),
		unary(sessionService, "Logout", SessionServiceServer.Logout),
		unary(sessionService, "ListSessions", SessionServiceServer.ListSessions),
	},
	Streams: []grpc.StreamDesc{
		serverStreaming("WatchSessionStatus", SessionServiceServer.WatchSessionStatus),
	},
}

func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

// SessionServiceClient is the client API for SessionService.
type SessionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionServiceClient(cc grpc.ClientConnInterface) *SessionServiceClient {
	return &SessionServiceClient{cc: cc}
}

func (c *SessionServiceClient) GetSessionStatus(ctx context.Context, in *GetSessionStatusRequest, opts ...grpc.CallOption) (*GetSessionStatusResponse, error) {
	return invoke[GetSessionStatusResponse](ctx, c.cc, "/"+sessionService+"/GetSessionStatus", in, opts)
}

func (c *SessionServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, "/"+sessionService+"/Login", in, opts)
}

func (c *SessionServiceClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c.cc, "/"+sessionService+"/Logout", in, opts)
}

func (c *SessionServiceClient) ListSessions(ctx context.Context, in *ListSessionsRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error) {
	return invoke[ListSessionsResponse](ctx, c.cc, "/"+sessionService+"/ListSessions", in, opts)
}

func (c *SessionServiceClient) WatchSessionStatus(ctx context.Context, in *WatchSessionStatusRequest, opts ...grpc.CallOption) (ClientStream[StatusEvent], error) {
	return openStream[StatusEvent](ctx, c.cc, &SessionServiceDesc.Streams[0], "/"+sessionService+"/WatchSessionStatus", in, opts)
}
