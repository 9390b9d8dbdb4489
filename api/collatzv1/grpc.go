package collatzv1

import (
	"context"

	"google.golang.org/grpc"
)

// ServerStream is the server side of a server-streaming call.
type ServerStream[T any] interface {
	Send(*T) error
	Context() context.Context
}

type serverStream[T any] struct {
	grpc.ServerStream
}

func (s *serverStream[T]) Send(m *T) error { return s.ServerStream.SendMsg(m) }

// ClientStream is the client side of a server-streaming call.
type ClientStream[T any] interface {
	Recv() (*T, error)
	grpc.ClientStream
}

type clientStream[T any] struct {
	grpc.ClientStream
}

func (c *clientStream[T]) Recv() (*T, error) {
	m := new(T)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func unary[S, Req, Resp any](service, name string, fn func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + service + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(srv.(S), ctx, req.(*Req))
			})
		},
	}
}

func serverStreaming[S, Req, Resp any](name string, fn func(S, *Req, ServerStream[Resp]) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    name,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(Req)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return fn(srv.(S), in, &serverStream[Resp]{stream})
		},
	}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{CallOptions()}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func openStream[Resp any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, in any, opts []grpc.CallOption) (ClientStream[Resp], error) {
	opts = append([]grpc.CallOption{CallOptions()}, opts...)
	st, err := cc.NewStream(ctx, desc, method, opts...)
	if err != nil {
		return nil, err
	}
	x := &clientStream[Resp]{st}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
