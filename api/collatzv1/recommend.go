package collatzv1

import (
	"context"

	"google.golang.org/grpc"
)

const recommendService = "collatz.v1.RecommendService"

type RecommendServiceServer interface {
	GetRecommendations(context.Context, *GetRecommendationsRequest) (*GetRecommendationsResponse, error)
}

var RecommendServiceDesc = grpc.ServiceDesc{
	ServiceName: recommendService,
	HandlerType: (*RecommendServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(recommendService, "GetRecommendations", RecommendServiceServer.GetRecommendations),
	},
}

func RegisterRecommendServiceServer(s grpc.ServiceRegistrar, srv RecommendServiceServer) {
	s.RegisterService(&RecommendServiceDesc, srv)
}

type RecommendServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewRecommendServiceClient(cc grpc.ClientConnInterface) *RecommendServiceClient {
	return &RecommendServiceClient{cc: cc}
}

func (c *RecommendServiceClient) GetRecommendations(ctx context.Context, in *GetRecommendationsRequest, opts ...grpc.CallOption) (*GetRecommendationsResponse, error) {
	return invoke[GetRecommendationsResponse](ctx, c.cc, "/"+recommendService+"/GetRecommendations", in, opts)
}
