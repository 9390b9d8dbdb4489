package collatzv1

import (
	"context"

	"google.golang.org/grpc"
)

const indexService = "collatz.v1.IndexService"

// IndexServiceServer runs maintenance jobs and reports profile state.
type IndexServiceServer interface {
	RunEmbeddings(context.Context, *RunEmbeddingsRequest) (*RunEmbeddingsResponse, error)
	FetchJobs(context.Context, *FetchJobsRequest) (*FetchJobsResponse, error)
	GetProfileStatus(context.Context, *GetProfileStatusRequest) (*GetProfileStatusResponse, error)
	CheckIn(context.Context, *CheckInRequest) (*Empty, error)
}

var IndexServiceDesc = grpc.ServiceDesc{
	ServiceName: indexService,
	HandlerType: (*IndexServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(indexService, "RunEmbeddings", IndexServiceServer.RunEmbeddings),
		unary(indexService, "FetchJobs", IndexServiceServer.FetchJobs),
		unary(indexService, "GetProfileStatus", IndexServiceServer.GetProfileStatus),
		unary(indexService, "CheckIn", IndexServiceServer.CheckIn),
	},
}

func RegisterIndexServiceServer(s grpc.ServiceRegistrar, srv IndexServiceServer) {
	s.RegisterService(&IndexServiceDesc, srv)
}

type IndexServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewIndexServiceClient(cc grpc.ClientConnInterface) *IndexServiceClient {
	return &IndexServiceClient{cc: cc}
}

func (c *IndexServiceClient) RunEmbeddings(ctx context.Context, in *RunEmbeddingsRequest, opts ...grpc.CallOption) (*RunEmbeddingsResponse, error) {
	return invoke[RunEmbeddingsResponse](ctx, c.cc, "/"+indexService+"/RunEmbeddings", in, opts)
}

func (c *IndexServiceClient) FetchJobs(ctx context.Context, in *FetchJobsRequest, opts ...grpc.CallOption) (*FetchJobsResponse, error) {
	return invoke[FetchJobsResponse](ctx, c.cc, "/"+indexService+"/FetchJobs", in, opts)
}

func (c *IndexServiceClient) GetProfileStatus(ctx context.Context, in *GetProfileStatusRequest, opts ...grpc.CallOption) (*GetProfileStatusResponse, error) {
	return invoke[GetProfileStatusResponse](ctx, c.cc, "/"+indexService+"/GetProfileStatus", in, opts)
}

func (c *IndexServiceClient) CheckIn(ctx context.Context, in *CheckInRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "/"+indexService+"/CheckIn", in, opts)
}
