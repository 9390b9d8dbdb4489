package collatzv1

import (
	"context"

	"google.golang.org/grpc"
)

const inboxService = "collatz.v1.InboxService"

// InboxServiceServer drives conversations and the active timeline.
type InboxServiceServer interface {
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	StartChat(context.Context, *StartChatRequest) (*StartChatResponse, error)
	OpenConversation(context.Context, *OpenConversationRequest) (*GetTimelineResponse, error)
	CloseConversation(context.Context, *Empty) (*Empty, error)
	GetTimeline(context.Context, *GetTimelineRequest) (*GetTimelineResponse, error)
	SetDraft(context.Context, *SetDraftRequest) (*Empty, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	SendImage(context.Context, *SendImageRequest) (*SendMessageResponse, error)
	RetryMessage(context.Context, *RetryMessageRequest) (*Empty, error)
	DiscardMessage(context.Context, *DiscardMessageRequest) (*Empty, error)
	DeleteConversation(context.Context, *DeleteConversationRequest) (*Empty, error)
	SearchUsers(context.Context, *SearchUsersRequest) (*SearchUsersResponse, error)
	MarkInterest(context.Context, *MarkInterestRequest) (*MarkInterestResponse, error)
	SearchMessages(context.Context, *SearchMessagesRequest) (*SearchMessagesResponse, error)
	WatchTimeline(*WatchTimelineRequest, ServerStream[TimelineEvent]) error
}

var InboxServiceDesc = grpc.ServiceDesc{
	ServiceName: inboxService,
	HandlerType: (*InboxServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(inboxService, "ListConversations", InboxServiceServer.ListConversations),
		unary(inboxService, "StartChat", InboxServiceServer.StartChat),
		unary(inboxService, "OpenConversation", InboxServiceServer.OpenConversation),
		unary(inboxService, "CloseConversation", InboxServiceServer.CloseConversation),
		unary(inboxService, "GetTimeline", InboxServiceServer.GetTimeline),
		unary(inboxService, "SetDraft", InboxServiceServer.SetDraft),
		unary(inboxService, "SendMessage", InboxServiceServer.SendMessage),
		unary(inboxService, "SendImage", InboxServiceServer.SendImage),
		unary(inboxService, "RetryMessage", InboxServiceServer.RetryMessage),
		unary(inboxService, "DiscardMessage", InboxServiceServer.DiscardMessage),
		unary(inboxService, "DeleteConversation", InboxServiceServer.DeleteConversation),
		unary(inboxService, "SearchUsers", InboxServiceServer.SearchUsers),
		unary(inboxService, "MarkInterest", InboxServiceServer.MarkInterest),
		unary(inboxService, "SearchMessages", InboxServiceServer.SearchMessages),
	},
	Streams: []grpc.StreamDesc{
		serverStreaming("WatchTimeline", InboxServiceServer.WatchTimeline),
	},
}

func RegisterInboxServiceServer(s grpc.ServiceRegistrar, srv InboxServiceServer) {
	s.RegisterService(&InboxServiceDesc, srv)
}

// InboxServiceClient is the client API for InboxService.
type InboxServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewInboxServiceClient(cc grpc.ClientConnInterface) *InboxServiceClient {
	return &InboxServiceClient{cc: cc}
}

func (c *InboxServiceClient) ListConversations(ctx context.Context, in *ListConversationsRequest, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsResponse](ctx, c.cc, "/"+inboxService+"/ListConversations", in, opts)
}

func (c *InboxServiceClient) StartChat(ctx context.Context, in *StartChatRequest, opts ...grpc.CallOption) (*StartChatResponse, error) {
	return invoke[StartChatResponse](ctx, c.cc, "/"+inboxService+"/StartChat", in, opts)
}

func (c *InboxServiceClient) OpenConversation(ctx context.Context, in *OpenConversationRequest, opts ...grpc.CallOption) (*GetTimelineResponse, error) {
	return invoke[GetTimelineResponse](ctx, c.cc, "/"+inboxService+"/OpenConversation", in, opts)
}

func (c *InboxServiceClient) CloseConversation(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "/"+inboxService+"/CloseConversation", in, opts)
}

func (c *InboxServiceClient) GetTimeline(ctx context.Context, in *GetTimelineRequest, opts ...grpc.CallOption) (*GetTimelineResponse, error) {
	return invoke[GetTimelineResponse](ctx, c.cc, "/"+inboxService+"/GetTimeline", in, opts)
}

func (c *InboxServiceClient) SetDraft(ctx context.Context, in *SetDraftRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "/"+inboxService+"/SetDraft", in, opts)
}

func (c *InboxServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return invoke[SendMessageResponse](ctx, c.cc, "/"+inboxService+"/SendMessage", in, opts)
}

func (c *InboxServiceClient) SendImage(ctx context.Context, in *SendImageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return invoke[SendMessageResponse](ctx, c.cc, "/"+inboxService+"/SendImage", in, opts)
}

func (c *InboxServiceClient) RetryMessage(ctx context.Context, in *RetryMessageRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "/"+inboxService+"/RetryMessage", in, opts)
}

func (c *InboxServiceClient) DiscardMessage(ctx context.Context, in *DiscardMessageRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "/"+inboxService+"/DiscardMessage", in, opts)
}

func (c *InboxServiceClient) DeleteConversation(ctx context.Context, in *DeleteConversationRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "/"+inboxService+"/DeleteConversation", in, opts)
}

func (c *InboxServiceClient) SearchUsers(ctx context.Context, in *SearchUsersRequest, opts ...grpc.CallOption) (*SearchUsersResponse, error) {
	return invoke[SearchUsersResponse](ctx, c.cc, "/"+inboxService+"/SearchUsers", in, opts)
}

func (c *InboxServiceClient) MarkInterest(ctx context.Context, in *MarkInterestRequest, opts ...grpc.CallOption) (*MarkInterestResponse, error) {
	return invoke[MarkInterestResponse](ctx, c.cc, "/"+inboxService+"/MarkInterest", in, opts)
}

func (c *InboxServiceClient) SearchMessages(ctx context.Context, in *SearchMessagesRequest, opts ...grpc.CallOption) (*SearchMessagesResponse, error) {
	return invoke[SearchMessagesResponse](ctx, c.cc, "/"+inboxService+"/SearchMessages", in, opts)
}

func (c *InboxServiceClient) WatchTimeline(ctx context.Context, in *WatchTimelineRequest, opts ...grpc.CallOption) (ClientStream[TimelineEvent], error) {
	return openStream[TimelineEvent](ctx, c.cc, &InboxServiceDesc.Streams[0], "/"+inboxService+"/WatchTimeline", in, opts)
}
