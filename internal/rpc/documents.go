package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const DocumentsServiceName = "taskmaster.Documents"

const (
	DocumentsCreateMethod    = "/taskmaster.Documents/Create"
	DocumentsSetMethod       = "/taskmaster.Documents/Set"
	DocumentsUpdateMethod    = "/taskmaster.Documents/Update"
	DocumentsDeleteMethod    = "/taskmaster.Documents/Delete"
	DocumentsSearchMethod    = "/taskmaster.Documents/Search"
	DocumentsSubscribeMethod = "/taskmaster.Documents/Subscribe"
)

type DocumentsServer interface {
	Create(context.Context, *CreateRequest) (*CreateResponse, error)
	Set(context.Context, *SetRequest) (*WriteResponse, error)
	Update(context.Context, *UpdateRequest) (*WriteResponse, error)
	Delete(context.Context, *DeleteRequest) (*WriteResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	Subscribe(*SubscribeRequest, grpc.ServerStreamingServer[Snapshot]) error
}

var DocumentsServiceDesc = grpc.ServiceDesc{
	ServiceName: DocumentsServiceName,
	HandlerType: (*DocumentsServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(DocumentsServiceName, "Create", DocumentsServer.Create),
		unaryMethod(DocumentsServiceName, "Set", DocumentsServer.Set),
		unaryMethod(DocumentsServiceName, "Update", DocumentsServer.Update),
		unaryMethod(DocumentsServiceName, "Delete", DocumentsServer.Delete),
		unaryMethod(DocumentsServiceName, "Search", DocumentsServer.Search),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "taskmaster/documents",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DocumentsServer).Subscribe(in, &grpc.GenericServerStream[SubscribeRequest, Snapshot]{ServerStream: stream})
}

func RegisterDocumentsServer(s grpc.ServiceRegistrar, srv DocumentsServer) {
	s.RegisterService(&DocumentsServiceDesc, srv)
}

type DocumentsClient struct {
	cc grpc.ClientConnInterface
}

func NewDocumentsClient(cc grpc.ClientConnInterface) *DocumentsClient {
	return &DocumentsClient{cc: cc}
}

func (c *DocumentsClient) Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*CreateResponse, error) {
	return invoke[CreateResponse](ctx, c.cc, DocumentsCreateMethod, in, opts)
}

func (c *DocumentsClient) Set(ctx context.Context, in *SetRequest, opts ...grpc.CallOption) (*WriteResponse, error) {
	return invoke[WriteResponse](ctx, c.cc, DocumentsSetMethod, in, opts)
}

func (c *DocumentsClient) Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) (*WriteResponse, error) {
	return invoke[WriteResponse](ctx, c.cc, DocumentsUpdateMethod, in, opts)
}

func (c *DocumentsClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*WriteResponse, error) {
	return invoke[WriteResponse](ctx, c.cc, DocumentsDeleteMethod, in, opts)
}

func (c *DocumentsClient) Search(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*SearchResponse, error) {
	return invoke[SearchResponse](ctx, c.cc, DocumentsSearchMethod, in, opts)
}

func (c *DocumentsClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Snapshot], error) {
	stream, err := c.cc.NewStream(ctx, &DocumentsServiceDesc.Streams[0], DocumentsSubscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[SubscribeRequest, Snapshot]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
