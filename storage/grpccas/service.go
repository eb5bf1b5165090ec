// Package grpccas exposes a storage.CAS over gRPC, so a Filu-X node can use
// a remote content store through the same interface as a local one.
//
// The service uses protobuf well-known wrapper types on the wire, which keeps
// the package free of a protoc/codegen toolchain.
package grpccas

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "filu_x.storage.v1.ContentStore"

// ContentStoreServer is the server API for the content-store gRPC service.
type ContentStoreServer interface {
	Put(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Has(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

// UnimplementedContentStoreServer can be embedded for forward compatibility.
type UnimplementedContentStoreServer struct{}

func (UnimplementedContentStoreServer) Put(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Put not implemented")
}
func (UnimplementedContentStoreServer) Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Get not implemented")
}
func (UnimplementedContentStoreServer) Has(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Has not implemented")
}

// RegisterContentStoreServer registers the service on a gRPC server.
func RegisterContentStoreServer(s grpc.ServiceRegistrar, srv ContentStoreServer) {
	s.RegisterService(&ContentStore_ServiceDesc, srv)
}

// ContentStoreClient is the client API for the content-store gRPC service.
type ContentStoreClient interface {
	Put(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Has(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
}

type contentStoreClient struct{ cc grpc.ClientConnInterface }

func NewContentStoreClient(cc grpc.ClientConnInterface) ContentStoreClient {
	return &contentStoreClient{cc: cc}
}

func (c *contentStoreClient) Put(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Put", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *contentStoreClient) Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Get", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *contentStoreClient) Has(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Has", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _ContentStore_Put_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContentStoreServer).Put(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Put"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ContentStoreServer).Put(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _ContentStore_Get_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContentStoreServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Get"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ContentStoreServer).Get(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _ContentStore_Has_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContentStoreServer).Has(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Has"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ContentStoreServer).Has(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ContentStore_ServiceDesc is the grpc.ServiceDesc for the service.
var ContentStore_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ContentStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Put", Handler: _ContentStore_Put_Handler},
		{MethodName: "Get", Handler: _ContentStore_Get_Handler},
		{MethodName: "Has", Handler: _ContentStore_Has_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "contentstore.proto",
}
