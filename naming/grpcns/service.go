// Package grpcns exposes a naming.NameLayer over gRPC, so nodes can share a
// single name store.
//
// Like grpccas, the wire types are protobuf well-known types (a Struct for
// publish requests, string wrappers elsewhere), which keeps the package free
// of a protoc/codegen toolchain.
package grpcns

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "filu_x.naming.v1.NameLayer"

// Publish request struct fields.
const (
	fieldName = "name"
	fieldCID  = "cid"
)

// NameLayerServer is the server API for the name-layer gRPC service.
type NameLayerServer interface {
	Publish(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Resolve(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

// UnimplementedNameLayerServer can be embedded for forward compatibility.
type UnimplementedNameLayerServer struct{}

func (UnimplementedNameLayerServer) Publish(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Publish not implemented")
}
func (UnimplementedNameLayerServer) Resolve(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Resolve not implemented")
}

// RegisterNameLayerServer registers the service on a gRPC server.
func RegisterNameLayerServer(s grpc.ServiceRegistrar, srv NameLayerServer) {
	s.RegisterService(&NameLayer_ServiceDesc, srv)
}

// NameLayerClient is the client API for the name-layer gRPC service.
type NameLayerClient interface {
	Publish(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Resolve(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
}

type nameLayerClient struct{ cc grpc.ClientConnInterface }

func NewNameLayerClient(cc grpc.ClientConnInterface) NameLayerClient {
	return &nameLayerClient{cc: cc}
}

func (c *nameLayerClient) Publish(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Publish", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *nameLayerClient) Resolve(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Resolve", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _NameLayer_Publish_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NameLayerServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Publish"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NameLayerServer).Publish(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _NameLayer_Resolve_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NameLayerServer).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Resolve"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NameLayerServer).Resolve(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// NameLayer_ServiceDesc is the grpc.ServiceDesc for the service.
var NameLayer_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*NameLayerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: _NameLayer_Publish_Handler},
		{MethodName: "Resolve", Handler: _NameLayer_Resolve_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "namelayer.proto",
}
