package grpcns

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/naming"
	"github.com/mikael1979/filu-x/storage"
)

// Server adapts any naming.NameLayer into the gRPC service.
type Server struct {
	UnimplementedNameLayerServer

	Names naming.NameLayer
}

func (s *Server) Publish(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	name := req.GetFields()[fieldName].GetStringValue()
	raw := req.GetFields()[fieldCID].GetStringValue()
	if name == "" || raw == "" {
		return nil, status.Error(codes.InvalidArgument, "publish requires name and cid")
	}
	id, err := cid.Decode(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid CID")
	}
	if err := s.Names.Publish(ctx, name, id); err != nil {
		return nil, mapErr(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Resolve(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	id, err := s.Names.Resolve(ctx, req.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.String(id.String()), nil
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case fxerr.IsKind(err, fxerr.KindNameNotBound):
		return status.Error(codes.NotFound, err.Error())
	case fxerr.IsKind(err, fxerr.KindMalformed), errors.Is(err, storage.ErrInvalidCID):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
