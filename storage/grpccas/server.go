package grpccas

import (
	"context"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mikael1979/filu-x/cidutil"
	"github.com/mikael1979/filu-x/storage"
)

// Server exposes a storage.CAS over the content-store gRPC service.
// The CID contract is enforced on the server side as well: stored and served
// bytes must hash to the CID the client sees.
type Server struct {
	UnimplementedContentStoreServer
	CAS storage.CAS
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	_ = ctx
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing backing store")
	}
	b := in.GetValue()
	want, err := cidutil.DocumentCID(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	id, err := s.CAS.Put(b)
	if err != nil {
		return nil, mapErr(err)
	}
	if id != want {
		return nil, status.Error(codes.DataLoss, storage.ErrCIDMismatch.Error())
	}
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing backing store")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	b, err := s.CAS.Get(id)
	if err != nil {
		return nil, mapErr(err)
	}
	got, err := cidutil.DocumentCID(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	if got != id {
		return nil, status.Error(codes.DataLoss, storage.ErrCIDMismatch.Error())
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	_ = ctx
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing backing store")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	return wrapperspb.Bool(s.CAS.Has(id)), nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case storage.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case err == storage.ErrInvalidCID:
		return status.Error(codes.InvalidArgument, err.Error())
	case err == storage.ErrCIDMismatch:
		return status.Error(codes.DataLoss, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
