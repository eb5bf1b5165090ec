package grpcns

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/naming"
)

// Client implements naming.NameLayer against a remote name-layer service.
type Client struct {
	cc     *grpc.ClientConn
	client NameLayerClient

	// Timeout applies per RPC when non-zero, in addition to the caller's ctx.
	Timeout time.Duration
}

var _ naming.NameLayer = (*Client)(nil)

func Dial(target string, timeout time.Duration) (*Client, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cc, err := grpc.DialContext(ctx, target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewNameLayerClient(cc), Timeout: timeout}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Publish(ctx context.Context, name string, id cid.Cid) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldName: structpb.NewStringValue(name),
		fieldCID:  structpb.NewStringValue(id.String()),
	}}
	_, err := c.client.Publish(ctx, req)
	return mapRPC(err, name)
}

func (c *Client) Resolve(ctx context.Context, name string) (cid.Cid, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Resolve(ctx, wrapperspb.String(name))
	if err != nil {
		return cid.Undef, mapRPC(err, name)
	}
	id, err := cid.Decode(reply.GetValue())
	if err != nil {
		return cid.Undef, fxerr.Wrap(fxerr.KindInternal, "FX-NAME-302", "corrupt name binding: "+name, err)
	}
	return id, nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}

func mapRPC(err error, name string) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fxerr.New(fxerr.KindNameNotBound, "FX-NAME-101", "name not bound: "+name)
	case codes.InvalidArgument:
		return fxerr.New(fxerr.KindMalformed, "FX-NAME-202", st.Message())
	default:
		return err
	}
}
