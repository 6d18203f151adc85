package interceptors

import (
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
)

// fakeStream is a minimal grpc.ServerStream. RecvMsg hands out in in order
// and returns io.EOF afterwards.
type fakeStream struct {
	grpc.ServerStream
	ctx    context.Context
	header metadata.MD
	in     []proto.Message
	sent   []any
}

func (f *fakeStream) Context() context.Context { return f.ctx }

func (f *fakeStream) SetHeader(md metadata.MD) error {
	f.header = metadata.Join(f.header, md)
	return nil
}

func (f *fakeStream) SendMsg(m any) error {
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeStream) RecvMsg(m any) error {
	if len(f.in) == 0 {
		return io.EOF
	}
	proto.Merge(m.(proto.Message), f.in[0])
	f.in = f.in[1:]
	return nil
}
