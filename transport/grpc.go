package transport

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// frameMsg is the message exchanged over the GRPC adapter's bidirectional
// stream: the same (kind, payload) shape as the Memory and WebSocket
// adapters, so all three satisfy Channel identically from the runtime's
// point of view. It is carried with a small custom gRPC codec (gobCodec
// below) rather than generated protobuf stubs, matching the teacher's own
// practice of treating payload encoding as the transport adapter's concern
// (spec §6), not the core's.
type frameMsg struct {
	Kind    uint32
	Payload []byte
}

const gobCodecName = "choreo-gob"

type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return gobCodecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// channelStreamDesc describes the single bidirectional-streaming method
// the GRPC adapter needs: Stream(stream frameMsg) returns (stream
// frameMsg) on service choreo.transport.Channel. It is built by hand in the shape protoc-gen-go-grpc would
// generate, since the adapter's wire message is gob-encoded rather than
// protobuf-generated.
var channelStreamDesc = grpc.StreamDesc{
	StreamName:    "Channel",
	ServerStreams: true,
	ClientStreams: true,
}

const channelServiceName = "choreo.transport.Channel"
const channelMethodName = "/" + channelServiceName + "/Stream"

// GRPCChannel adapts one side of a gRPC bidirectional stream to the
// Channel contract.
type GRPCChannel struct {
	stream grpc.Stream
	send   func(*frameMsg) error
	recv   func(*frameMsg) error
}

// DialGRPCChannel opens a client-side Channel half against a listening
// GRPC adapter server, following the same dial-then-open-stream pattern
// the teacher uses in Coordinator.openGrpcClient.
func DialGRPCChannel(ctx context.Context, cc *grpc.ClientConn) (*GRPCChannel, error) {
	cs, err := cc.NewStream(ctx, &channelStreamDesc, channelMethodName, grpc.CallContentSubtype(gobCodecName))
	if err != nil {
		return nil, fmt.Errorf("transport: dial grpc channel: %w", err)
	}
	return &GRPCChannel{
		stream: cs,
		send:   func(m *frameMsg) error { return cs.SendMsg(m) },
		recv:   func(m *frameMsg) error { return cs.RecvMsg(m) },
	}, nil
}

// NewGRPCServerChannel adapts the server side of a Channel RPC handler's
// stream. The service built by ChannelServiceDesc calls this for each
// incoming stream.
func NewGRPCServerChannel(ss grpc.ServerStream) *GRPCChannel {
	return &GRPCChannel{
		stream: ss,
		send:   func(m *frameMsg) error { return ss.SendMsg(m) },
		recv:   func(m *frameMsg) error { return ss.RecvMsg(m) },
	}
}

func (g *GRPCChannel) Send(kind FrameKind, payload []byte) error {
	err := g.send(&frameMsg{Kind: uint32(kind), Payload: payload})
	if err == nil {
		return nil
	}
	if err == io.EOF || status.Code(err) == codes.Canceled || status.Code(err) == codes.Unavailable {
		return ErrClosed
	}
	return fmt.Errorf("transport: grpc send: %w", err)
}

func (g *GRPCChannel) Recv() (FrameKind, []byte, error) {
	var m frameMsg
	if err := g.recv(&m); err != nil {
		if err == io.EOF || status.Code(err) == codes.Canceled || status.Code(err) == codes.Unavailable {
			return 0, nil, ErrClosed
		}
		return 0, nil, fmt.Errorf("transport: grpc recv: %w", err)
	}
	return FrameKind(m.Kind), m.Payload, nil
}

func (g *GRPCChannel) Close() {
	if cs, ok := g.stream.(grpc.ClientStream); ok {
		_ = cs.CloseSend()
	}
	// Server-side streams close when the handler returns; nothing to do
	// here beyond letting in-flight Recv calls observe io.EOF.
}

// ChannelServiceDesc is the grpc.ServiceDesc a server registers to accept
// incoming Channel streams, invoking handler with a server-side
// GRPCChannel for each one.
func ChannelServiceDesc(handler func(*GRPCChannel) error) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: channelServiceName,
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{
			{
				StreamName:    "Stream",
				ServerStreams: true,
				ClientStreams: true,
				Handler: func(srv any, stream grpc.ServerStream) error {
					return handler(NewGRPCServerChannel(stream))
				},
			},
		},
	}
}
