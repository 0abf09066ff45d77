package publish

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/markertrack/internal/monitoring"
	"github.com/banshee-data/markertrack/internal/queue"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// SubscribeMethod is the full gRPC method name of the pose stream.
const SubscribeMethod = "/markertrack.PoseStream/Subscribe"

type poseStreamServer interface {
	subscribe(*emptypb.Empty, grpc.ServerStream) error
}

// PoseStreamDesc describes the pose stream service: a server-streaming
// Subscribe(google.protobuf.Empty) returning google.protobuf.Struct
// records shaped like the JSON payload.
var PoseStreamDesc = grpc.ServiceDesc{
	ServiceName: "markertrack.PoseStream",
	HandlerType: (*poseStreamServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Subscribe",
		Handler:       subscribeHandler,
		ServerStreams: true,
	}},
	Metadata: "markertrack/pose_stream.proto",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(emptypb.Empty)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(poseStreamServer).subscribe(req, stream)
}

// StreamSink fans results out to any number of gRPC subscribers. Each
// subscriber has its own single-slot queue so a slow reader only loses
// its own stale records.
type StreamSink struct {
	listener net.Listener
	server   *grpc.Server

	mu          sync.RWMutex
	subscribers map[uint64]*queue.Latest[*structpb.Struct]
	nextID      atomic.Uint64
	closeOnce   sync.Once
}

// ListenStream starts the gRPC server on addr.
func ListenStream(addr string) (*StreamSink, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s := &StreamSink{
		listener:    lis,
		server:      grpc.NewServer(),
		subscribers: make(map[uint64]*queue.Latest[*structpb.Struct]),
	}
	s.server.RegisterService(&PoseStreamDesc, s)
	go func() {
		if err := s.server.Serve(lis); err != nil {
			monitoring.Logf("[publish] gRPC server stopped: %v", err)
		}
	}()
	monitoring.Logf("[publish] streaming results over gRPC on %s", lis.Addr())
	return s, nil
}

// Addr returns the listening address.
func (s *StreamSink) Addr() net.Addr { return s.listener.Addr() }

// Subscribers returns the number of connected subscribers.
func (s *StreamSink) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

func (s *StreamSink) subscribe(_ *emptypb.Empty, stream grpc.ServerStream) error {
	id := s.nextID.Add(1)
	q := queue.NewLatest[*structpb.Struct]()
	s.mu.Lock()
	s.subscribers[id] = q
	s.mu.Unlock()
	monitoring.Logf("[publish] gRPC subscriber %d connected", id)

	defer func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
		_, dropped := q.Stats()
		monitoring.Logf("[publish] gRPC subscriber %d left (%d stale records dropped)", id, dropped)
	}()

	ctx := stream.Context()
	for {
		msg, err := q.Pop(ctx)
		if err != nil {
			return err
		}
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
	}
}

// Send implements Sink. It never blocks on subscribers.
func (s *StreamSink) Send(_ context.Context, payload []byte) error {
	msg := new(structpb.Struct)
	if err := protojson.Unmarshal(payload, msg); err != nil {
		return fmt.Errorf("failed to convert result for streaming: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.subscribers {
		q.Push(msg)
	}
	return nil
}

// Close stops the server and disconnects subscribers.
func (s *StreamSink) Close() error {
	s.closeOnce.Do(s.server.Stop)
	return nil
}

// Subscription reads records from a pose stream.
type Subscription struct {
	stream grpc.ClientStream
}

// Subscribe opens the pose stream on conn.
func Subscribe(ctx context.Context, conn grpc.ClientConnInterface) (*Subscription, error) {
	stream, err := conn.NewStream(ctx, &PoseStreamDesc.Streams[0], SubscribeMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to open pose stream: %w", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return &Subscription{stream: stream}, nil
}

// Recv blocks for the next record and returns it as a JSON payload.
func (s *Subscription) Recv() ([]byte, error) {
	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return protojson.Marshal(msg)
}
