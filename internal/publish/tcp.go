package publish

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/markertrack/internal/monitoring"
)

// DefaultWriteTimeout bounds a single write to a stream peer.
const DefaultWriteTimeout = 2 * time.Second

// TCPSink serves results to one TCP client at a time as newline-delimited
// JSON. Send waits for a client when none is connected; after a write
// failure the next queued connection takes over.
type TCPSink struct {
	listener     net.Listener
	conns        chan net.Conn
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration

	mu   sync.Mutex
	peer net.Conn
}

// ListenTCP starts accepting subscribers on addr.
func ListenTCP(addr string) (*TCPSink, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s := &TCPSink{
		listener:     lis,
		conns:        make(chan net.Conn),
		done:         make(chan struct{}),
		writeTimeout: DefaultWriteTimeout,
	}
	go s.acceptLoop()
	monitoring.Logf("[publish] serving results on tcp://%s", lis.Addr())
	return s, nil
}

// Addr returns the listening address.
func (s *TCPSink) Addr() net.Addr { return s.listener.Addr() }

func (s *TCPSink) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			monitoring.Logf("[publish] accept failed: %v", err)
			continue
		}
		select {
		case s.conns <- conn:
		case <-s.done:
			conn.Close()
			return
		}
	}
}

func (s *TCPSink) client(ctx context.Context) (net.Conn, error) {
	s.mu.Lock()
	peer := s.peer
	s.mu.Unlock()
	if peer != nil {
		return peer, nil
	}
	select {
	case conn := <-s.conns:
		monitoring.Logf("[publish] client connected from %s", conn.RemoteAddr())
		s.mu.Lock()
		s.peer = conn
		s.mu.Unlock()
		return conn, nil
	case <-s.done:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send implements Sink.
func (s *TCPSink) Send(ctx context.Context, payload []byte) error {
	conn, err := s.client(ctx)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if _, err := conn.Write(frameLine(payload)); err != nil {
		monitoring.Logf("[publish] client %s disconnected: %v", conn.RemoteAddr(), err)
		s.dropPeer(conn)
		return fmt.Errorf("failed to write to %s: %w", conn.RemoteAddr(), err)
	}
	return nil
}

func (s *TCPSink) dropPeer(conn net.Conn) {
	s.mu.Lock()
	if s.peer == conn {
		s.peer = nil
	}
	s.mu.Unlock()
	conn.Close()
}

// Close stops accepting and disconnects the current client.
func (s *TCPSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.listener.Close()
		s.mu.Lock()
		if s.peer != nil {
			s.peer.Close()
			s.peer = nil
		}
		s.mu.Unlock()
	})
	return err
}

func frameLine(payload []byte) []byte {
	line := make([]byte, len(payload)+1)
	copy(line, payload)
	line[len(payload)] = '\n'
	return line
}
