package publish

import (
	"context"
	"fmt"
	"net"

	"github.com/banshee-data/markertrack/internal/monitoring"
)

// UDPSink sends each result as one datagram to a fixed address.
type UDPSink struct {
	conn    *net.UDPConn
	address string
}

// DialUDP resolves addr:port and prepares the sink.
func DialUDP(addr string, port int) (*UDPSink, error) {
	address := net.JoinHostPort(addr, fmt.Sprint(port))
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve result address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create result connection: %w", err)
	}
	monitoring.Logf("[publish] sending results to udp://%s", address)
	return &UDPSink{conn: conn, address: address}, nil
}

// Send implements Sink.
func (s *UDPSink) Send(_ context.Context, payload []byte) error {
	if _, err := s.conn.Write(payload); err != nil {
		return fmt.Errorf("failed to send datagram to %s: %w", s.address, err)
	}
	return nil
}

// Close implements Sink.
func (s *UDPSink) Close() error {
	return s.conn.Close()
}
