package publish

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/banshee-data/markertrack/internal/monitoring"
	"go.bug.st/serial"
)

// DefaultBaudRate is used when PortOptions leaves the rate unset.
const DefaultBaudRate = 115200

// PortOptions describes the serial line used by SerialSink. Zero values
// select 115200 8N1.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

var parityNames = map[string]serial.Parity{
	"":     serial.NoParity,
	"n":    serial.NoParity,
	"none": serial.NoParity,
	"e":    serial.EvenParity,
	"even": serial.EvenParity,
	"o":    serial.OddParity,
	"odd":  serial.OddParity,
}

// Mode checks the options and fills in defaults for go.bug.st/serial.
func (o PortOptions) Mode() (*serial.Mode, error) {
	mode := &serial.Mode{BaudRate: o.BaudRate, DataBits: o.DataBits, StopBits: serial.OneStopBit}
	switch {
	case o.BaudRate < 0:
		return nil, fmt.Errorf("serial baud rate must be positive, got %d", o.BaudRate)
	case o.BaudRate == 0:
		mode.BaudRate = DefaultBaudRate
	}
	switch {
	case o.DataBits == 0:
		mode.DataBits = 8
	case o.DataBits < 5 || o.DataBits > 8:
		return nil, fmt.Errorf("serial data bits must be 5 to 8, got %d", o.DataBits)
	}
	switch o.StopBits {
	case 0, 1:
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("serial stop bits must be 1 or 2, got %d", o.StopBits)
	}
	parity, ok := parityNames[strings.ToLower(strings.TrimSpace(o.Parity))]
	if !ok {
		return nil, fmt.Errorf("serial parity %q is not none, even or odd", o.Parity)
	}
	mode.Parity = parity
	return mode, nil
}

// PortOpener opens the serial device. Tests substitute an in-memory port.
type PortOpener func(path string, mode *serial.Mode) (io.WriteCloser, error)

// OpenSerialPort opens a real device.
func OpenSerialPort(path string, mode *serial.Mode) (io.WriteCloser, error) {
	return serial.Open(path, mode)
}

// SerialSink writes newline-delimited results to a serial device. The
// device is opened lazily and reopened after a write error.
type SerialSink struct {
	path string
	mode *serial.Mode
	open PortOpener

	mu   sync.Mutex
	port io.WriteCloser
}

// NewSerialSink validates opts; the port is opened on the first Send. A
// nil opener uses OpenSerialPort.
func NewSerialSink(path string, opts PortOptions, open PortOpener) (*SerialSink, error) {
	if path == "" {
		return nil, fmt.Errorf("serial port path is required")
	}
	mode, err := opts.Mode()
	if err != nil {
		return nil, err
	}
	if open == nil {
		open = OpenSerialPort
	}
	return &SerialSink{path: path, mode: mode, open: open}, nil
}

// Send implements Sink.
func (s *SerialSink) Send(_ context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		port, err := s.open(s.path, s.mode)
		if err != nil {
			return fmt.Errorf("failed to open serial port %s: %w", s.path, err)
		}
		monitoring.Logf("[publish] writing results to %s at %d baud", s.path, s.mode.BaudRate)
		s.port = port
	}
	if _, err := s.port.Write(frameLine(payload)); err != nil {
		s.port.Close()
		s.port = nil
		return fmt.Errorf("failed to write to serial port %s: %w", s.path, err)
	}
	return nil
}

// Close implements Sink.
func (s *SerialSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
