package publish

import (
	"fmt"
	"net"
	"strconv"
)

// Kind names a sink type in configuration.
type Kind string

const (
	KindTCP    Kind = "tcp"
	KindUDP    Kind = "udp"
	KindSerial Kind = "serial"
	KindStream Kind = "grpc"
)

// Options selects and configures a sink.
type Options struct {
	Kind Kind
	// Address and Port are the listen address for tcp and grpc, and the
	// destination for udp.
	Address    string
	Port       int
	SerialPort string
	Serial     PortOptions
}

// Open creates the sink described by opts.
func Open(opts Options) (Sink, error) {
	switch opts.Kind {
	case KindTCP, "":
		return ListenTCP(net.JoinHostPort(opts.Address, strconv.Itoa(opts.Port)))
	case KindUDP:
		return DialUDP(opts.Address, opts.Port)
	case KindSerial:
		return NewSerialSink(opts.SerialPort, opts.Serial, nil)
	case KindStream:
		return ListenStream(net.JoinHostPort(opts.Address, strconv.Itoa(opts.Port)))
	default:
		return nil, fmt.Errorf("unknown sink %q: expected tcp, udp, serial or grpc", opts.Kind)
	}
}
