package client

import (
	"time"

	"github.com/tturner/etherip/internal/enip"
	"github.com/tturner/etherip/internal/logging"
)

const DefaultTimeout = 5 * time.Second

// Direction tells an Observer which way a frame travelled.
type Direction int

const (
	DirectionSent Direction = iota
	DirectionReceived
)

func (d Direction) String() string {
	if d == DirectionSent {
		return "sent"
	}
	return "received"
}

// Observer sees every complete frame a Session writes or reads.
// Implementations must not retain or modify frame.
type Observer interface {
	ObserveFrame(dir Direction, local, remote string, frame []byte)
}

// Options configures a Session. Start from DefaultOptions.
type Options struct {
	Port int
	// Slot is the backplane slot of the controller behind the adapter.
	Slot uint8
	// Routed wraps tag and identity services in Unconnected Send to Slot.
	// When false they go straight to the adapter's Message Router.
	Routed   bool
	Timeout  time.Duration
	Logger   *logging.Logger
	Observer Observer
	// Transport overrides the TCP transport, for tests.
	Transport Transport
}

// DefaultOptions returns options for a controller in slot 0 behind an
// EtherNet/IP module on the standard port.
func DefaultOptions() Options {
	return Options{
		Port:    enip.DefaultPort,
		Routed:  true,
		Timeout: DefaultTimeout,
	}
}

func (o Options) normalized() Options {
	if o.Port == 0 {
		o.Port = enip.DefaultPort
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	o.Logger = logging.OrDiscard(o.Logger)
	if o.Transport == nil {
		o.Transport = NewTCPTransport(o.Timeout)
	}
	return o
}
