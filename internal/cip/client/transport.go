package client

// Transport abstraction for the encapsulation stream

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tturner/etherip/internal/enip"
)

// Transport carries whole encapsulation frames over one stream connection.
// A Session owns exactly one Transport.
type Transport interface {
	Connect(ctx context.Context, addr string) error
	Close() error
	Send(frame []byte) error
	// Receive reads exactly one frame: header first, then Length bytes.
	Receive() (enip.ENIPEncapsulation, []byte, error)
	SetDeadline(t time.Time) error
	LocalAddr() string
	RemoteAddr() string
}

// TCPTransport implements TCP transport
type TCPTransport struct {
	conn        net.Conn
	addr        string
	local       string
	dialTimeout time.Duration
	connMu      sync.RWMutex
}

var _ Transport = (*TCPTransport)(nil)

// NewTCPTransport creates a new TCP transport
func NewTCPTransport(dialTimeout time.Duration) *TCPTransport {
	return &TCPTransport{dialTimeout: dialTimeout}
}

// Connect establishes a TCP connection
func (t *TCPTransport) Connect(ctx context.Context, addr string) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn != nil {
		return fmt.Errorf("already connected")
	}

	dialer := net.Dialer{
		Timeout:   t.dialTimeout,
		KeepAlive: 30 * time.Second,
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial TCP: %w", err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	t.conn = conn
	t.addr = conn.RemoteAddr().String()
	t.local = conn.LocalAddr().String()
	return nil
}

// Close closes the TCP connection. It is safe to call from another
// goroutine to abort a blocked Receive.
func (t *TCPTransport) Close() error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *TCPTransport) current() (net.Conn, error) {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	if t.conn == nil {
		return nil, net.ErrClosed
	}
	return t.conn, nil
}

// Send writes one frame.
func (t *TCPTransport) Send(frame []byte) error {
	conn, err := t.current()
	if err != nil {
		return err
	}
	_, err = conn.Write(frame)
	return err
}

// Receive reads one frame.
func (t *TCPTransport) Receive() (enip.ENIPEncapsulation, []byte, error) {
	conn, err := t.current()
	if err != nil {
		return enip.ENIPEncapsulation{}, nil, err
	}
	return enip.ReadFrame(conn)
}

// SetDeadline bounds the next Send and Receive.
func (t *TCPTransport) SetDeadline(deadline time.Time) error {
	conn, err := t.current()
	if err != nil {
		return err
	}
	return conn.SetDeadline(deadline)
}

// LocalAddr returns the local ip:port of the last connection.
func (t *TCPTransport) LocalAddr() string {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.local
}

// RemoteAddr returns the peer ip:port of the last connection.
func (t *TCPTransport) RemoteAddr() string {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.addr
}
