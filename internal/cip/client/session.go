package client

// Session lifecycle for one EtherNet/IP connection.
//
// A Session is not safe for concurrent use beyond what its internal lock
// provides: requests are serialized, one in flight at a time. Callers that
// want parallel tag access should open independent Sessions.

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tturner/etherip/internal/enip"
	"github.com/tturner/etherip/internal/errors"
	"github.com/tturner/etherip/internal/logging"
)

// State is the position of a Session in its lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateRegistered
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateRegistered:
		return "registered"
	case StateClosed:
		return "closed"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Session owns one TCP connection to an EtherNet/IP device.
type Session struct {
	host   string
	opts   Options
	logger *logging.Logger

	mu      sync.Mutex
	state   State
	handle  uint32
	ctxBase uint32
	ctxSeq  uint32

	// aborted is set when Close tears down the socket under a request
	// that still holds mu.
	aborted atomic.Bool
}

// NewSession returns a Disconnected session for host.
func NewSession(host string, opts Options) *Session {
	opts = opts.normalized()
	s := &Session{
		host:   host,
		opts:   opts,
		logger: opts.Logger,
	}
	var seed [4]byte
	_, _ = rand.Read(seed[:])
	s.ctxBase = binary.LittleEndian.Uint32(seed[:])
	return s
}

// Dial connects to host and registers a session. On any failure the
// socket is closed before Dial returns.
func Dial(ctx context.Context, host string, opts Options) (*Session, error) {
	s := NewSession(host, opts)
	if err := s.Connect(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.RegisterSession(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Addr returns host:port.
func (s *Session) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.opts.Port))
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionHandle returns the registered handle, or 0.
func (s *Session) SessionHandle() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Options returns the normalized options the session runs with.
func (s *Session) Options() Options {
	return s.opts
}

// Connect opens the TCP connection.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return fmt.Errorf("connect: %w", errors.ErrClosed)
	case StateConnected, StateRegistered:
		return fmt.Errorf("connect: session already %s", s.state)
	}

	addr := s.Addr()
	if err := s.opts.Transport.Connect(ctx, addr); err != nil {
		s.logger.Error("Connect to %s failed: %v", addr, err)
		return &errors.ConnectionError{Op: "connect", Addr: addr, Err: err}
	}
	s.state = StateConnected
	s.logger.Verbose("Connected to %s", addr)
	return nil
}

// RegisterSession obtains a session handle from the device.
func (s *Session) RegisterSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return fmt.Errorf("register session: %w", errors.ErrClosed)
	case StateDisconnected:
		return fmt.Errorf("register session: %w", errors.ErrNotConnected)
	case StateRegistered:
		return nil
	}

	senderContext := s.nextContext()
	reply, err := s.exchange(ctx, "RegisterSession", enip.BuildRegisterSession(senderContext), senderContext, enip.ENIPCommandRegisterSession)
	if err != nil {
		return err
	}
	if _, err := enip.ParseRegisterSessionReply(reply.Data); err != nil {
		return s.fail(err)
	}
	if reply.SessionID == 0 {
		return s.fail(&errors.ProtocolError{Reason: "RegisterSession reply carried session handle 0"})
	}

	s.handle = reply.SessionID
	s.state = StateRegistered
	s.logger.Info("Registered session 0x%08X with %s", s.handle, s.Addr())
	return nil
}

// UnregisterSession tells the device to drop the session and closes the
// socket. Send errors are logged, not returned. The session ends Closed.
func (s *Session) UnregisterSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown(ctx)
	return nil
}

// Close releases the connection. It attempts UnregisterSession first when
// a session is registered. Close is idempotent and may be called from
// another goroutine: a request in flight is aborted by closing the socket
// and fails with ErrClosed.
func (s *Session) Close() error {
	if !s.mu.TryLock() {
		s.aborted.Store(true)
		if err := s.opts.Transport.Close(); err != nil {
			s.logger.Debug("Close %s: %v", s.Addr(), err)
		}
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()
	s.shutdown(ctx)
	return nil
}

func (s *Session) shutdown(ctx context.Context) {
	if s.state == StateClosed {
		return
	}
	if s.state == StateRegistered && !s.aborted.Load() {
		frame := enip.BuildUnregisterSession(s.handle, s.nextContext())
		deadline := time.Now().Add(s.opts.Timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = s.opts.Transport.SetDeadline(deadline)
		s.observe(DirectionSent, frame)
		if err := s.opts.Transport.Send(frame); err != nil {
			s.logger.Error("UnregisterSession 0x%08X: %v", s.handle, err)
		} else {
			s.logger.Verbose("Unregistered session 0x%08X", s.handle)
		}
	}
	if err := s.opts.Transport.Close(); err != nil {
		s.logger.Debug("Close %s: %v", s.Addr(), err)
	}
	s.state = StateClosed
	s.handle = 0
}

// fail closes the connection after an error that leaves the stream in an
// unknown position. Caller holds s.mu.
func (s *Session) fail(err error) error {
	if s.state != StateClosed {
		s.logger.Error("Closing session to %s: %v", s.Addr(), err)
		_ = s.opts.Transport.Close()
		s.state = StateClosed
		s.handle = 0
	}
	return err
}

func (s *Session) nextContext() [8]byte {
	s.ctxSeq++
	var c [8]byte
	binary.LittleEndian.PutUint32(c[0:4], s.ctxBase)
	binary.LittleEndian.PutUint32(c[4:8], s.ctxSeq)
	return c
}

func (s *Session) requireRegistered(op string) error {
	switch s.state {
	case StateRegistered:
		return nil
	case StateClosed:
		return fmt.Errorf("%s: %w", op, errors.ErrClosed)
	}
	return fmt.Errorf("%s: %w", op, errors.ErrNotRegistered)
}

func (s *Session) requireConnected(op string) error {
	switch s.state {
	case StateConnected, StateRegistered:
		return nil
	case StateClosed:
		return fmt.Errorf("%s: %w", op, errors.ErrClosed)
	}
	return fmt.Errorf("%s: %w", op, errors.ErrNotConnected)
}

func (s *Session) observe(dir Direction, frame []byte) {
	if s.opts.Observer == nil {
		return
	}
	s.opts.Observer.ObserveFrame(dir, s.opts.Transport.LocalAddr(), s.opts.Transport.RemoteAddr(), frame)
}

// exchange sends one frame and reads exactly one reply, enforcing the
// timeout, the sender context echo, the expected command and a zero
// encapsulation status. Any failure here closes the session. Caller holds
// s.mu.
func (s *Session) exchange(ctx context.Context, op string, frame []byte, senderContext [8]byte, expect uint16) (enip.ENIPEncapsulation, error) {
	// Nothing has been sent yet, so the session stays usable.
	if err := ctx.Err(); err != nil {
		return enip.ENIPEncapsulation{}, s.classify(ctx, op, err)
	}

	deadline := time.Now().Add(s.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	transport := s.opts.Transport
	if err := transport.SetDeadline(deadline); err != nil {
		return enip.ENIPEncapsulation{}, s.fail(&errors.ConnectionError{Op: op, Addr: s.Addr(), Err: err})
	}
	// Cancelling ctx forces the in-flight read to fail.
	stop := context.AfterFunc(ctx, func() {
		_ = transport.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	s.logger.LogHex("TX "+op, frame)
	s.observe(DirectionSent, frame)
	if err := transport.Send(frame); err != nil {
		return enip.ENIPEncapsulation{}, s.fail(s.classify(ctx, op, err))
	}

	reply, raw, err := transport.Receive()
	if err != nil {
		return enip.ENIPEncapsulation{}, s.fail(s.classify(ctx, op, err))
	}
	s.observe(DirectionReceived, raw)
	s.logger.LogHex("RX "+op, raw)

	if reply.SenderContext != senderContext {
		return reply, s.fail(&errors.ProtocolError{
			Reason: fmt.Sprintf("%s reply sender context % X does not match request % X", op, reply.SenderContext[:], senderContext[:]),
		})
	}
	if reply.Command != expect {
		return reply, s.fail(&errors.ProtocolError{
			Reason: fmt.Sprintf("%s reply has command %s, want %s", op, enip.CommandName(reply.Command), enip.CommandName(expect)),
		})
	}
	if reply.Status != enip.ENIPStatusSuccess {
		return reply, s.fail(&errors.EncapStatusError{Command: reply.Command, Status: reply.Status})
	}
	if s.state == StateRegistered && expect == enip.ENIPCommandSendRRData && reply.SessionID != s.handle {
		return reply, s.fail(&errors.ProtocolError{
			Reason: fmt.Sprintf("%s reply session handle 0x%08X, want 0x%08X", op, reply.SessionID, s.handle),
		})
	}
	return reply, nil
}

func (s *Session) classify(ctx context.Context, op string, err error) error {
	if s.aborted.Load() {
		return &errors.ConnectionError{Op: op, Addr: s.Addr(), Err: errors.ErrClosed}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			return &errors.TimeoutError{Op: op, Err: ctxErr}
		}
		return &errors.ConnectionError{Op: op, Addr: s.Addr(), Err: ctxErr}
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return &errors.TimeoutError{Op: op, Err: err}
	}
	if stderrors.Is(err, errors.ErrFraming) || stderrors.Is(err, errors.ErrProtocol) {
		return err
	}
	if stderrors.Is(err, io.EOF) {
		return &errors.ConnectionError{Op: op, Addr: s.Addr(), Err: fmt.Errorf("connection closed by peer: %w", err)}
	}
	return &errors.ConnectionError{Op: op, Addr: s.Addr(), Err: err}
}
