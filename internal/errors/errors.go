package errors

// Error taxonomy for the EtherNet/IP client.
//
// Sentinels classify an error and are matched with errors.Is. The typed
// errors below carry the detail and unwrap to their sentinel, so callers can
// branch on the class and still print the numeric status.

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/tturner/etherip/internal/cip/spec"
)

var (
	ErrConnection     = stderrors.New("connection error")
	ErrFraming        = stderrors.New("framing error")
	ErrProtocol       = stderrors.New("protocol error")
	ErrTimeout        = stderrors.New("timeout")
	ErrNotConnected   = stderrors.New("session not connected")
	ErrNotRegistered  = stderrors.New("session not registered")
	ErrClosed         = stderrors.New("session closed")
	ErrTypeMismatch   = stderrors.New("type mismatch")
	ErrInvalidValue   = stderrors.New("invalid value")
	ErrInvalidTagName = stderrors.New("invalid tag name")
	ErrOutOfRange     = stderrors.New("index out of range")
	ErrCIPStatus      = stderrors.New("CIP status error")
)

// ConnectionError reports a TCP level failure: refused, unreachable, reset.
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return joinUnwrap(ErrConnection, e.Err)
}

// TimeoutError reports a request/reply exchange that did not complete in time.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: timeout: %v", e.Op, e.Err)
	}
	return e.Op + ": timeout"
}

func (e *TimeoutError) Unwrap() []error {
	return joinUnwrap(ErrTimeout, e.Err)
}

// FramingError reports malformed or truncated encapsulation bytes.
type FramingError struct {
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("framing error: %s: %v", e.Reason, e.Err)
	}
	return "framing error: " + e.Reason
}

func (e *FramingError) Unwrap() []error {
	return joinUnwrap(ErrFraming, e.Err)
}

// ProtocolError reports a well formed frame that violates the session
// protocol: wrong handle, wrong sender context, unexpected command.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}

// EncapStatusError reports a nonzero status in the encapsulation header.
type EncapStatusError struct {
	Command uint16
	Status  uint32
}

func (e *EncapStatusError) Error() string {
	return fmt.Sprintf("encapsulation command 0x%04X failed: status 0x%08X (%s)", e.Command, e.Status, EncapStatusName(e.Status))
}

func (e *EncapStatusError) Unwrap() error {
	return ErrProtocol
}

// CIPStatusError reports a nonzero CIP general status in a Message Router
// reply. The connection stays usable.
type CIPStatusError struct {
	Service  spec.ServiceCode
	Status   uint8
	Extended []uint16
}

// Category returns the human readable class of the general status.
func (e *CIPStatusError) Category() string {
	return GeneralStatusName(e.Status)
}

func (e *CIPStatusError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "CIP %s failed: status 0x%02X (%s)", spec.ServiceName(e.Service.Request()), e.Status, e.Category())
	if len(e.Extended) > 0 {
		buf.WriteString(", extended")
		for _, ext := range e.Extended {
			fmt.Fprintf(&buf, " 0x%04X", ext)
		}
	}
	return buf.String()
}

func (e *CIPStatusError) Unwrap() error {
	return ErrCIPStatus
}

// NewCIPStatusError builds a CIPStatusError, copying the extended words.
func NewCIPStatusError(service spec.ServiceCode, status uint8, extended []uint16) *CIPStatusError {
	var ext []uint16
	if len(extended) > 0 {
		ext = append([]uint16(nil), extended...)
	}
	return &CIPStatusError{Service: service, Status: status, Extended: ext}
}

// IsFatal reports whether err leaves the connection in an unknown state.
func IsFatal(err error) bool {
	return stderrors.Is(err, ErrFraming) ||
		stderrors.Is(err, ErrProtocol) ||
		stderrors.Is(err, ErrTimeout) ||
		stderrors.Is(err, ErrConnection)
}

// IsRetryable reports whether the same session can carry a corrected request.
func IsRetryable(err error) bool {
	var statusErr *CIPStatusError
	return stderrors.As(err, &statusErr) && !IsFatal(err)
}

func joinUnwrap(kind error, err error) []error {
	if err == nil {
		return []error{kind}
	}
	return []error{kind, err}
}
