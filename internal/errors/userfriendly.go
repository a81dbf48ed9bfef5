package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapNetworkError wraps connection, framing and timeout errors for the CLI.
func WrapNetworkError(err error, host string, port int) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to communicate with device at %s:%d", host, port),
		Reason:  extractNetworkReason(err),
		Hint:    "Device may not be an EtherNet/IP adapter, or there may be a network connectivity issue",
		Try:     fmt.Sprintf("etherip identity --host %s --port %d", host, port),
		Err:     err,
	}
}

// WrapCIPError wraps CIP status errors with the general status category.
func WrapCIPError(err error, operation string) error {
	if err == nil {
		return nil
	}

	hint := "The controller rejected the request; the connection is still usable"
	try := "Check the tag name, element count and data type"
	var statusErr *CIPStatusError
	if stderrors.As(err, &statusErr) {
		switch statusErr.Status {
		case 0x04, 0x05:
			try = "Verify the tag exists in the controller program and the slot is correct"
		case 0x08:
			hint = "The target does not implement this service; it may not be a Logix controller"
		case 0x0E, 0x0F, 0x10:
			try = "Check the controller key switch and whether the tag is externally writable"
		}
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("CIP operation failed: %s", operation),
		Reason:  extractCIPReason(err),
		Hint:    hint,
		Try:     try,
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Configuration files are YAML; see etherip.example.yaml",
		Try:     fmt.Sprintf("Validate your config: etherip validate --config %s", configPath),
		Err:     err,
	}
}

// Wrap picks the wrapper that matches the error class.
func Wrap(err error, operation, host string, port int) error {
	if err == nil {
		return nil
	}
	var friendly UserFriendlyError
	if stderrors.As(err, &friendly) {
		return err
	}
	if stderrors.Is(err, ErrCIPStatus) {
		return WrapCIPError(err, operation)
	}
	if IsFatal(err) {
		return WrapNetworkError(err, host, port)
	}
	return err
}

func extractNetworkReason(err error) string {
	switch {
	case stderrors.Is(err, ErrTimeout):
		return "Connection timeout - device may be offline or unreachable"
	case stderrors.Is(err, ErrFraming):
		return "Malformed reply - the stream was truncated or is not EtherNet/IP"
	case stderrors.Is(err, ErrProtocol):
		return "Protocol violation - the device replied out of sequence or rejected the session"
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timeout - device may be offline or unreachable"
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused - device may not be listening on this port"
	}
	if strings.Contains(errStr, "no route to host") {
		return "No route to host - network routing issue or device unreachable"
	}
	if strings.Contains(errStr, "connection reset") {
		return "Connection reset - device closed the connection unexpectedly"
	}

	return "Network communication failed"
}

func extractCIPReason(err error) string {
	var statusErr *CIPStatusError
	if stderrors.As(err, &statusErr) {
		return fmt.Sprintf("Device returned CIP status 0x%02X (%s)", statusErr.Status, statusErr.Category())
	}
	errStr := err.Error()
	if strings.Contains(errStr, "invalid packet") || strings.Contains(errStr, "decode") {
		return "Received invalid or malformed response from device"
	}
	if strings.Contains(errStr, "timeout") {
		return "Device did not respond within timeout period"
	}

	return "CIP protocol error occurred"
}
