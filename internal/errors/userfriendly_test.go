package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestUserFriendlyError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      UserFriendlyError
		contains []string
	}{
		{
			name:     "message only",
			err:      UserFriendlyError{Message: "something broke"},
			contains: []string{"something broke"},
		},
		{
			name: "all fields",
			err: UserFriendlyError{
				Message: "connection failed",
				Reason:  "timeout",
				Hint:    "check network",
				Try:     "ping host",
				Err:     fmt.Errorf("dial tcp: timeout"),
			},
			contains: []string{"connection failed", "Reason: timeout", "Hint: check network", "Try: ping host", "Details: dial tcp: timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("Error() = %q, want to contain %q", msg, s)
				}
			}
		})
	}
}

func TestUserFriendlyError_ErrorOmitsEmptyFields(t *testing.T) {
	msg := UserFriendlyError{Message: "msg"}.Error()
	if strings.Contains(msg, "Reason:") || strings.Contains(msg, "Hint:") || strings.Contains(msg, "Try:") || strings.Contains(msg, "Details:") {
		t.Errorf("Error() = %q, should not contain empty fields", msg)
	}
}

func TestUserFriendlyError_UnwrapKeepsClass(t *testing.T) {
	inner := &TimeoutError{Op: "read tag"}
	err := WrapNetworkError(inner, "10.0.0.1", 44818)

	if !errors.Is(err, ErrTimeout) {
		t.Error("wrapped timeout should still match ErrTimeout")
	}
	var timeout *TimeoutError
	if !errors.As(err, &timeout) || timeout != inner {
		t.Error("wrapped error should expose the TimeoutError")
	}
}

func TestWrapNetworkError(t *testing.T) {
	if WrapNetworkError(nil, "10.0.0.1", 44818) != nil {
		t.Fatal("nil error should stay nil")
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"typed timeout", &TimeoutError{Op: "read"}, "timeout"},
		{"string timeout", fmt.Errorf("dial tcp: i/o timeout"), "timeout"},
		{"refused", fmt.Errorf("connection refused"), "refused"},
		{"reset", fmt.Errorf("connection reset by peer"), "reset"},
		{"framing", &FramingError{Reason: "short payload"}, "Malformed"},
		{"protocol", &ProtocolError{Reason: "context mismatch"}, "out of sequence"},
		{"generic", fmt.Errorf("something else"), "Network communication failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ufe := WrapNetworkError(tt.err, "10.0.0.1", 44818).(UserFriendlyError)
			if !strings.Contains(ufe.Message, "10.0.0.1:44818") {
				t.Errorf("message should contain address, got %q", ufe.Message)
			}
			if !strings.Contains(ufe.Reason, tt.want) {
				t.Errorf("reason = %q, want to contain %q", ufe.Reason, tt.want)
			}
		})
	}
}

func TestWrapCIPError(t *testing.T) {
	if WrapCIPError(nil, "read") != nil {
		t.Fatal("nil error should stay nil")
	}

	t.Run("status error", func(t *testing.T) {
		err := WrapCIPError(NewCIPStatusError(0x4C, 0x05, nil), "read Missing")
		ufe := err.(UserFriendlyError)
		if !strings.Contains(ufe.Message, "read Missing") {
			t.Errorf("message should contain operation, got %q", ufe.Message)
		}
		if !strings.Contains(ufe.Reason, "0x05") || !strings.Contains(ufe.Reason, "path destination unknown") {
			t.Errorf("reason should name the status, got %q", ufe.Reason)
		}
		if !strings.Contains(ufe.Try, "tag exists") {
			t.Errorf("try should point at the tag, got %q", ufe.Try)
		}
	})

	t.Run("decode error", func(t *testing.T) {
		ufe := WrapCIPError(fmt.Errorf("failed to decode response"), "read").(UserFriendlyError)
		if !strings.Contains(ufe.Reason, "malformed") {
			t.Errorf("reason should mention malformed, got %q", ufe.Reason)
		}
	})

	t.Run("generic", func(t *testing.T) {
		ufe := WrapCIPError(fmt.Errorf("something"), "read").(UserFriendlyError)
		if ufe.Reason != "CIP protocol error occurred" {
			t.Errorf("unexpected reason: %q", ufe.Reason)
		}
	})
}

func TestWrapConfigError(t *testing.T) {
	if WrapConfigError(nil, "config.yaml") != nil {
		t.Fatal("nil error should stay nil")
	}
	ufe := WrapConfigError(fmt.Errorf("invalid yaml"), "etherip.yaml").(UserFriendlyError)
	if !strings.Contains(ufe.Message, "etherip.yaml") {
		t.Errorf("message should contain config path, got %q", ufe.Message)
	}
	if ufe.Reason != "invalid yaml" {
		t.Errorf("reason should be inner error message, got %q", ufe.Reason)
	}
}

func TestWrapDispatch(t *testing.T) {
	if _, ok := Wrap(NewCIPStatusError(0x4D, 0x0E, nil), "write", "h", 1).(UserFriendlyError); !ok {
		t.Error("CIP status error should be wrapped")
	}
	if _, ok := Wrap(&FramingError{Reason: "x"}, "read", "h", 1).(UserFriendlyError); !ok {
		t.Error("framing error should be wrapped")
	}
	local := fmt.Errorf("%w: empty", ErrInvalidTagName)
	if got := Wrap(local, "read", "h", 1); got != local {
		t.Errorf("local validation error should pass through, got %v", got)
	}
	once := Wrap(&TimeoutError{Op: "read"}, "read", "h", 1)
	if twice := Wrap(once, "read", "h", 1); twice.Error() != once.Error() {
		t.Error("already wrapped error should not be wrapped again")
	}
}
