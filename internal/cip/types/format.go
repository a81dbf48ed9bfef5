package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tturner/etherip/internal/errors"
)

// String renders the value as TYPE[count] followed by its elements.
func (v Value) String() string {
	if v.IsZero() {
		return "<empty>"
	}
	switch v.typ {
	case CIPTypeSTRING:
		s, _ := v.Str()
		return fmt.Sprintf("STRING %q", s)
	case CIPTypeSTRUCT:
		handle, members, _ := v.StructHandle()
		return fmt.Sprintf("STRUCT handle=0x%04X % X", handle, members)
	}
	parts := make([]string, v.count)
	for i := range parts {
		parts[i] = v.Format(i)
	}
	return fmt.Sprintf("%s[%d] %s", v.typ, v.count, strings.Join(parts, ", "))
}

// Format renders element i without the type prefix.
func (v Value) Format(i int) string {
	switch {
	case v.typ == CIPTypeBOOL:
		b, err := v.Bool(i)
		if err != nil {
			return "?"
		}
		return strconv.FormatBool(b)
	case v.typ == CIPTypeDWORD:
		n, err := v.Int(i)
		if err != nil {
			return "?"
		}
		return fmt.Sprintf("0x%08X", n)
	case v.typ.IsInteger():
		n, err := v.Int(i)
		if err != nil {
			return "?"
		}
		return strconv.FormatInt(n, 10)
	case v.typ.IsFloat():
		f, err := v.Float(i)
		if err != nil {
			return "?"
		}
		bits := 64
		if v.typ == CIPTypeREAL {
			bits = 32
		}
		return strconv.FormatFloat(f, 'g', -1, bits)
	case v.typ == CIPTypeSTRING:
		s, _ := v.Str()
		return s
	}
	return fmt.Sprintf("% X", v.data)
}

// Values renders every element, one string each.
func (v Value) Values() []string {
	if v.typ == CIPTypeSTRING || v.typ == CIPTypeSTRUCT {
		return []string{v.Format(0)}
	}
	out := make([]string, v.count)
	for i := range out {
		out[i] = v.Format(i)
	}
	return out
}

// ParseValue builds a writable value from text. Arrays are comma separated;
// STRING takes the text verbatim. STRUCT cannot be parsed from text.
func ParseValue(dt CIPDataType, text string) (Value, error) {
	if dt == CIPTypeSTRING {
		return NewString(text)
	}
	if dt == CIPTypeSTRUCT {
		return Value{}, fmt.Errorf("%w: STRUCT values cannot be parsed from text", errors.ErrTypeMismatch)
	}
	if strings.TrimSpace(text) == "" {
		return Value{}, fmt.Errorf("%w: value is required", errors.ErrInvalidValue)
	}
	fields := strings.Split(text, ",")
	v, err := New(dt, len(fields))
	if err != nil {
		return Value{}, err
	}
	for i, field := range fields {
		clean := strings.TrimSpace(field)
		switch {
		case dt == CIPTypeBOOL:
			b, err := parseBool(clean)
			if err != nil {
				return Value{}, err
			}
			if err := v.SetBool(i, b); err != nil {
				return Value{}, err
			}
		case dt.IsFloat():
			f, err := strconv.ParseFloat(clean, 64)
			if err != nil {
				return Value{}, fmt.Errorf("%w: invalid float value %q", errors.ErrInvalidValue, clean)
			}
			if err := v.SetFloat(i, f); err != nil {
				return Value{}, err
			}
		default:
			n, err := strconv.ParseInt(clean, 0, 64)
			if err != nil {
				return Value{}, fmt.Errorf("%w: invalid integer value %q", errors.ErrInvalidValue, clean)
			}
			if err := v.SetInt(i, n); err != nil {
				return Value{}, err
			}
		}
	}
	return v, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: invalid BOOL value %q", errors.ErrInvalidValue, s)
}
