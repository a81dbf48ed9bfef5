package types

import (
	"bytes"
	"fmt"
	"math"

	"github.com/tturner/etherip/internal/cip/codec"
	"github.com/tturner/etherip/internal/errors"
)

// Value is a typed CIP data value: a type code, an element count and the
// raw little-endian wire bytes of every element.
//
// STRING values hold the 2-byte character count followed by the characters.
// STRUCT values hold the 2-byte structure handle followed by the member bytes.
// Both always have a count of 1.
//
// Values produced by Decode are read-only. Use Clone to get a copy that the
// Set methods accept.
type Value struct {
	typ      CIPDataType
	count    int
	data     []byte
	readOnly bool
}

// New returns a zeroed, writable value of count elements.
func New(dt CIPDataType, count int) (Value, error) {
	if !dt.Known() {
		return Value{}, fmt.Errorf("%w: unsupported type 0x%04X", errors.ErrTypeMismatch, uint16(dt))
	}
	if count < 1 {
		return Value{}, fmt.Errorf("%w: element count must be at least 1, got %d", errors.ErrInvalidValue, count)
	}
	switch dt {
	case CIPTypeSTRING:
		if count != 1 {
			return Value{}, fmt.Errorf("%w: STRING element count is always 1", errors.ErrInvalidValue)
		}
		return Value{typ: dt, count: 1, data: make([]byte, 2)}, nil
	case CIPTypeSTRUCT:
		if count != 1 {
			return Value{}, fmt.Errorf("%w: STRUCT element count is always 1", errors.ErrInvalidValue)
		}
		return Value{typ: dt, count: 1, data: make([]byte, 2)}, nil
	}
	return Value{typ: dt, count: count, data: make([]byte, count*dt.Width())}, nil
}

// Decode builds a read-only value from wire bytes.
func Decode(dt CIPDataType, data []byte) (Value, error) {
	if !dt.Known() {
		return Value{}, fmt.Errorf("%w: unsupported type 0x%04X", errors.ErrTypeMismatch, uint16(dt))
	}
	if len(data) == 0 {
		return Value{}, fmt.Errorf("%w: %s value has no bytes", errors.ErrInvalidValue, dt)
	}
	switch dt {
	case CIPTypeSTRING:
		if len(data) < 2 {
			return Value{}, fmt.Errorf("%w: STRING requires a 2-byte length prefix", errors.ErrTypeMismatch)
		}
		n := int(codec.Order.Uint16(data[:2]))
		if len(data) != 2+n {
			return Value{}, fmt.Errorf("%w: STRING length %d does not match %d payload bytes", errors.ErrTypeMismatch, n, len(data)-2)
		}
	case CIPTypeSTRUCT:
		if len(data) < 2 {
			return Value{}, fmt.Errorf("%w: STRUCT requires a 2-byte structure handle", errors.ErrTypeMismatch)
		}
	default:
		if len(data)%dt.Width() != 0 {
			return Value{}, fmt.Errorf("%w: %d bytes is not a multiple of the %s width %d", errors.ErrTypeMismatch, len(data), dt, dt.Width())
		}
	}
	count := 1
	if w := dt.Width(); w > 0 {
		count = len(data) / w
	}
	return Value{
		typ:      dt,
		count:    count,
		data:     append([]byte(nil), data...),
		readOnly: true,
	}, nil
}

// NewString returns a writable STRING value.
func NewString(s string) (Value, error) {
	v, err := New(CIPTypeSTRING, 1)
	if err != nil {
		return Value{}, err
	}
	if err := v.SetString(s); err != nil {
		return Value{}, err
	}
	return v, nil
}

// NewStruct returns a STRUCT value for an opaque structure payload.
func NewStruct(handle uint16, members []byte) Value {
	data := codec.AppendUint16(codec.Order, make([]byte, 0, 2+len(members)), handle)
	data = append(data, members...)
	return Value{typ: CIPTypeSTRUCT, count: 1, data: data}
}

// NewReal returns a REAL array holding vals.
func NewReal(vals ...float32) (Value, error) {
	v, err := New(CIPTypeREAL, len(vals))
	if err != nil {
		return Value{}, err
	}
	for i, f := range vals {
		codec.PutUint32(codec.Order, v.data[i*4:], math.Float32bits(f))
	}
	return v, nil
}

// NewDint returns a DINT array holding vals.
func NewDint(vals ...int32) (Value, error) {
	v, err := New(CIPTypeDINT, len(vals))
	if err != nil {
		return Value{}, err
	}
	for i, n := range vals {
		codec.PutUint32(codec.Order, v.data[i*4:], uint32(n))
	}
	return v, nil
}

// NewBool returns a BOOL array holding vals.
func NewBool(vals ...bool) (Value, error) {
	v, err := New(CIPTypeBOOL, len(vals))
	if err != nil {
		return Value{}, err
	}
	for i, b := range vals {
		if b {
			v.data[i] = 1
		}
	}
	return v, nil
}

// Type returns the CIP type code.
func (v Value) Type() CIPDataType { return v.typ }

// Count returns the number of elements.
func (v Value) Count() int { return v.count }

// IsZero reports whether v was never initialised.
func (v Value) IsZero() bool { return v.count == 0 }

// ReadOnly reports whether the value came from the wire.
func (v Value) ReadOnly() bool { return v.readOnly }

// Encode returns the wire bytes. Decode(v.Type(), v.Encode()) equals v.
func (v Value) Encode() []byte {
	return append([]byte(nil), v.data...)
}

// Clone returns a writable copy.
func (v Value) Clone() Value {
	return Value{typ: v.typ, count: v.count, data: append([]byte(nil), v.data...)}
}

// Equal compares type, count and bytes. Mutability is ignored.
func (v Value) Equal(other Value) bool {
	return v.typ == other.typ && v.count == other.count && bytes.Equal(v.data, other.data)
}

func (v Value) element(i int) ([]byte, error) {
	if i < 0 || i >= v.count {
		return nil, fmt.Errorf("%w: element %d of %s[%d]", errors.ErrOutOfRange, i, v.typ, v.count)
	}
	w := v.typ.Width()
	return v.data[i*w : (i+1)*w], nil
}

// Int returns element i of an integer, BOOL or DWORD value.
func (v Value) Int(i int) (int64, error) {
	if !v.typ.IsInteger() {
		return 0, fmt.Errorf("%w: %s is not an integer type", errors.ErrTypeMismatch, v.typ)
	}
	b, err := v.element(i)
	if err != nil {
		return 0, err
	}
	return decodeInt(v.typ, b), nil
}

// Float returns element i of any numeric value as float64.
func (v Value) Float(i int) (float64, error) {
	switch {
	case v.typ == CIPTypeREAL:
		b, err := v.element(i)
		if err != nil {
			return 0, err
		}
		return float64(math.Float32frombits(codec.Order.Uint32(b))), nil
	case v.typ == CIPTypeLREAL:
		b, err := v.element(i)
		if err != nil {
			return 0, err
		}
		return math.Float64frombits(codec.Order.Uint64(b)), nil
	case v.typ.IsInteger():
		n, err := v.Int(i)
		return float64(n), err
	}
	return 0, fmt.Errorf("%w: %s is not numeric", errors.ErrTypeMismatch, v.typ)
}

// Bool returns element i of a BOOL value. Any nonzero byte is true.
func (v Value) Bool(i int) (bool, error) {
	if v.typ != CIPTypeBOOL {
		return false, fmt.Errorf("%w: %s is not BOOL", errors.ErrTypeMismatch, v.typ)
	}
	b, err := v.element(i)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// Str returns the characters of a STRING value.
func (v Value) Str() (string, error) {
	if v.typ != CIPTypeSTRING {
		return "", fmt.Errorf("%w: %s is not STRING", errors.ErrTypeMismatch, v.typ)
	}
	return string(v.data[2:]), nil
}

// StructHandle returns the structure handle and member bytes of a STRUCT value.
func (v Value) StructHandle() (uint16, []byte, error) {
	if v.typ != CIPTypeSTRUCT {
		return 0, nil, fmt.Errorf("%w: %s is not STRUCT", errors.ErrTypeMismatch, v.typ)
	}
	return codec.Order.Uint16(v.data[:2]), v.data[2:], nil
}

func (v *Value) writable() error {
	if v.readOnly {
		return fmt.Errorf("%w: value decoded from the wire is read-only, Clone it first", errors.ErrInvalidValue)
	}
	return nil
}

// SetInt stores n into element i. n must fit the element type.
func (v *Value) SetInt(i int, n int64) error {
	if !v.typ.IsInteger() {
		return fmt.Errorf("%w: cannot set integer on %s", errors.ErrTypeMismatch, v.typ)
	}
	if err := v.writable(); err != nil {
		return err
	}
	b, err := v.element(i)
	if err != nil {
		return err
	}
	lo, hi := v.typ.intRange()
	if n < lo || n > hi {
		return fmt.Errorf("%w: %d does not fit %s", errors.ErrInvalidValue, n, v.typ)
	}
	encodeInt(b, uint64(n))
	return nil
}

// SetFloat stores f into element i of a REAL or LREAL value.
func (v *Value) SetFloat(i int, f float64) error {
	if !v.typ.IsFloat() {
		return fmt.Errorf("%w: cannot set float on %s", errors.ErrTypeMismatch, v.typ)
	}
	if err := v.writable(); err != nil {
		return err
	}
	b, err := v.element(i)
	if err != nil {
		return err
	}
	if v.typ == CIPTypeREAL {
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return fmt.Errorf("%w: %g overflows REAL", errors.ErrInvalidValue, f)
		}
		codec.PutUint32(codec.Order, b, math.Float32bits(float32(f)))
		return nil
	}
	codec.PutUint64(codec.Order, b, math.Float64bits(f))
	return nil
}

// SetBool stores b into element i of a BOOL value.
func (v *Value) SetBool(i int, b bool) error {
	if v.typ != CIPTypeBOOL {
		return fmt.Errorf("%w: cannot set BOOL on %s", errors.ErrTypeMismatch, v.typ)
	}
	if err := v.writable(); err != nil {
		return err
	}
	elem, err := v.element(i)
	if err != nil {
		return err
	}
	elem[0] = 0
	if b {
		elem[0] = 1
	}
	return nil
}

// SetString replaces the characters of a STRING value. s must be ASCII.
func (v *Value) SetString(s string) error {
	if v.typ != CIPTypeSTRING {
		return fmt.Errorf("%w: cannot set STRING on %s", errors.ErrTypeMismatch, v.typ)
	}
	if err := v.writable(); err != nil {
		return err
	}
	if len(s) > 0xFFFF {
		return fmt.Errorf("%w: STRING of %d characters exceeds 65535", errors.ErrInvalidValue, len(s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return fmt.Errorf("%w: STRING must be ASCII, byte %d is 0x%02X", errors.ErrInvalidValue, i, s[i])
		}
	}
	data := codec.AppendUint16(codec.Order, make([]byte, 0, 2+len(s)), uint16(len(s)))
	v.data = append(data, s...)
	return nil
}

func decodeInt(dt CIPDataType, b []byte) int64 {
	switch dt.Width() {
	case 1:
		switch dt {
		case CIPTypeSINT:
			return int64(int8(b[0]))
		case CIPTypeBOOL:
			if b[0] != 0 {
				return 1
			}
			return 0
		}
		return int64(b[0])
	case 2:
		u := codec.Order.Uint16(b)
		if dt == CIPTypeINT {
			return int64(int16(u))
		}
		return int64(u)
	case 4:
		u := codec.Order.Uint32(b)
		if dt == CIPTypeDINT {
			return int64(int32(u))
		}
		return int64(u)
	default:
		return int64(codec.Order.Uint64(b))
	}
}

func encodeInt(b []byte, u uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(u)
	case 2:
		codec.PutUint16(codec.Order, b, uint16(u))
	case 4:
		codec.PutUint32(codec.Order, b, uint32(u))
	default:
		codec.PutUint64(codec.Order, b, u)
	}
}
