package types

import (
	"bytes"
	"errors"
	"math"
	"testing"

	eipErrors "github.com/tturner/etherip/internal/errors"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	tests := []struct {
		dt   CIPDataType
		data []byte
		n    int
	}{
		{CIPTypeBOOL, []byte{0x01, 0x00, 0x01}, 3},
		{CIPTypeSINT, []byte{0xFF}, 1},
		{CIPTypeINT, []byte{0x34, 0x12, 0xFF, 0xFF}, 2},
		{CIPTypeDINT, []byte{0x78, 0x56, 0x34, 0x12}, 1},
		{CIPTypeLINT, bytes.Repeat([]byte{0x01}, 16), 2},
		{CIPTypeUSINT, []byte{0x10, 0x20}, 2},
		{CIPTypeUINT, []byte{0xFF, 0xFF}, 1},
		{CIPTypeUDINT, []byte{0, 0, 0, 0x80}, 1},
		{CIPTypeREAL, []byte{0x00, 0x00, 0x80, 0x3F, 0xC3, 0xF5, 0x48, 0x40}, 2},
		{CIPTypeLREAL, []byte{0, 0, 0, 0, 0, 0, 0xF0, 0x3F}, 1},
		{CIPTypeDWORD, []byte{0xEF, 0xBE, 0xAD, 0xDE}, 1},
		{CIPTypeSTRING, []byte{0x03, 0x00, 'a', 'b', 'c'}, 1},
		{CIPTypeSTRING, []byte{0x00, 0x00}, 1},
		{CIPTypeSTRUCT, []byte{0xCE, 0x0F, 0x01, 0x02, 0x03}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.dt.String(), func(t *testing.T) {
			v, err := Decode(tt.dt, tt.data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if v.Count() != tt.n {
				t.Errorf("Count = %d, want %d", v.Count(), tt.n)
			}
			if !bytes.Equal(v.Encode(), tt.data) {
				t.Errorf("Encode = % X, want % X", v.Encode(), tt.data)
			}
			again, err := Decode(tt.dt, v.Encode())
			if err != nil {
				t.Fatalf("second Decode: %v", err)
			}
			if !again.Equal(v) {
				t.Errorf("round trip changed value: %v vs %v", again, v)
			}
		})
	}
}

func TestDecodeRejectsBadWidth(t *testing.T) {
	tests := []struct {
		dt   CIPDataType
		data []byte
		want error
	}{
		{CIPTypeINT, []byte{0x01}, eipErrors.ErrTypeMismatch},
		{CIPTypeDINT, []byte{1, 2, 3, 4, 5}, eipErrors.ErrTypeMismatch},
		{CIPTypeREAL, []byte{1, 2}, eipErrors.ErrTypeMismatch},
		{CIPTypeSTRING, []byte{0x05, 0x00, 'a'}, eipErrors.ErrTypeMismatch},
		{CIPTypeSTRING, []byte{0x05}, eipErrors.ErrTypeMismatch},
		{CIPTypeSTRUCT, []byte{0x01}, eipErrors.ErrTypeMismatch},
		{CIPTypeDINT, nil, eipErrors.ErrInvalidValue},
		{CIPDataType(0x00FF), []byte{1}, eipErrors.ErrTypeMismatch},
	}
	for _, tt := range tests {
		if _, err := Decode(tt.dt, tt.data); !errors.Is(err, tt.want) {
			t.Errorf("Decode(%s, % X) err = %v, want %v", tt.dt, tt.data, err, tt.want)
		}
	}
}

func TestNewRejectsZeroCount(t *testing.T) {
	if _, err := New(CIPTypeDINT, 0); !errors.Is(err, eipErrors.ErrInvalidValue) {
		t.Fatalf("New(DINT, 0) err = %v", err)
	}
	if _, err := New(CIPTypeSTRING, 2); !errors.Is(err, eipErrors.ErrInvalidValue) {
		t.Fatalf("New(STRING, 2) err = %v", err)
	}
	if _, err := NewReal(); !errors.Is(err, eipErrors.ErrInvalidValue) {
		t.Fatalf("NewReal() err = %v", err)
	}
}

func TestRealScalar(t *testing.T) {
	v, err := Decode(CIPTypeREAL, []byte{0x00, 0x00, 0x80, 0x3F})
	if err != nil {
		t.Fatal(err)
	}
	f, err := v.Float(0)
	if err != nil || f != 1.0 {
		t.Fatalf("Float(0) = %v, %v", f, err)
	}

	w, err := NewReal(3.14)
	if err != nil {
		t.Fatal(err)
	}
	want := make([]byte, 4)
	bits := math.Float32bits(3.14)
	want[0], want[1], want[2], want[3] = byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24)
	if !bytes.Equal(w.Encode(), want) {
		t.Fatalf("NewReal(3.14) = % X, want % X", w.Encode(), want)
	}
}

func TestSignedAndUnsignedInts(t *testing.T) {
	sint, _ := Decode(CIPTypeSINT, []byte{0xFF})
	if n, _ := sint.Int(0); n != -1 {
		t.Errorf("SINT 0xFF = %d, want -1", n)
	}
	usint, _ := Decode(CIPTypeUSINT, []byte{0xFF})
	if n, _ := usint.Int(0); n != 255 {
		t.Errorf("USINT 0xFF = %d, want 255", n)
	}
	dint, _ := Decode(CIPTypeDINT, []byte{0xFE, 0xFF, 0xFF, 0xFF})
	if n, _ := dint.Int(0); n != -2 {
		t.Errorf("DINT = %d, want -2", n)
	}
	boolean, _ := Decode(CIPTypeBOOL, []byte{0xFF})
	if n, _ := boolean.Int(0); n != 1 {
		t.Errorf("BOOL 0xFF as int = %d, want 1", n)
	}
}

func TestElementOutOfRange(t *testing.T) {
	v, _ := NewDint(1, 2, 3)
	for _, i := range []int{-1, 3, 100} {
		if _, err := v.Int(i); !errors.Is(err, eipErrors.ErrOutOfRange) {
			t.Errorf("Int(%d) err = %v", i, err)
		}
		if err := v.SetInt(i, 1); !errors.Is(err, eipErrors.ErrOutOfRange) {
			t.Errorf("SetInt(%d) err = %v", i, err)
		}
	}
	if n, err := v.Int(2); err != nil || n != 3 {
		t.Errorf("Int(2) = %d, %v", n, err)
	}
}

func TestSettersTypeChecks(t *testing.T) {
	realVal, _ := NewReal(0)
	if err := realVal.SetInt(0, 1); !errors.Is(err, eipErrors.ErrTypeMismatch) {
		t.Errorf("SetInt on REAL err = %v", err)
	}
	dint, _ := NewDint(0)
	if err := dint.SetFloat(0, 1); !errors.Is(err, eipErrors.ErrTypeMismatch) {
		t.Errorf("SetFloat on DINT err = %v", err)
	}
	if err := dint.SetBool(0, true); !errors.Is(err, eipErrors.ErrTypeMismatch) {
		t.Errorf("SetBool on DINT err = %v", err)
	}
	if err := dint.SetString("x"); !errors.Is(err, eipErrors.ErrTypeMismatch) {
		t.Errorf("SetString on DINT err = %v", err)
	}
	if _, err := dint.Str(); !errors.Is(err, eipErrors.ErrTypeMismatch) {
		t.Errorf("Str on DINT err = %v", err)
	}
	if _, err := realVal.Int(0); !errors.Is(err, eipErrors.ErrTypeMismatch) {
		t.Errorf("Int on REAL err = %v", err)
	}
}

func TestSetIntRange(t *testing.T) {
	tests := []struct {
		dt      CIPDataType
		n       int64
		wantErr bool
	}{
		{CIPTypeSINT, 127, false},
		{CIPTypeSINT, 128, true},
		{CIPTypeSINT, -129, true},
		{CIPTypeINT, -32768, false},
		{CIPTypeUINT, -1, true},
		{CIPTypeUDINT, 1<<32 - 1, false},
		{CIPTypeUDINT, 1 << 32, true},
		{CIPTypeBOOL, 2, true},
		{CIPTypeLINT, math.MinInt64, false},
	}
	for _, tt := range tests {
		v, err := New(tt.dt, 1)
		if err != nil {
			t.Fatal(err)
		}
		err = v.SetInt(0, tt.n)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s.SetInt(%d) err = %v, wantErr %v", tt.dt, tt.n, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, eipErrors.ErrInvalidValue) {
			t.Errorf("%s.SetInt(%d) err = %v, want ErrInvalidValue", tt.dt, tt.n, err)
		}
		if err == nil {
			if got, _ := v.Int(0); got != tt.n {
				t.Errorf("%s round trip = %d, want %d", tt.dt, got, tt.n)
			}
		}
	}
}

func TestDecodedValuesAreReadOnly(t *testing.T) {
	v, _ := Decode(CIPTypeDINT, []byte{1, 0, 0, 0})
	if err := v.SetInt(0, 5); !errors.Is(err, eipErrors.ErrInvalidValue) {
		t.Fatalf("SetInt on decoded value err = %v", err)
	}
	c := v.Clone()
	if err := c.SetInt(0, 5); err != nil {
		t.Fatalf("SetInt on clone: %v", err)
	}
	if n, _ := v.Int(0); n != 1 {
		t.Fatalf("original changed to %d", n)
	}
	if !bytes.Equal(c.Encode(), []byte{5, 0, 0, 0}) {
		t.Fatalf("clone = % X", c.Encode())
	}
}

func TestStringValue(t *testing.T) {
	v, err := NewString("Line1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(v.Encode(), []byte{0x05, 0x00, 'L', 'i', 'n', 'e', '1'}) {
		t.Fatalf("Encode = % X", v.Encode())
	}
	if v.Count() != 1 {
		t.Fatalf("Count = %d", v.Count())
	}
	if _, err := NewString("caf\xc3\xa9"); !errors.Is(err, eipErrors.ErrInvalidValue) {
		t.Fatalf("non-ASCII err = %v", err)
	}
}

func TestStructValue(t *testing.T) {
	v := NewStruct(0x0FCE, []byte{0xAA, 0xBB})
	handle, members, err := v.StructHandle()
	if err != nil || handle != 0x0FCE || !bytes.Equal(members, []byte{0xAA, 0xBB}) {
		t.Fatalf("StructHandle = 0x%04X % X %v", handle, members, err)
	}
	if _, err := v.Int(0); !errors.Is(err, eipErrors.ErrTypeMismatch) {
		t.Fatalf("Int on STRUCT err = %v", err)
	}
}
