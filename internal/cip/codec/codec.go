package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Order is the byte order used on the EtherNet/IP and CIP wire.
var Order binary.ByteOrder = binary.LittleEndian

// PutUint16 writes a uint16 to dst using the provided byte order.
func PutUint16(order binary.ByteOrder, dst []byte, value uint16) {
	order.PutUint16(dst, value)
}

// PutUint32 writes a uint32 to dst using the provided byte order.
func PutUint32(order binary.ByteOrder, dst []byte, value uint32) {
	order.PutUint32(dst, value)
}

// PutUint64 writes a uint64 to dst using the provided byte order.
func PutUint64(order binary.ByteOrder, dst []byte, value uint64) {
	order.PutUint64(dst, value)
}

// AppendUint16 appends a uint16 to dst using the provided byte order.
func AppendUint16(order binary.ByteOrder, dst []byte, value uint16) []byte {
	var buf [2]byte
	order.PutUint16(buf[:], value)
	return append(dst, buf[:]...)
}

// AppendUint32 appends a uint32 to dst using the provided byte order.
func AppendUint32(order binary.ByteOrder, dst []byte, value uint32) []byte {
	var buf [4]byte
	order.PutUint32(buf[:], value)
	return append(dst, buf[:]...)
}

// AppendUint64 appends a uint64 to dst using the provided byte order.
func AppendUint64(order binary.ByteOrder, dst []byte, value uint64) []byte {
	var buf [8]byte
	order.PutUint64(buf[:], value)
	return append(dst, buf[:]...)
}

// AppendFloat32 appends an IEEE-754 single precision value.
func AppendFloat32(order binary.ByteOrder, dst []byte, value float32) []byte {
	return AppendUint32(order, dst, math.Float32bits(value))
}

// AppendFloat64 appends an IEEE-754 double precision value.
func AppendFloat64(order binary.ByteOrder, dst []byte, value float64) []byte {
	return AppendUint64(order, dst, math.Float64bits(value))
}

// Reader walks a byte slice and decodes fixed-width values.
// Every read is bounds checked; the first short read is sticky and
// reported by Err, so a decoder can issue a run of reads and check once.
type Reader struct {
	order binary.ByteOrder
	data  []byte
	off   int
	err   error
}

// NewReader returns a Reader over data using the wire byte order.
func NewReader(data []byte) *Reader {
	return &Reader{order: Order, data: data}
}

// Err returns the first error encountered.
func (r *Reader) Err() error {
	return r.err
}

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int {
	return r.off
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.off
}

// Rest returns the unread bytes without consuming them.
func (r *Reader) Rest() []byte {
	if r.off >= len(r.data) {
		return nil
	}
	return r.data[r.off:]
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Len() < n {
		r.err = fmt.Errorf("need %d bytes at offset %d, have %d", n, r.off, r.Len())
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// Uint8 reads one byte.
func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Uint16 reads a 16-bit value.
func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return r.order.Uint16(b)
}

// Uint32 reads a 32-bit value.
func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return r.order.Uint32(b)
}

// Uint64 reads a 64-bit value.
func (r *Reader) Uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return r.order.Uint64(b)
}

// Bytes reads n bytes. The returned slice aliases the input.
func (r *Reader) Bytes(n int) []byte {
	return r.take(n)
}

// Skip discards n bytes.
func (r *Reader) Skip(n int) {
	r.take(n)
}
