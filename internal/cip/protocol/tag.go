package protocol

import (
	"fmt"

	"github.com/tturner/etherip/internal/cip/codec"
	"github.com/tturner/etherip/internal/cip/epath"
	"github.com/tturner/etherip/internal/cip/spec"
	"github.com/tturner/etherip/internal/cip/types"
	"github.com/tturner/etherip/internal/errors"
)

// NewReadTagRequest builds a Read Tag request for count elements at path.
func NewReadTagRequest(path epath.Path, count uint16) (CIPRequest, error) {
	if count == 0 {
		return CIPRequest{}, fmt.Errorf("%w: element count must be at least 1", errors.ErrInvalidValue)
	}
	if len(path) == 0 {
		return CIPRequest{}, fmt.Errorf("%w: empty tag path", errors.ErrInvalidTagName)
	}
	return CIPRequest{
		Service: spec.CIPServiceReadTag,
		Path:    path,
		Payload: codec.AppendUint16(codec.Order, nil, count),
	}, nil
}

// NewWriteTagRequest builds a Write Tag request. Field order is type code,
// (structure handle,) element count, element bytes.
func NewWriteTagRequest(path epath.Path, value types.Value) (CIPRequest, error) {
	if len(path) == 0 {
		return CIPRequest{}, fmt.Errorf("%w: empty tag path", errors.ErrInvalidTagName)
	}
	if value.IsZero() {
		return CIPRequest{}, fmt.Errorf("%w: write value is empty", errors.ErrInvalidValue)
	}
	if value.Count() > 0xFFFF {
		return CIPRequest{}, fmt.Errorf("%w: %d elements exceeds 65535", errors.ErrInvalidValue, value.Count())
	}
	payload := codec.AppendUint16(codec.Order, nil, uint16(value.Type()))
	data := value.Encode()
	if value.Type() == types.CIPTypeSTRUCT {
		payload = append(payload, data[:2]...)
		data = data[2:]
	}
	payload = codec.AppendUint16(codec.Order, payload, uint16(value.Count()))
	payload = append(payload, data...)
	return CIPRequest{
		Service: spec.CIPServiceWriteTag,
		Path:    path,
		Payload: payload,
	}, nil
}

// DecodeReadTagReply decodes the data of a successful Read Tag reply:
// type code then element bytes. Extra elements beyond requested are
// dropped; fewer is a type mismatch.
func DecodeReadTagReply(payload []byte, requested uint16) (types.Value, error) {
	r := codec.NewReader(payload)
	dt := types.CIPDataType(r.Uint16())
	if r.Err() != nil {
		return types.Value{}, fmt.Errorf("%w: Read Tag reply has no type code", errors.ErrTypeMismatch)
	}
	data := r.Rest()
	if w := dt.Width(); w > 0 && requested > 0 {
		want := int(requested) * w
		if len(data) < want {
			return types.Value{}, fmt.Errorf("%w: reply carries %d bytes of %s, %d elements need %d",
				errors.ErrTypeMismatch, len(data), dt, requested, want)
		}
		data = data[:want]
	}
	return types.Decode(dt, data)
}

// DecodeReadTagRequest returns the element count of a Read Tag request body.
func DecodeReadTagRequest(payload []byte) (uint16, error) {
	r := codec.NewReader(payload)
	count := r.Uint16()
	if r.Err() != nil {
		return 0, fmt.Errorf("read tag request missing element count")
	}
	return count, nil
}

// DecodeWriteTagRequest decodes a Write Tag request body into its value.
func DecodeWriteTagRequest(payload []byte) (types.Value, error) {
	r := codec.NewReader(payload)
	dt := types.CIPDataType(r.Uint16())
	var handle []byte
	if dt == types.CIPTypeSTRUCT {
		handle = r.Bytes(2)
	}
	count := int(r.Uint16())
	if r.Err() != nil {
		return types.Value{}, fmt.Errorf("write tag request header truncated: %w", r.Err())
	}
	data := r.Rest()
	if handle != nil {
		data = append(append([]byte(nil), handle...), data...)
	}
	v, err := types.Decode(dt, data)
	if err != nil {
		return types.Value{}, err
	}
	if v.Count() != count {
		return types.Value{}, fmt.Errorf("%w: element count %d does not match %d elements of data", errors.ErrTypeMismatch, count, v.Count())
	}
	return v, nil
}

// EncodeReadTagReply encodes the reply data of a successful Read Tag.
func EncodeReadTagReply(value types.Value) []byte {
	out := codec.AppendUint16(codec.Order, nil, uint16(value.Type()))
	return append(out, value.Encode()...)
}
