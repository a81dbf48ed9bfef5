package protocol

import (
	"fmt"

	"github.com/tturner/etherip/internal/cip/codec"
	"github.com/tturner/etherip/internal/cip/epath"
	"github.com/tturner/etherip/internal/cip/spec"
)

// MaxMultipleServiceCount bounds the number of embedded services in one packet.
const MaxMultipleServiceCount = 200

// BuildMultipleServiceRequest wraps requests in a Multiple Service Packet
// addressed to the Message Router.
func BuildMultipleServiceRequest(requests []CIPRequest) (CIPRequest, error) {
	payload, err := BuildMultipleServiceRequestPayload(requests)
	if err != nil {
		return CIPRequest{}, err
	}
	return CIPRequest{
		Service: spec.CIPServiceMultipleService,
		Path:    epath.Logical(spec.CIPClassMessageRouter, 1),
		Payload: payload,
	}, nil
}

// BuildMultipleServiceRequestPayload encodes embedded CIP requests for service 0x0A.
func BuildMultipleServiceRequestPayload(requests []CIPRequest) ([]byte, error) {
	encoded := make([][]byte, len(requests))
	for i, req := range requests {
		encoded[i] = EncodeCIPRequest(req)
	}
	return buildMultipleServicePayload(encoded)
}

// ParseMultipleServiceRequestPayload decodes embedded CIP requests from a 0x0A payload.
func ParseMultipleServiceRequestPayload(payload []byte) ([]CIPRequest, error) {
	return parseMultipleServicePayload(payload, DecodeCIPRequest)
}

// BuildMultipleServiceResponsePayload encodes embedded CIP responses for service 0x0A.
func BuildMultipleServiceResponsePayload(responses []CIPResponse) ([]byte, error) {
	encoded := make([][]byte, len(responses))
	for i, resp := range responses {
		encoded[i] = EncodeCIPResponse(resp)
	}
	return buildMultipleServicePayload(encoded)
}

// ParseMultipleServiceResponsePayload decodes embedded CIP responses from a
// 0x0A reply. Each embedded response carries its own status; the outer
// status is 0x1E when at least one of them failed.
func ParseMultipleServiceResponsePayload(payload []byte) ([]CIPResponse, error) {
	return parseMultipleServicePayload(payload, DecodeCIPResponse)
}

func buildMultipleServicePayload(encoded [][]byte) ([]byte, error) {
	count := len(encoded)
	if count == 0 {
		return nil, fmt.Errorf("multiple service payload requires at least one service")
	}
	if count > MaxMultipleServiceCount {
		return nil, fmt.Errorf("multiple service payload has %d services (maximum %d)", count, MaxMultipleServiceCount)
	}
	order := codec.Order
	headerLen := 2 + 2*count
	payload := make([]byte, headerLen)
	codec.PutUint16(order, payload[0:2], uint16(count))

	offset := headerLen
	for i, body := range encoded {
		if offset > 0xFFFF {
			return nil, fmt.Errorf("multiple service payload too large")
		}
		start := 2 + i*2
		codec.PutUint16(order, payload[start:start+2], uint16(offset))
		payload = append(payload, body...)
		offset += len(body)
	}
	return payload, nil
}

func parseMultipleServicePayload[T any](payload []byte, decode func([]byte) (T, error)) ([]T, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("multiple service payload too short")
	}
	order := codec.Order
	count := int(order.Uint16(payload[0:2]))
	if count == 0 {
		return nil, fmt.Errorf("multiple service payload missing services")
	}
	headerLen := 2 + 2*count
	if len(payload) < headerLen {
		return nil, fmt.Errorf("multiple service payload header too short")
	}

	offsets := make([]int, count)
	for i := 0; i < count; i++ {
		start := 2 + i*2
		offsets[i] = int(order.Uint16(payload[start : start+2]))
	}

	results := make([]T, 0, count)
	for i := 0; i < count; i++ {
		start := offsets[i]
		if start < headerLen || start >= len(payload) {
			return nil, fmt.Errorf("multiple service offset %d out of range", start)
		}
		end := len(payload)
		if i+1 < count {
			end = offsets[i+1]
			if end <= start || end > len(payload) {
				return nil, fmt.Errorf("multiple service offsets out of order")
			}
		}
		decoded, err := decode(payload[start:end])
		if err != nil {
			return nil, fmt.Errorf("decode embedded service %d: %w", i, err)
		}
		results = append(results, decoded)
	}
	return results, nil
}
