package protocol

// CIP (Common Industrial Protocol) Message Router encoding and decoding.

import (
	"fmt"

	"github.com/tturner/etherip/internal/cip/codec"
	"github.com/tturner/etherip/internal/cip/epath"
	"github.com/tturner/etherip/internal/cip/spec"
	"github.com/tturner/etherip/internal/errors"
)

// CIPRequest represents a CIP service request.
type CIPRequest struct {
	Service spec.ServiceCode
	Path    epath.Path
	Payload []byte // raw CIP request body (no service/path)
}

// CIPResponse represents a CIP service response.
type CIPResponse struct {
	Service   spec.ServiceCode
	Status    uint8    // general status
	ExtStatus []uint16 // additional status words, may be empty
	Payload   []byte   // reply data, kept for nonzero status too
}

// EncodeCIPRequest encodes a CIP request: service, path size in words,
// padded path, request data.
func EncodeCIPRequest(req CIPRequest) []byte {
	path := req.Path
	data := make([]byte, 0, 2+len(path)+1+len(req.Payload))
	data = append(data, uint8(req.Service))
	data = append(data, path.Words())
	data = append(data, path...)
	if len(path)%2 != 0 {
		data = append(data, 0x00)
	}
	return append(data, req.Payload...)
}

// DecodeCIPRequest decodes a CIP request from bytes.
func DecodeCIPRequest(data []byte) (CIPRequest, error) {
	r := codec.NewReader(data)
	req := CIPRequest{Service: spec.ServiceCode(r.Uint8())}
	words := int(r.Uint8())
	path := r.Bytes(words * 2)
	if r.Err() != nil {
		return CIPRequest{}, fmt.Errorf("decode CIP request: %w", r.Err())
	}
	req.Path = append(epath.Path(nil), path...)
	if rest := r.Rest(); len(rest) > 0 {
		req.Payload = append([]byte(nil), rest...)
	}
	return req, nil
}

// EncodeCIPResponse encodes a CIP response: service, reserved, general
// status, extended status size in words, extended status, reply data.
func EncodeCIPResponse(resp CIPResponse) []byte {
	data := make([]byte, 0, 4+2*len(resp.ExtStatus)+len(resp.Payload))
	data = append(data, uint8(resp.Service), 0x00, resp.Status, uint8(len(resp.ExtStatus)))
	for _, ext := range resp.ExtStatus {
		data = codec.AppendUint16(codec.Order, data, ext)
	}
	return append(data, resp.Payload...)
}

// DecodeCIPResponse decodes a CIP response from bytes. The reply bit must
// be set.
func DecodeCIPResponse(data []byte) (CIPResponse, error) {
	if len(data) < 4 {
		return CIPResponse{}, &errors.ProtocolError{
			Reason: fmt.Sprintf("CIP response too short: %d bytes (minimum 4: service + reserved + status + ext size)", len(data)),
		}
	}
	r := codec.NewReader(data)
	resp := CIPResponse{Service: spec.ServiceCode(r.Uint8())}
	if !resp.Service.IsReply() {
		return CIPResponse{}, &errors.ProtocolError{
			Reason: fmt.Sprintf("CIP response service 0x%02X lacks the reply bit", uint8(resp.Service)),
		}
	}
	r.Skip(1)
	resp.Status = r.Uint8()
	extWords := int(r.Uint8())
	if extWords > 0 {
		resp.ExtStatus = make([]uint16, extWords)
		for i := range resp.ExtStatus {
			resp.ExtStatus[i] = r.Uint16()
		}
	}
	if r.Err() != nil {
		return CIPResponse{}, &errors.ProtocolError{Reason: fmt.Sprintf("CIP extended status truncated: %v", r.Err())}
	}
	if rest := r.Rest(); len(rest) > 0 {
		resp.Payload = append([]byte(nil), rest...)
	}
	return resp, nil
}

// Err returns a *CIPStatusError when the general status is nonzero.
func (resp CIPResponse) Err() error {
	if resp.Status == 0 {
		return nil
	}
	return errors.NewCIPStatusError(resp.Service.Request(), resp.Status, resp.ExtStatus)
}

// CheckReply verifies that resp answers a request for service. A routed
// request may also be answered by an Unconnected Send failure reply, which
// carries the routing status.
func CheckReply(service spec.ServiceCode, resp CIPResponse) error {
	switch resp.Service {
	case service.Reply():
		return resp.Err()
	case spec.CIPServiceUnconnectedSend.Reply():
		if resp.Status != 0 {
			return resp.Err()
		}
	}
	return &errors.ProtocolError{
		Reason: fmt.Sprintf("reply service 0x%02X does not answer request 0x%02X (%s)",
			uint8(resp.Service), uint8(service), spec.ServiceName(service)),
	}
}
