package protocol

import (
	"fmt"

	"github.com/tturner/etherip/internal/cip/codec"
	"github.com/tturner/etherip/internal/cip/epath"
	"github.com/tturner/etherip/internal/cip/spec"
)

// Unconnected Send timing: priority/tick time and timeout ticks.
// 0x0A gives 1024 ms ticks; 0x0E ticks is about 14 s for the target.
const (
	UnconnectedPriorityTick uint8 = 0x0A
	UnconnectedTimeoutTicks uint8 = 0x0E
)

// BackplaneRoute returns the route path to a controller in slot.
func BackplaneRoute(slot uint8) epath.Path {
	return epath.Port(spec.BackplanePort, slot)
}

// WrapUnconnectedSend embeds req in an Unconnected Send to the Connection
// Manager, routed along route.
func WrapUnconnectedSend(req CIPRequest, route epath.Path) CIPRequest {
	embedded := EncodeCIPRequest(req)
	order := codec.Order
	payload := []byte{UnconnectedPriorityTick, UnconnectedTimeoutTicks}
	payload = codec.AppendUint16(order, payload, uint16(len(embedded)))
	payload = append(payload, embedded...)
	if len(embedded)%2 != 0 {
		payload = append(payload, 0x00)
	}
	payload = append(payload, route.Words(), 0x00)
	payload = append(payload, route...)
	return CIPRequest{
		Service: spec.CIPServiceUnconnectedSend,
		Path:    epath.Logical(spec.CIPClassConnectionManager, 1),
		Payload: payload,
	}
}

// ParseUnconnectedSendRequestPayload extracts the embedded request and
// route path.
func ParseUnconnectedSendRequestPayload(payload []byte) (CIPRequest, epath.Path, error) {
	r := codec.NewReader(payload)
	r.Skip(2)
	size := int(r.Uint16())
	embedded := r.Bytes(size)
	if size%2 != 0 {
		r.Skip(1)
	}
	routeWords := int(r.Uint8())
	r.Skip(1)
	route := r.Bytes(routeWords * 2)
	if r.Err() != nil {
		return CIPRequest{}, nil, fmt.Errorf("unconnected send payload truncated: %w", r.Err())
	}
	req, err := DecodeCIPRequest(embedded)
	if err != nil {
		return CIPRequest{}, nil, fmt.Errorf("unconnected send embedded request: %w", err)
	}
	return req, append(epath.Path(nil), route...), nil
}
