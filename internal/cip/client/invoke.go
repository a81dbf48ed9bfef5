package client

import (
	"context"
	"fmt"
	"time"

	"github.com/tturner/etherip/internal/cip/protocol"
	"github.com/tturner/etherip/internal/cip/spec"
	"github.com/tturner/etherip/internal/enip"
	"github.com/tturner/etherip/internal/errors"
)

// route describes where a CIP request is delivered.
type route struct {
	routed bool
	slot   uint8
}

func (s *Session) defaultRoute() route {
	return route{routed: s.opts.Routed, slot: s.opts.Slot}
}

func (r route) String() string {
	if !r.routed {
		return "direct"
	}
	return fmt.Sprintf("slot %d", r.slot)
}

// roundTrip carries one CIP request in SendRRData and returns the decoded
// reply without judging its status. Caller holds s.mu.
func (s *Session) roundTrip(ctx context.Context, op string, req protocol.CIPRequest, rt route) (protocol.CIPResponse, error) {
	wire := req
	if rt.routed {
		wire = protocol.WrapUnconnectedSend(req, protocol.BackplaneRoute(rt.slot))
	}

	senderContext := s.nextContext()
	frame := enip.BuildSendRRData(s.handle, senderContext, s.cpfTimeout(), protocol.EncodeCIPRequest(wire))
	reply, err := s.exchange(ctx, op, frame, senderContext, enip.ENIPCommandSendRRData)
	if err != nil {
		return protocol.CIPResponse{}, err
	}

	cipData, err := enip.ParseSendRRDataPayload(reply.Data)
	if err != nil {
		return protocol.CIPResponse{}, s.fail(err)
	}
	resp, err := protocol.DecodeCIPResponse(cipData)
	if err != nil {
		return protocol.CIPResponse{}, s.fail(err)
	}
	return resp, nil
}

// invoke sends req and checks that the reply answers it with status 0.
// CIP status errors leave the session open; anything else closes it.
func (s *Session) invoke(ctx context.Context, op, target string, req protocol.CIPRequest, rt route) (protocol.CIPResponse, error) {
	start := time.Now()
	resp, err := s.roundTrip(ctx, op, req, rt)
	if err == nil {
		err = protocol.CheckReply(req.Service, resp)
		if err != nil && errors.IsFatal(err) {
			err = s.fail(err)
		}
	}
	s.logger.LogOperation(op, target, spec.ServiceName(req.Service), err == nil, time.Since(start), resp.Status, err)
	return resp, err
}

// cpfTimeout is the SendRRData timeout field, in seconds.
func (s *Session) cpfTimeout() uint16 {
	secs := s.opts.Timeout / time.Second
	if secs < 1 {
		return 1
	}
	if secs > 0xFFFF {
		return 0xFFFF
	}
	return uint16(secs)
}
