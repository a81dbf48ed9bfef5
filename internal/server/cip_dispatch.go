package server

import (
	"bytes"

	"github.com/tturner/etherip/internal/cip/epath"
	"github.com/tturner/etherip/internal/cip/protocol"
	"github.com/tturner/etherip/internal/cip/spec"
	"github.com/tturner/etherip/internal/enip"
)

// General and extended status codes returned by the simulator.
const (
	statusSuccess         uint8  = 0x00
	statusConnFailure     uint8  = 0x01
	statusPathSegment     uint8  = 0x04
	statusPathUnknown     uint8  = 0x05
	statusNotSupported    uint8  = 0x08
	statusPrivilege       uint8  = 0x0F
	statusNotEnoughData   uint8  = 0x13
	statusEmbeddedError   uint8  = 0x1E
	statusVendor          uint8  = 0xFF
	extLinkAddressInvalid uint16 = 0x0312
	extOutOfRange         uint16 = 0x2105
	extTypeMismatch       uint16 = 0x2107
)

func statusReply(service spec.ServiceCode, status uint8, ext ...uint16) protocol.CIPResponse {
	return protocol.CIPResponse{Service: service.Reply(), Status: status, ExtStatus: ext}
}

// handleCIPRequest runs one Message Router request. Unconnected Send and
// Multiple Service Packet are only honoured at the top level.
func (s *Server) handleCIPRequest(req protocol.CIPRequest, top bool) protocol.CIPResponse {
	s.stats.cipRequests.Add(1)
	s.logger.Debug("CIP request: service=0x%02X (%s) path=% X", uint8(req.Service), spec.ServiceName(req.Service), []byte(req.Path))

	var resp protocol.CIPResponse
	switch {
	case req.Service == spec.CIPServiceUnconnectedSend && top && isConnectionManager(req.Path):
		resp = s.handleUnconnectedSend(req)
	case req.Service == spec.CIPServiceMultipleService && top:
		resp = s.handleMultipleService(req)
	case s.faults.isForced():
		resp, _ = s.faults.forcedReply(req.Service)
	case req.Service == spec.CIPServiceReadTag:
		resp = s.handleReadTag(req)
	case req.Service == spec.CIPServiceWriteTag:
		resp = s.handleWriteTag(req)
	case req.Service == spec.CIPServiceGetAttributeAll:
		resp = s.handleGetAttributesAll(req)
	default:
		resp = statusReply(req.Service, statusNotSupported)
	}
	if resp.Status != statusSuccess {
		s.logger.Verbose("CIP %s replied status 0x%02X", spec.ServiceName(req.Service), resp.Status)
	}
	return resp
}

func isConnectionManager(path epath.Path) bool {
	lp, err := epath.DecodeLogical(path)
	return err == nil && lp.Class == spec.CIPClassConnectionManager && lp.Instance == 1
}

// handleUnconnectedSend delivers the embedded request to the controller
// slot. A successful reply is the embedded reply itself; routing failures
// come back as an Unconnected Send reply.
func (s *Server) handleUnconnectedSend(req protocol.CIPRequest) protocol.CIPResponse {
	embedded, route, err := protocol.ParseUnconnectedSendRequestPayload(req.Payload)
	if err != nil {
		s.logger.Error("Unconnected Send: %v", err)
		return statusReply(req.Service, statusNotEnoughData)
	}
	want := protocol.BackplaneRoute(s.config.Server.ControllerSlot)
	if !bytes.Equal(route, want) {
		s.logger.Verbose("Unconnected Send route % X does not reach slot %d", []byte(route), s.config.Server.ControllerSlot)
		return statusReply(req.Service, statusConnFailure, extLinkAddressInvalid)
	}
	return s.handleCIPRequest(embedded, false)
}

func (s *Server) handleMultipleService(req protocol.CIPRequest) protocol.CIPResponse {
	if lp, err := epath.DecodeLogical(req.Path); err != nil || lp.Class != spec.CIPClassMessageRouter {
		return statusReply(req.Service, statusPathUnknown)
	}
	embedded, err := protocol.ParseMultipleServiceRequestPayload(req.Payload)
	if err != nil {
		s.logger.Error("Multiple Service Packet: %v", err)
		return statusReply(req.Service, statusNotEnoughData)
	}
	replies := make([]protocol.CIPResponse, len(embedded))
	status := statusSuccess
	for i, sub := range embedded {
		replies[i] = s.handleCIPRequest(sub, false)
		if replies[i].Status != statusSuccess {
			status = statusEmbeddedError
		}
	}
	payload, err := protocol.BuildMultipleServiceResponsePayload(replies)
	if err != nil {
		s.logger.Error("Multiple Service Packet reply: %v", err)
		return statusReply(req.Service, statusNotEnoughData)
	}
	return protocol.CIPResponse{Service: req.Service.Reply(), Status: status, Payload: payload}
}

func (s *Server) handleGetAttributesAll(req protocol.CIPRequest) protocol.CIPResponse {
	lp, err := epath.DecodeLogical(req.Path)
	if err != nil {
		return statusReply(req.Service, statusPathSegment)
	}
	if lp.Class != spec.CIPClassIdentity || lp.Instance != 1 {
		return statusReply(req.Service, statusPathUnknown)
	}
	return protocol.CIPResponse{
		Service: req.Service.Reply(),
		Payload: enip.EncodeIdentityAttributes(s.identity),
	}
}

func (s *Server) handleReadTag(req protocol.CIPRequest) protocol.CIPResponse {
	sym, err := epath.DecodeSymbolic(req.Path)
	if err != nil {
		return statusReply(req.Service, statusPathSegment)
	}
	count, err := protocol.DecodeReadTagRequest(req.Payload)
	if err != nil {
		return statusReply(req.Service, statusNotEnoughData)
	}
	value, status, ext := s.tags.read(sym, count)
	if status != statusSuccess {
		return statusReply(req.Service, status, ext...)
	}
	return protocol.CIPResponse{
		Service: req.Service.Reply(),
		Payload: protocol.EncodeReadTagReply(value),
	}
}

func (s *Server) handleWriteTag(req protocol.CIPRequest) protocol.CIPResponse {
	sym, err := epath.DecodeSymbolic(req.Path)
	if err != nil {
		return statusReply(req.Service, statusPathSegment)
	}
	value, err := protocol.DecodeWriteTagRequest(req.Payload)
	if err != nil {
		s.logger.Verbose("Write %s: %v", sym, err)
		return statusReply(req.Service, statusVendor, extTypeMismatch)
	}
	status, ext := s.tags.write(sym, value)
	if status != statusSuccess {
		return statusReply(req.Service, status, ext...)
	}
	s.logger.Verbose("Wrote %s = %s", sym, value)
	return protocol.CIPResponse{Service: req.Service.Reply()}
}
