package server

import (
	"net"
	"time"

	"github.com/tturner/etherip/internal/cip/codec"
	"github.com/tturner/etherip/internal/cip/protocol"
	"github.com/tturner/etherip/internal/enip"
)

// handleENIPCommand returns the reply frame, or nil for none, and whether
// the connection stays open.
func (s *Server) handleENIPCommand(encap enip.ENIPEncapsulation, conn *net.TCPConn) ([]byte, bool) {
	s.stats.requests.Add(1)
	switch encap.Command {
	case enip.ENIPCommandRegisterSession:
		return s.handleRegisterSession(encap, conn), true

	case enip.ENIPCommandUnregisterSession:
		s.handleUnregisterSession(encap)
		return nil, false

	case enip.ENIPCommandSendRRData:
		return s.handleSendRRData(encap), true

	case enip.ENIPCommandListIdentity:
		return s.handleListIdentity(encap), true

	case enip.ENIPCommandListServices:
		return s.handleListServices(encap), true

	case enip.ENIPCommandNOP:
		return nil, true

	default:
		s.stats.errors.Add(1)
		s.logger.Error("Unsupported ENIP command 0x%04X from %s", encap.Command, conn.RemoteAddr())
		return s.buildErrorResponse(encap, enip.ENIPStatusInvalidCommand), true
	}
}

func (s *Server) handleRegisterSession(encap enip.ENIPEncapsulation, conn *net.TCPConn) []byte {
	if len(encap.Data) != 4 {
		return s.buildErrorResponse(encap, enip.ENIPStatusInvalidLength)
	}
	if version := codec.Order.Uint16(encap.Data[0:2]); version != enip.ProtocolVersion {
		s.logger.Error("RegisterSession with protocol version %d rejected", version)
		return s.buildErrorResponse(encap, enip.ENIPStatusUnsupportedProtocol)
	}

	s.sessionsMu.Lock()
	sessionID := s.nextSessionID
	s.nextSessionID++
	s.sessions[sessionID] = &Session{ID: sessionID, Conn: conn, CreatedAt: time.Now()}
	s.sessionsMu.Unlock()

	s.logger.Info("Registered session 0x%08X", sessionID)

	return enip.EncodeENIP(enip.ENIPEncapsulation{
		Command:       enip.ENIPCommandRegisterSession,
		SessionID:     sessionID,
		Status:        enip.ENIPStatusSuccess,
		SenderContext: encap.SenderContext,
		Data:          encap.Data,
	})
}

// handleUnregisterSession drops the session. The device sends no reply
// and closes the connection.
func (s *Server) handleUnregisterSession(encap enip.ENIPEncapsulation) {
	s.sessionsMu.Lock()
	delete(s.sessions, encap.SessionID)
	s.sessionsMu.Unlock()
	s.logger.Info("Unregistered session 0x%08X", encap.SessionID)
}

func (s *Server) validSession(id uint32) bool {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

func (s *Server) handleSendRRData(encap enip.ENIPEncapsulation) []byte {
	if !s.validSession(encap.SessionID) {
		s.stats.errors.Add(1)
		return s.buildErrorResponse(encap, enip.ENIPStatusInvalidSessionHandle)
	}
	cipData, err := enip.ParseSendRRDataPayload(encap.Data)
	if err != nil {
		s.stats.errors.Add(1)
		s.logger.Error("SendRRData from session 0x%08X: %v", encap.SessionID, err)
		return s.buildErrorResponse(encap, enip.ENIPStatusIncorrectData)
	}
	req, err := protocol.DecodeCIPRequest(cipData)
	if err != nil {
		s.stats.errors.Add(1)
		s.logger.Error("SendRRData from session 0x%08X: %v", encap.SessionID, err)
		return s.buildErrorResponse(encap, enip.ENIPStatusIncorrectData)
	}

	resp := s.handleCIPRequest(req, true)
	return s.buildCIPResponse(encap, protocol.EncodeCIPResponse(resp))
}

func (s *Server) handleListIdentity(encap enip.ENIPEncapsulation) []byte {
	items := []enip.CPFItem{{TypeID: enip.CPFItemListIdentity, Data: enip.EncodeIdentityItem(s.identity)}}
	return enip.EncodeENIP(enip.ENIPEncapsulation{
		Command:       enip.ENIPCommandListIdentity,
		Status:        enip.ENIPStatusSuccess,
		SenderContext: encap.SenderContext,
		Data:          enip.EncodeCPFItems(items),
	})
}

func (s *Server) handleListServices(encap enip.ENIPEncapsulation) []byte {
	items := make([]enip.CPFItem, 0, len(s.config.Services))
	for _, svc := range s.config.Services {
		items = append(items, enip.EncodeServiceItem(enip.ServiceRecord{
			TypeCode:     enip.CPFItemListServices,
			Version:      svc.Version,
			Capabilities: svc.Capabilities,
			Name:         svc.Name,
		}))
	}
	return enip.EncodeENIP(enip.ENIPEncapsulation{
		Command:       enip.ENIPCommandListServices,
		Status:        enip.ENIPStatusSuccess,
		SenderContext: encap.SenderContext,
		Data:          enip.EncodeCPFItems(items),
	})
}

func (s *Server) buildCIPResponse(encap enip.ENIPEncapsulation, cipRespData []byte) []byte {
	return enip.EncodeENIP(enip.ENIPEncapsulation{
		Command:       enip.ENIPCommandSendRRData,
		SessionID:     encap.SessionID,
		Status:        enip.ENIPStatusSuccess,
		SenderContext: encap.SenderContext,
		Data:          enip.BuildSendRRDataPayload(0, cipRespData),
	})
}

func (s *Server) buildErrorResponse(encap enip.ENIPEncapsulation, status uint32) []byte {
	return enip.EncodeENIP(enip.ENIPEncapsulation{
		Command:       encap.Command,
		SessionID:     encap.SessionID,
		Status:        status,
		SenderContext: encap.SenderContext,
	})
}
