package server

import (
	stderrors "errors"
	"io"
	"net"
	"time"

	"github.com/tturner/etherip/internal/enip"
)

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.tcpListener.AcceptTCP()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error("Accept error: %v", err)
			continue
		}

		s.sessionsMu.Lock()
		s.conns[conn] = struct{}{}
		s.sessionsMu.Unlock()
		s.stats.connections.Add(1)

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn *net.TCPConn) {
	defer s.wg.Done()
	defer func() {
		s.sessionsMu.Lock()
		for id, session := range s.sessions {
			if session.Conn == conn {
				delete(s.sessions, id)
			}
		}
		delete(s.conns, conn)
		s.sessionsMu.Unlock()
		conn.Close()
	}()

	remoteAddr := conn.RemoteAddr().String()
	s.logger.Info("New connection from %s", remoteAddr)
	idle := time.Duration(s.config.Server.ConnectionTimeoutMs) * time.Millisecond

	for {
		if s.ctx.Err() != nil {
			return
		}
		if idle > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(idle))
		}

		frame, err := enip.ReadRawFrame(conn)
		if err != nil {
			var netErr net.Error
			switch {
			case stderrors.Is(err, io.EOF):
				s.logger.Info("Connection closed by client: %s", remoteAddr)
			case stderrors.As(err, &netErr) && netErr.Timeout():
				s.logger.Info("Closing idle connection from %s", remoteAddr)
			case s.ctx.Err() != nil:
			default:
				s.stats.errors.Add(1)
				s.logger.Error("Read error from %s: %v", remoteAddr, err)
			}
			return
		}

		encap, err := enip.DecodeHeader(frame)
		if err != nil {
			s.stats.errors.Add(1)
			s.logger.Error("Bad frame from %s: %v", remoteAddr, err)
			return
		}
		if len(frame) > enip.HeaderSize {
			encap.Data = frame[enip.HeaderSize:]
		}
		s.logger.LogHex("RX "+remoteAddr, frame)

		resp, keepOpen := s.handleENIPCommand(encap, conn)
		if resp != nil {
			if err := s.writeResponse(conn, remoteAddr, resp); err != nil {
				return
			}
		}
		if !keepOpen {
			return
		}
	}
}

// handleUDP answers ListIdentity broadcasts.
func (s *Server) handleUDP() {
	defer s.wg.Done()

	buf := make([]byte, 1500)
	for {
		n, addr, err := s.udpListener.ReadFromUDP(buf)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error("UDP read error: %v", err)
			continue
		}
		encap, err := enip.DecodeENIP(buf[:n])
		if err != nil || encap.Command != enip.ENIPCommandListIdentity {
			s.logger.Debug("Ignoring UDP datagram from %s", addr)
			continue
		}
		s.stats.requests.Add(1)
		if _, err := s.udpListener.WriteToUDP(s.handleListIdentity(encap), addr); err != nil {
			s.logger.Error("UDP reply to %s: %v", addr, err)
		}
	}
}
