package server

// Simulated Logix controller speaking EtherNet/IP explicit messaging.

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tturner/etherip/internal/config"
	"github.com/tturner/etherip/internal/enip"
	"github.com/tturner/etherip/internal/logging"
)

// Server represents a simulated EtherNet/IP controller.
type Server struct {
	config      *config.ServerConfig
	logger      *logging.Logger
	identity    enip.IdentityRecord
	tags        *tagStore
	tcpListener *net.TCPListener
	udpListener *net.UDPConn

	sessionsMu    sync.Mutex
	sessions      map[uint32]*Session
	conns         map[*net.TCPConn]struct{}
	nextSessionID uint32

	faults faultPolicy
	stats  counters

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Session represents an active EtherNet/IP session.
type Session struct {
	ID        uint32
	Conn      *net.TCPConn
	CreatedAt time.Time
}

// Stats is a snapshot of server activity.
type Stats struct {
	Connections uint64
	Requests    uint64
	CIPRequests uint64
	Errors      uint64
	Sessions    int
}

type counters struct {
	connections atomic.Uint64
	requests    atomic.Uint64
	cipRequests atomic.Uint64
	errors      atomic.Uint64
}

// NewServer builds a server from cfg. cfg is expected to have passed
// config.ValidateServerConfig.
func NewServer(cfg *config.ServerConfig, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server config is nil")
	}
	tags, err := newTagStore(cfg.Tags)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:        cfg,
		logger:        logging.OrDiscard(logger),
		tags:          tags,
		sessions:      make(map[uint32]*Session),
		conns:         make(map[*net.TCPConn]struct{}),
		nextSessionID: 0x00010001,
		faults:        resolveFaultPolicy(cfg.Faults),
		ctx:           ctx,
		cancel:        cancel,
	}
	s.identity = enip.IdentityRecord{
		ProtocolVersion: enip.ProtocolVersion,
		VendorID:        cfg.Server.IdentityVendorID,
		DeviceType:      cfg.Server.IdentityDeviceType,
		ProductCode:     cfg.Server.IdentityProductCode,
		RevisionMajor:   cfg.Server.IdentityRevMajor,
		RevisionMinor:   cfg.Server.IdentityRevMinor,
		Status:          cfg.Server.IdentityStatus,
		SerialNumber:    cfg.Server.IdentitySerial,
		ProductName:     cfg.Server.IdentityProductName,
		State:           0x03,
	}
	return s, nil
}

// Start binds the listeners and serves in the background. A TCP port of
// 0 picks a free port; see Addr.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Server.ListenIP, strconv.Itoa(s.config.Server.TCPPort))
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return fmt.Errorf("resolve TCP address: %w", err)
	}
	s.tcpListener, err = net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("listen TCP: %w", err)
	}
	bound := s.Addr()
	s.identity.IP = bound.IP
	s.identity.Port = uint16(bound.Port)
	s.logger.Info("TCP server listening on %s", bound)

	if s.config.Server.EnableUDP {
		s.udpListener, err = net.ListenUDP("udp", &net.UDPAddr{IP: bound.IP, Port: bound.Port})
		if err != nil {
			s.tcpListener.Close()
			return fmt.Errorf("listen UDP: %w", err)
		}
		s.logger.Info("UDP discovery listening on %s", s.udpListener.LocalAddr())
		s.wg.Add(1)
		go s.handleUDP()
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound TCP address after Start.
func (s *Server) Addr() *net.TCPAddr {
	if s.tcpListener == nil {
		return nil
	}
	if addr, ok := s.tcpListener.Addr().(*net.TCPAddr); ok {
		return addr
	}
	return nil
}

// Stop closes the listeners and every open connection, then waits for
// the handlers to return.
func (s *Server) Stop() error {
	s.cancel()
	if s.tcpListener != nil {
		s.tcpListener.Close()
	}
	if s.udpListener != nil {
		s.udpListener.Close()
	}

	s.sessionsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.sessions = make(map[uint32]*Session)
	s.sessionsMu.Unlock()

	s.wg.Wait()
	s.logger.Info("Server stopped")
	return nil
}

// Stats returns activity counters.
func (s *Server) Stats() Stats {
	s.sessionsMu.Lock()
	n := len(s.sessions)
	s.sessionsMu.Unlock()
	return Stats{
		Connections: s.stats.connections.Load(),
		Requests:    s.stats.requests.Load(),
		CIPRequests: s.stats.cipRequests.Load(),
		Errors:      s.stats.errors.Load(),
		Sessions:    n,
	}
}

// Identity returns the identity the server reports.
func (s *Server) Identity() enip.IdentityRecord {
	return s.identity
}
