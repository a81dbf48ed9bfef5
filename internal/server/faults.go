package server

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/tturner/etherip/internal/cip/protocol"
	"github.com/tturner/etherip/internal/cip/spec"
	"github.com/tturner/etherip/internal/config"
)

type faultPolicy struct {
	latency     time.Duration
	dropEveryN  int
	closeEveryN int
	chunkWrites bool

	mu            sync.Mutex
	responseCount int

	// runtime hooks
	forced       bool
	forcedStatus uint8
	forcedExt    []uint16
	truncateNext int
}

type responseFaultAction struct {
	drop     bool
	delay    time.Duration
	close    bool
	chunked  bool
	truncate int
}

func resolveFaultPolicy(cfg config.ServerFaultConfig) faultPolicy {
	return faultPolicy{
		latency:     time.Duration(cfg.LatencyMs) * time.Millisecond,
		dropEveryN:  cfg.DropResponseEveryN,
		closeEveryN: cfg.CloseConnectionEveryN,
		chunkWrites: cfg.ChunkWrites,
	}
}

// ForceStatus makes every following tag or identity request fail with
// status and ext, until ClearForcedStatus. Routing and Multiple Service
// Packet envelopes are still honoured.
func (s *Server) ForceStatus(status uint8, ext ...uint16) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.forced = true
	s.faults.forcedStatus = status
	s.faults.forcedExt = append([]uint16(nil), ext...)
}

// ClearForcedStatus restores normal replies.
func (s *Server) ClearForcedStatus() {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.forced = false
	s.faults.forcedExt = nil
}

// TruncateNextReply sends only the first keep bytes of the next reply,
// then closes the connection.
func (s *Server) TruncateNextReply(keep int) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	if keep < 1 {
		keep = 1
	}
	s.faults.truncateNext = keep
}

func (f *faultPolicy) isForced() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forced
}

func (f *faultPolicy) forcedReply(service spec.ServiceCode) (protocol.CIPResponse, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.forced {
		return protocol.CIPResponse{}, false
	}
	return statusReply(service, f.forcedStatus, f.forcedExt...), true
}

func (f *faultPolicy) nextAction() responseFaultAction {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.responseCount++
	count := f.responseCount
	action := responseFaultAction{
		delay:   f.latency,
		drop:    f.dropEveryN > 0 && count%f.dropEveryN == 0,
		close:   f.closeEveryN > 0 && count%f.closeEveryN == 0,
		chunked: f.chunkWrites,
	}
	if f.truncateNext > 0 {
		action.truncate = f.truncateNext
		action.close = true
		f.truncateNext = 0
	}
	return action
}

func (s *Server) writeResponse(conn *net.TCPConn, remoteAddr string, resp []byte) error {
	action := s.faults.nextAction()
	if action.delay > 0 {
		time.Sleep(action.delay)
	}
	if action.truncate > 0 && action.truncate < len(resp) {
		s.logger.Info("Fault: truncating reply to %s after %d of %d bytes", remoteAddr, action.truncate, len(resp))
		resp = resp[:action.truncate]
	}

	if action.drop {
		s.logger.Info("Fault: dropping reply to %s", remoteAddr)
	} else {
		s.logger.LogHex("TX "+remoteAddr, resp)
		var err error
		if action.chunked {
			err = writeChunks(conn, resp)
		} else {
			_, err = conn.Write(resp)
		}
		if err != nil {
			s.stats.errors.Add(1)
			s.logger.Error("Write response error to %s: %v", remoteAddr, err)
			return err
		}
	}

	if action.close {
		s.logger.Info("Fault: closing connection to %s", remoteAddr)
		_ = conn.Close()
		return io.EOF
	}
	return nil
}

// writeChunks splits a reply into small writes so clients see it arrive
// across several reads.
func writeChunks(conn *net.TCPConn, resp []byte) error {
	const chunks = 3
	size := (len(resp) + chunks - 1) / chunks
	if size == 0 {
		return nil
	}
	for offset := 0; offset < len(resp); offset += size {
		end := offset + size
		if end > len(resp) {
			end = len(resp)
		}
		if _, err := conn.Write(resp[offset:end]); err != nil {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
