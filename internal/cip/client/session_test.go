package client_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/tturner/etherip/internal/cip/client"
	"github.com/tturner/etherip/internal/cip/types"
	"github.com/tturner/etherip/internal/config"
	"github.com/tturner/etherip/internal/enip"
	"github.com/tturner/etherip/internal/errors"
	"github.com/tturner/etherip/internal/logging"
	"github.com/tturner/etherip/internal/server"
)

func startController(t *testing.T, mutate func(*config.ServerConfig)) *server.Server {
	t.Helper()
	cfg := config.CreateDefaultServerConfig()
	cfg.Server.ListenIP = "127.0.0.1"
	cfg.Server.TCPPort = 0
	cfg.Tags = append(cfg.Tags,
		config.ServerTagConfig{Name: "Speed", Type: "REAL", Elements: 1, Values: []string{"1.0"}},
		config.ServerTagConfig{Name: "Setpoint", Type: "REAL", Elements: 1},
	)
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := server.NewServer(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })
	return srv
}

func dial(t *testing.T, port int, mutate func(*client.Options)) *client.Session {
	t.Helper()
	opts := client.DefaultOptions()
	opts.Port = port
	opts.Timeout = 2 * time.Second
	if mutate != nil {
		mutate(&opts)
	}
	s, err := client.Dial(context.Background(), "127.0.0.1", opts)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type recorder struct {
	mu   sync.Mutex
	sent [][]byte
}

func (r *recorder) ObserveFrame(dir client.Direction, local, remote string, frame []byte) {
	if dir != client.DirectionSent {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, append([]byte(nil), frame...))
}

func TestReadRealScalar(t *testing.T) {
	srv := startController(t, nil)
	s := dial(t, srv.Addr().Port, nil)

	v, err := s.ReadTag(context.Background(), "Speed", 1)
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if v.Type() != types.CIPTypeREAL || v.Count() != 1 {
		t.Fatalf("value = %s", v)
	}
	if !bytes.Equal(v.Encode(), []byte{0x00, 0x00, 0x80, 0x3F}) {
		t.Errorf("bytes = % X", v.Encode())
	}
	if f, _ := v.Float(0); f != 1.0 {
		t.Errorf("Speed = %v", f)
	}
}

func TestWriteRealEncodesIEEE754(t *testing.T) {
	srv := startController(t, nil)
	rec := &recorder{}
	s := dial(t, srv.Addr().Port, func(o *client.Options) { o.Observer = rec })

	v, _ := types.NewReal(3.14)
	if err := s.WriteTag(context.Background(), "Setpoint", v); err != nil {
		t.Fatalf("WriteTag: %v", err)
	}

	want := []byte{0xCA, 0x00, 0x01, 0x00, 0xC3, 0xF5, 0x48, 0x40}
	found := false
	rec.mu.Lock()
	for _, frame := range rec.sent {
		if bytes.Contains(frame, want) {
			found = true
		}
	}
	rec.mu.Unlock()
	if !found {
		t.Error("no sent frame carries REAL 3.14 as C3 F5 48 40")
	}

	got, _ := srv.Tag("Setpoint")
	if !got.Equal(v) {
		t.Errorf("controller holds %s", got)
	}
}

func TestMissingTagIsRecoverable(t *testing.T) {
	srv := startController(t, nil)
	s := dial(t, srv.Addr().Port, nil)

	_, err := s.ReadTag(context.Background(), "Missing", 1)
	var statusErr *errors.CIPStatusError
	if !stderrors.As(err, &statusErr) {
		t.Fatalf("ReadTag = %v, want CIPStatusError", err)
	}
	if statusErr.Status != 0x05 || statusErr.Category() != "path destination unknown" {
		t.Errorf("status 0x%02X %q", statusErr.Status, statusErr.Category())
	}
	if s.State() != client.StateRegistered {
		t.Fatalf("state = %s", s.State())
	}
	if _, err := s.ReadTag(context.Background(), "Speed", 1); err != nil {
		t.Fatalf("ReadTag after status error: %v", err)
	}
}

// truncatingStub registers a session and then answers the first
// SendRRData with a header declaring 10 payload bytes but only 6.
func truncatingStub(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reg, _, err := enip.ReadFrame(conn)
		if err != nil {
			return
		}
		conn.Write(enip.EncodeENIP(enip.ENIPEncapsulation{
			Command:       enip.ENIPCommandRegisterSession,
			SessionID:     0x42,
			SenderContext: reg.SenderContext,
			Data:          reg.Data,
		}))

		req, _, err := enip.ReadFrame(conn)
		if err != nil {
			return
		}
		full := enip.EncodeENIP(enip.ENIPEncapsulation{
			Command:       enip.ENIPCommandSendRRData,
			SessionID:     0x42,
			SenderContext: req.SenderContext,
			Data:          make([]byte, 10),
		})
		conn.Write(full[:enip.HeaderSize+6])
	}()
	return ln.Addr().String()
}

// silentStub registers a session and then reads requests without ever
// answering, until the client hangs up.
func silentStub(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reg, _, err := enip.ReadFrame(conn)
		if err != nil {
			return
		}
		conn.Write(enip.EncodeENIP(enip.ENIPEncapsulation{
			Command:       enip.ENIPCommandRegisterSession,
			SessionID:     0x42,
			SenderContext: reg.SenderContext,
			Data:          reg.Data,
		}))
		for {
			if _, _, err := enip.ReadFrame(conn); err != nil {
				return
			}
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestCloseAbortsRequestInFlight(t *testing.T) {
	s := dial(t, silentStub(t), func(o *client.Options) { o.Timeout = 5 * time.Second })

	done := make(chan error, 1)
	go func() {
		_, err := s.ReadTag(context.Background(), "Speed", 1)
		done <- err
	}()
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Close took %v", elapsed)
	}

	select {
	case err := <-done:
		if !stderrors.Is(err, errors.ErrClosed) || !errors.IsFatal(err) {
			t.Errorf("ReadTag = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReadTag still blocked after Close")
	}
	if s.State() != client.StateClosed {
		t.Errorf("state = %s", s.State())
	}
	if _, err := s.ReadTag(context.Background(), "Speed", 1); !stderrors.Is(err, errors.ErrClosed) {
		t.Errorf("ReadTag after Close = %v", err)
	}
}

func TestTruncatedReplyIsFramingError(t *testing.T) {
	addr := truncatingStub(t)
	_, portStr, _ := net.SplitHostPort(addr)
	port, _ := net.LookupPort("tcp", portStr)
	s := dial(t, port, nil)

	_, err := s.ReadTag(context.Background(), "Speed", 1)
	var framing *errors.FramingError
	if !stderrors.As(err, &framing) {
		t.Fatalf("ReadTag = %v, want FramingError", err)
	}
	if s.State() != client.StateClosed {
		t.Errorf("state = %s, want closed", s.State())
	}
}

func TestTruncatedReplyFromController(t *testing.T) {
	srv := startController(t, nil)
	s := dial(t, srv.Addr().Port, nil)

	srv.TruncateNextReply(30)
	_, err := s.ReadTag(context.Background(), "Speed", 1)
	if !stderrors.Is(err, errors.ErrFraming) {
		t.Fatalf("ReadTag = %v, want framing error", err)
	}
	if s.State() != client.StateClosed {
		t.Errorf("state = %s", s.State())
	}
}

func TestDialFailureLeavesNothingOpen(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	opts := client.DefaultOptions()
	opts.Port = port
	opts.Timeout = time.Second
	_, err = client.Dial(context.Background(), "127.0.0.1", opts)
	if !stderrors.Is(err, errors.ErrConnection) {
		t.Fatalf("Dial = %v, want ConnectionError", err)
	}
}

func TestSilentControllerTimesOut(t *testing.T) {
	srv := startController(t, func(cfg *config.ServerConfig) { cfg.Faults.LatencyMs = 500 })
	opts := client.DefaultOptions()
	opts.Port = srv.Addr().Port
	opts.Timeout = 2 * time.Second
	s, err := client.Dial(context.Background(), "127.0.0.1", opts)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = s.ReadTag(ctx, "Speed", 1)
	if !stderrors.Is(err, errors.ErrTimeout) {
		t.Fatalf("ReadTag = %v, want timeout", err)
	}
	if s.State() != client.StateClosed {
		t.Errorf("state = %s", s.State())
	}
}

func TestDiscoveryAndIdentity(t *testing.T) {
	srv := startController(t, nil)
	s := dial(t, srv.Addr().Port, nil)
	ctx := context.Background()

	ids, err := s.ListIdentity(ctx)
	if err != nil {
		t.Fatalf("ListIdentity: %v", err)
	}
	if len(ids) != 1 || ids[0].SerialNumber != 0x00C0FFEE {
		t.Fatalf("ListIdentity = %+v", ids)
	}

	services, err := s.ListServices(ctx)
	if err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if len(services) != 1 || services[0].Name != "Communications" {
		t.Errorf("ListServices = %+v", services)
	}

	id, err := s.GetIdentity(ctx)
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if id.ProductName != ids[0].ProductName || id.SerialNumber != ids[0].SerialNumber {
		t.Errorf("GetIdentity = %+v", id)
	}
}

func TestSlotIdentity(t *testing.T) {
	srv := startController(t, func(cfg *config.ServerConfig) { cfg.Server.ControllerSlot = 2 })
	s := dial(t, srv.Addr().Port, func(o *client.Options) { o.Slot = 2 })
	ctx := context.Background()

	if _, err := s.GetSlotIdentity(ctx, 2); err != nil {
		t.Fatalf("GetSlotIdentity(2): %v", err)
	}
	_, err := s.GetSlotIdentity(ctx, 5)
	var statusErr *errors.CIPStatusError
	if !stderrors.As(err, &statusErr) || statusErr.Status != 0x01 {
		t.Fatalf("GetSlotIdentity(5) = %v, want routing status 0x01", err)
	}
	if s.State() != client.StateRegistered {
		t.Errorf("routing failure closed the session")
	}
}

func TestDirectSession(t *testing.T) {
	srv := startController(t, nil)
	s := dial(t, srv.Addr().Port, func(o *client.Options) { o.Routed = false })

	v, err := s.ReadTagElement(context.Background(), "Setpoints", 2, 2)
	if err != nil {
		t.Fatalf("ReadTagElement: %v", err)
	}
	if f, _ := v.Float(0); v.Count() != 2 || f != 3.5 {
		t.Errorf("Setpoints[2..3] = %s", v)
	}

	one, _ := types.NewReal(-1)
	if err := s.WriteTagElement(context.Background(), "Setpoints", 3, one); err != nil {
		t.Fatalf("WriteTagElement: %v", err)
	}
	got, _ := srv.Tag("Setpoints")
	if f, _ := got.Float(3); f != -1 {
		t.Errorf("Setpoints[3] = %v", f)
	}
}

func TestBatchMixedResults(t *testing.T) {
	srv := startController(t, nil)
	s := dial(t, srv.Addr().Port, nil)
	ctx := context.Background()

	idx := uint32(1)
	results, err := s.ReadTags(ctx, []client.TagRequest{
		{Name: "Speed", Count: 1},
		{Name: "Missing", Count: 1},
		{Name: "Setpoints", Index: &idx, Count: 2},
		{Name: "bad name", Count: 1},
	})
	if err != nil {
		t.Fatalf("ReadTags: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("unexpected errors: %v, %v", results[0].Err, results[2].Err)
	}
	if f, _ := results[2].Value.Float(1); f != 3.5 || results[2].Tag != "Setpoints[1]" {
		t.Errorf("%s = %s", results[2].Tag, results[2].Value)
	}
	var statusErr *errors.CIPStatusError
	if !stderrors.As(results[1].Err, &statusErr) || statusErr.Status != 0x05 {
		t.Errorf("Missing: %v", results[1].Err)
	}
	if !stderrors.Is(results[3].Err, errors.ErrInvalidTagName) {
		t.Errorf("bad name: %v", results[3].Err)
	}

	dint, _ := types.NewDint(99)
	two, _ := types.NewReal(2)
	writes, err := s.WriteTags(ctx, []client.TagRequest{
		{Name: "Counts", Index: &idx, Value: dint},
		{Name: "Setpoint", Value: dint},
		{Name: "Setpoint", Value: two},
	})
	if err != nil {
		t.Fatalf("WriteTags: %v", err)
	}
	if writes[0].Err != nil || writes[2].Err != nil {
		t.Errorf("write errors: %v, %v", writes[0].Err, writes[2].Err)
	}
	if !stderrors.As(writes[1].Err, &statusErr) || statusErr.Status != 0xFF {
		t.Errorf("type mismatch write: %v", writes[1].Err)
	}
	counts, _ := srv.Tag("Counts")
	if n, _ := counts.Int(1); n != 99 {
		t.Errorf("Counts[1] = %d", n)
	}
}

func TestLargeBatchSplits(t *testing.T) {
	srv := startController(t, nil)
	s := dial(t, srv.Addr().Port, nil)

	reqs := make([]client.TagRequest, 60)
	for i := range reqs {
		reqs[i] = client.TagRequest{Name: "Program:MainProgram.Speed", Count: 1}
	}
	results, err := s.ReadTags(context.Background(), reqs)
	if err != nil {
		t.Fatalf("ReadTags: %v", err)
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("item %d: %v", i, r.Err)
		}
		if n, _ := r.Value.Int(0); n != 1200 {
			t.Fatalf("item %d = %d", i, n)
		}
	}
}

func TestDiscoverUDP(t *testing.T) {
	srv := startController(t, func(cfg *config.ServerConfig) { cfg.Server.EnableUDP = true })

	ids, err := client.Discover(context.Background(), "127.0.0.1", srv.Addr().Port, 300*time.Millisecond)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(ids) != 1 || ids[0].ProductName != "etherip simulator" {
		t.Fatalf("Discover = %+v", ids)
	}
	if _, err := client.Discover(context.Background(), "not-an-ip", 0, time.Millisecond); err == nil {
		t.Error("expected error for bad broadcast address")
	}
}
