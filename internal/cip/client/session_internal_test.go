package client

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/tturner/etherip/internal/cip/protocol"
	"github.com/tturner/etherip/internal/cip/spec"
	"github.com/tturner/etherip/internal/cip/types"
	"github.com/tturner/etherip/internal/enip"
	"github.com/tturner/etherip/internal/errors"
)

type queued struct {
	frame []byte
	err   error
}

// fakeTransport answers each sent frame through respond. A nil reply with
// a nil error queues nothing, so the next Receive reports EOF.
type fakeTransport struct {
	mu         sync.Mutex
	respond    func(req enip.ENIPEncapsulation) ([]byte, error)
	connectErr error
	queue      []queued
	sent       []enip.ENIPEncapsulation
	closed     int
	deadlines  []time.Time
}

func (f *fakeTransport) Connect(ctx context.Context, addr string) error { return f.connectErr }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) Send(frame []byte) error {
	encap, err := enip.DecodeENIP(frame)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, encap)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return nil
	}
	reply, err := respond(encap)
	if reply == nil && err == nil {
		return nil
	}
	f.mu.Lock()
	f.queue = append(f.queue, queued{frame: reply, err: err})
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Receive() (enip.ENIPEncapsulation, []byte, error) {
	f.mu.Lock()
	if len(f.queue) == 0 {
		f.mu.Unlock()
		return enip.ENIPEncapsulation{}, nil, io.EOF
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	f.mu.Unlock()
	if next.err != nil {
		return enip.ENIPEncapsulation{}, nil, next.err
	}
	encap, err := enip.DecodeENIP(next.frame)
	if err != nil {
		return enip.ENIPEncapsulation{}, nil, err
	}
	return encap, next.frame, nil
}

func (f *fakeTransport) SetDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadlines = append(f.deadlines, t)
	return nil
}

func (f *fakeTransport) LocalAddr() string  { return "127.0.0.1:50000" }
func (f *fakeTransport) RemoteAddr() string { return "127.0.0.1:44818" }

func (f *fakeTransport) sentCommands() []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint16, len(f.sent))
	for i, e := range f.sent {
		out[i] = e.Command
	}
	return out
}

func (f *fakeTransport) lastSent() enip.ENIPEncapsulation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

const testHandle uint32 = 0x11223344

func reply(req enip.ENIPEncapsulation, handle uint32, data []byte) []byte {
	return enip.EncodeENIP(enip.ENIPEncapsulation{
		Command:       req.Command,
		SessionID:     handle,
		SenderContext: req.SenderContext,
		Data:          data,
	})
}

func cipReply(req enip.ENIPEncapsulation, resp protocol.CIPResponse) []byte {
	return reply(req, req.SessionID, enip.BuildSendRRDataPayload(0, protocol.EncodeCIPResponse(resp)))
}

// controller registers with testHandle and answers SendRRData with cip.
func controller(cip func(req protocol.CIPRequest) protocol.CIPResponse) func(enip.ENIPEncapsulation) ([]byte, error) {
	return func(req enip.ENIPEncapsulation) ([]byte, error) {
		switch req.Command {
		case enip.ENIPCommandRegisterSession:
			return reply(req, testHandle, req.Data), nil
		case enip.ENIPCommandSendRRData:
			data, err := enip.ParseSendRRDataPayload(req.Data)
			if err != nil {
				return nil, err
			}
			creq, err := protocol.DecodeCIPRequest(data)
			if err != nil {
				return nil, err
			}
			return cipReply(req, cip(creq)), nil
		}
		return nil, nil
	}
}

func realReply(req protocol.CIPRequest) protocol.CIPResponse {
	v, _ := types.NewReal(1.0)
	return protocol.CIPResponse{Service: spec.CIPServiceReadTag.Reply(), Payload: protocol.EncodeReadTagReply(v)}
}

func newTestSession(t *testing.T, ft *fakeTransport, mutate func(*Options)) *Session {
	t.Helper()
	opts := DefaultOptions()
	opts.Timeout = time.Second
	opts.Transport = ft
	if mutate != nil {
		mutate(&opts)
	}
	return NewSession("127.0.0.1", opts)
}

func registered(t *testing.T, ft *fakeTransport, mutate func(*Options)) *Session {
	t.Helper()
	s := newTestSession(t, ft, mutate)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.RegisterSession(context.Background()); err != nil {
		t.Fatalf("RegisterSession: %v", err)
	}
	return s
}

func TestOperationsBeforeRegistration(t *testing.T) {
	ft := &fakeTransport{respond: controller(realReply)}
	s := newTestSession(t, ft, nil)
	ctx := context.Background()

	if _, err := s.ReadTag(ctx, "Speed", 1); !stderrors.Is(err, errors.ErrNotRegistered) {
		t.Errorf("ReadTag before connect = %v, want ErrNotRegistered", err)
	}
	if _, err := s.ListIdentity(ctx); !stderrors.Is(err, errors.ErrNotConnected) {
		t.Errorf("ListIdentity before connect = %v, want ErrNotConnected", err)
	}
	if err := s.RegisterSession(ctx); !stderrors.Is(err, errors.ErrNotConnected) {
		t.Errorf("RegisterSession before connect = %v", err)
	}

	if err := s.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteTag(ctx, "Speed", types.Value{}); !stderrors.Is(err, errors.ErrNotRegistered) {
		t.Errorf("WriteTag before register = %v, want ErrNotRegistered", err)
	}
	if len(ft.sentCommands()) != 0 {
		t.Errorf("frames sent before registration: %v", ft.sentCommands())
	}
}

func TestConnectFailure(t *testing.T) {
	ft := &fakeTransport{connectErr: stderrors.New("connection refused")}
	s := newTestSession(t, ft, nil)
	err := s.Connect(context.Background())
	var connErr *errors.ConnectionError
	if !stderrors.As(err, &connErr) {
		t.Fatalf("Connect = %v, want ConnectionError", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("state = %s", s.State())
	}
}

func TestRegisterSessionZeroHandle(t *testing.T) {
	ft := &fakeTransport{respond: func(req enip.ENIPEncapsulation) ([]byte, error) {
		return reply(req, 0, req.Data), nil
	}}
	s := newTestSession(t, ft, nil)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	err := s.RegisterSession(context.Background())
	if !stderrors.Is(err, errors.ErrProtocol) {
		t.Fatalf("RegisterSession = %v, want ProtocolError", err)
	}
	if s.State() != StateClosed || ft.closed == 0 {
		t.Errorf("state %s, transport closed %d times", s.State(), ft.closed)
	}
}

func TestReadTagDecodesReal(t *testing.T) {
	ft := &fakeTransport{respond: controller(realReply)}
	s := registered(t, ft, nil)

	v, err := s.ReadTag(context.Background(), "Speed", 1)
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if f, _ := v.Float(0); v.Type() != types.CIPTypeREAL || f != 1.0 {
		t.Fatalf("value = %s", v)
	}
	if s.SessionHandle() != testHandle {
		t.Errorf("handle = 0x%08X", s.SessionHandle())
	}
}

func TestRoutedAndDirectRequests(t *testing.T) {
	var seen []protocol.CIPRequest
	record := func(req protocol.CIPRequest) protocol.CIPResponse {
		seen = append(seen, req)
		return realReply(req)
	}

	routed := registered(t, &fakeTransport{respond: controller(record)}, func(o *Options) { o.Slot = 3 })
	if _, err := routed.ReadTag(context.Background(), "Speed", 1); err != nil {
		t.Fatal(err)
	}
	direct := registered(t, &fakeTransport{respond: controller(record)}, func(o *Options) { o.Routed = false })
	if _, err := direct.ReadTag(context.Background(), "Speed", 1); err != nil {
		t.Fatal(err)
	}

	if seen[0].Service != spec.CIPServiceUnconnectedSend {
		t.Fatalf("routed service = 0x%02X", uint8(seen[0].Service))
	}
	inner, route, err := protocol.ParseUnconnectedSendRequestPayload(seen[0].Payload)
	if err != nil {
		t.Fatal(err)
	}
	if inner.Service != spec.CIPServiceReadTag || string(route) != string([]byte{0x01, 0x03}) {
		t.Errorf("inner 0x%02X route % X", uint8(inner.Service), []byte(route))
	}
	if seen[1].Service != spec.CIPServiceReadTag {
		t.Errorf("direct service = 0x%02X", uint8(seen[1].Service))
	}
}

func TestValidationErrorsNeverReachTheWire(t *testing.T) {
	ft := &fakeTransport{respond: controller(realReply)}
	s := registered(t, ft, nil)
	before := len(ft.sentCommands())

	if _, err := s.ReadTag(context.Background(), "Speed", 0); !stderrors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("count 0 = %v", err)
	}
	if _, err := s.ReadTag(context.Background(), "bad name", 1); !stderrors.Is(err, errors.ErrInvalidTagName) {
		t.Errorf("bad name = %v", err)
	}
	if err := s.WriteTag(context.Background(), "Speed", types.Value{}); !stderrors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("empty value = %v", err)
	}
	if got := len(ft.sentCommands()); got != before {
		t.Errorf("%d frames sent for invalid requests", got-before)
	}
	if s.State() != StateRegistered {
		t.Errorf("state = %s", s.State())
	}
}

func TestCIPStatusKeepsSessionOpen(t *testing.T) {
	ft := &fakeTransport{respond: controller(func(req protocol.CIPRequest) protocol.CIPResponse {
		return protocol.CIPResponse{Service: spec.CIPServiceReadTag.Reply(), Status: 0x05}
	})}
	s := registered(t, ft, func(o *Options) { o.Routed = false })

	_, err := s.ReadTag(context.Background(), "Missing", 1)
	var statusErr *errors.CIPStatusError
	if !stderrors.As(err, &statusErr) {
		t.Fatalf("ReadTag = %v, want CIPStatusError", err)
	}
	if statusErr.Category() != "path destination unknown" || !errors.IsRetryable(err) {
		t.Errorf("category %q retryable %v", statusErr.Category(), errors.IsRetryable(err))
	}
	if s.State() != StateRegistered || ft.closed != 0 {
		t.Errorf("state %s closed %d", s.State(), ft.closed)
	}
}

func TestFatalReplies(t *testing.T) {
	tests := []struct {
		name   string
		answer func(req enip.ENIPEncapsulation) []byte
		want   error
	}{
		{
			name: "sender context mismatch",
			answer: func(req enip.ENIPEncapsulation) []byte {
				req.SenderContext[7] ^= 0xFF
				return cipReply(req, realReply(protocol.CIPRequest{}))
			},
			want: errors.ErrProtocol,
		},
		{
			name: "session handle mismatch",
			answer: func(req enip.ENIPEncapsulation) []byte {
				req.SessionID = testHandle + 1
				return cipReply(req, realReply(protocol.CIPRequest{}))
			},
			want: errors.ErrProtocol,
		},
		{
			name: "encapsulation status",
			answer: func(req enip.ENIPEncapsulation) []byte {
				return enip.EncodeENIP(enip.ENIPEncapsulation{
					Command:       req.Command,
					SessionID:     req.SessionID,
					Status:        enip.ENIPStatusInvalidSessionHandle,
					SenderContext: req.SenderContext,
				})
			},
			want: errors.ErrProtocol,
		},
		{
			name: "wrong command",
			answer: func(req enip.ENIPEncapsulation) []byte {
				req.Command = enip.ENIPCommandListServices
				return reply(req, req.SessionID, nil)
			},
			want: errors.ErrProtocol,
		},
		{
			name: "reply for another service",
			answer: func(req enip.ENIPEncapsulation) []byte {
				return cipReply(req, protocol.CIPResponse{Service: spec.CIPServiceWriteTag.Reply()})
			},
			want: errors.ErrProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &fakeTransport{respond: func(req enip.ENIPEncapsulation) ([]byte, error) {
				if req.Command == enip.ENIPCommandRegisterSession {
					return reply(req, testHandle, req.Data), nil
				}
				return tt.answer(req), nil
			}}
			s := registered(t, ft, nil)
			_, err := s.ReadTag(context.Background(), "Speed", 1)
			if !stderrors.Is(err, tt.want) {
				t.Fatalf("ReadTag = %v, want %v", err, tt.want)
			}
			if !errors.IsFatal(err) {
				t.Errorf("error not fatal: %v", err)
			}
			if s.State() != StateClosed {
				t.Errorf("state = %s, want closed", s.State())
			}
			if _, err := s.ReadTag(context.Background(), "Speed", 1); !stderrors.Is(err, errors.ErrClosed) {
				t.Errorf("ReadTag after failure = %v, want ErrClosed", err)
			}
		})
	}
}

func TestTimeoutClosesSession(t *testing.T) {
	ft := &fakeTransport{respond: func(req enip.ENIPEncapsulation) ([]byte, error) {
		if req.Command == enip.ENIPCommandRegisterSession {
			return reply(req, testHandle, req.Data), nil
		}
		return nil, os.ErrDeadlineExceeded
	}}
	s := registered(t, ft, nil)

	_, err := s.ReadTag(context.Background(), "Speed", 1)
	var timeout *errors.TimeoutError
	if !stderrors.As(err, &timeout) || !stderrors.Is(err, errors.ErrTimeout) {
		t.Fatalf("ReadTag = %v, want TimeoutError", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %s", s.State())
	}
}

func TestPeerCloseIsConnectionError(t *testing.T) {
	ft := &fakeTransport{respond: func(req enip.ENIPEncapsulation) ([]byte, error) {
		if req.Command == enip.ENIPCommandRegisterSession {
			return reply(req, testHandle, req.Data), nil
		}
		return nil, nil
	}}
	s := registered(t, ft, nil)

	_, err := s.ReadTag(context.Background(), "Speed", 1)
	if !stderrors.Is(err, errors.ErrConnection) || !stderrors.Is(err, io.EOF) {
		t.Fatalf("ReadTag = %v, want ConnectionError wrapping EOF", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %s", s.State())
	}
}

func TestCancelledContextSendsNothing(t *testing.T) {
	ft := &fakeTransport{respond: controller(realReply)}
	s := registered(t, ft, nil)
	before := len(ft.sentCommands())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ReadTag(ctx, "Speed", 1); !stderrors.Is(err, context.Canceled) {
		t.Fatalf("ReadTag = %v, want context.Canceled", err)
	}
	if len(ft.sentCommands()) != before {
		t.Error("frame sent on cancelled context")
	}
}

func TestDeadlineUsesEarlierOfTimeoutAndContext(t *testing.T) {
	ft := &fakeTransport{respond: controller(realReply)}
	s := registered(t, ft, func(o *Options) { o.Timeout = time.Hour })

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.ReadTag(ctx, "Speed", 1); err != nil {
		t.Fatal(err)
	}
	d := ft.deadlines[len(ft.deadlines)-1]
	if time.Until(d) > time.Minute {
		t.Errorf("deadline %v is past the context deadline", time.Until(d))
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ft := &fakeTransport{respond: controller(realReply)}
	s := registered(t, ft, nil)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	unregisters := 0
	for _, cmd := range ft.sentCommands() {
		if cmd == enip.ENIPCommandUnregisterSession {
			unregisters++
		}
	}
	if unregisters != 1 || ft.closed != 1 {
		t.Errorf("unregister sent %d times, transport closed %d times", unregisters, ft.closed)
	}
	if last := ft.lastSent(); last.SessionID != testHandle {
		t.Errorf("UnregisterSession carried handle 0x%08X", last.SessionID)
	}
	before := len(ft.sentCommands())
	ctx := context.Background()
	setpoint, _ := types.NewReal(3.14)
	afterClose := []struct {
		name string
		call func() error
	}{
		{"ReadTag", func() error { _, err := s.ReadTag(ctx, "Speed", 1); return err }},
		{"ReadTagElement", func() error { _, err := s.ReadTagElement(ctx, "Speed", 0, 1); return err }},
		{"WriteTag", func() error { return s.WriteTag(ctx, "Setpoint", setpoint) }},
		{"WriteTagElement", func() error { return s.WriteTagElement(ctx, "Setpoint", 0, setpoint) }},
		{"ReadTags", func() error { _, err := s.ReadTags(ctx, []TagRequest{{Name: "Speed", Count: 1}}); return err }},
		{"WriteTags", func() error { _, err := s.WriteTags(ctx, []TagRequest{{Name: "Setpoint", Value: setpoint}}); return err }},
		{"ListIdentity", func() error { _, err := s.ListIdentity(ctx); return err }},
		{"ListServices", func() error { _, err := s.ListServices(ctx); return err }},
		{"GetIdentity", func() error { _, err := s.GetIdentity(ctx); return err }},
		{"GetSlotIdentity", func() error { _, err := s.GetSlotIdentity(ctx, 1); return err }},
		{"RegisterSession", func() error { return s.RegisterSession(ctx) }},
		{"Connect", func() error { return s.Connect(ctx) }},
	}
	for _, op := range afterClose {
		if err := op.call(); !stderrors.Is(err, errors.ErrClosed) {
			t.Errorf("%s after Close = %v, want ErrClosed", op.name, err)
		}
	}
	if sent := len(ft.sentCommands()); sent != before {
		t.Errorf("%d frames sent after Close", sent-before)
	}
}

func TestExpiredContextIsTimeout(t *testing.T) {
	ft := &fakeTransport{respond: controller(realReply)}
	s := registered(t, ft, nil)
	before := len(ft.sentCommands())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := s.ReadTag(ctx, "Speed", 1)
	var timeout *errors.TimeoutError
	if !stderrors.As(err, &timeout) || !stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ReadTag = %v, want TimeoutError", err)
	}
	if len(ft.sentCommands()) != before {
		t.Error("frame sent on expired context")
	}
	if s.State() != StateRegistered {
		t.Errorf("state = %s, want registered", s.State())
	}
}

func TestMalformedDiscoveryRepliesCloseSession(t *testing.T) {
	shortIdentity := enip.EncodeCPFItems([]enip.CPFItem{{TypeID: enip.CPFItemListIdentity, Data: []byte{1, 0, 2}}})
	shortService := enip.EncodeCPFItems([]enip.CPFItem{{TypeID: enip.CPFItemListServices, Data: []byte{1, 0, 0x20, 0x01}}})
	attrs := enip.EncodeIdentityAttributes(enip.IdentityRecord{VendorID: 1, ProductName: "1756-L83E/B"})

	tests := []struct {
		name string
		call func(s *Session) error
	}{
		{"ListIdentity", func(s *Session) error { _, err := s.ListIdentity(context.Background()); return err }},
		{"ListServices", func(s *Session) error { _, err := s.ListServices(context.Background()); return err }},
		{"GetIdentity", func(s *Session) error { _, err := s.GetIdentity(context.Background()); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := controller(func(req protocol.CIPRequest) protocol.CIPResponse {
				return protocol.CIPResponse{Service: spec.CIPServiceGetAttributeAll.Reply(), Payload: attrs[:len(attrs)-4]}
			})
			ft := &fakeTransport{respond: func(req enip.ENIPEncapsulation) ([]byte, error) {
				switch req.Command {
				case enip.ENIPCommandListIdentity:
					return reply(req, 0, shortIdentity), nil
				case enip.ENIPCommandListServices:
					return reply(req, 0, shortService), nil
				}
				return identity(req)
			}}
			s := registered(t, ft, nil)

			err := tt.call(s)
			var framing *errors.FramingError
			if !stderrors.As(err, &framing) || !errors.IsFatal(err) {
				t.Fatalf("err = %v, want fatal FramingError", err)
			}
			if s.State() != StateClosed {
				t.Errorf("state = %s, want closed", s.State())
			}
			if ft.closed == 0 {
				t.Error("transport left open")
			}
		})
	}
}

func TestFreshSenderContextPerRequest(t *testing.T) {
	ft := &fakeTransport{respond: controller(realReply)}
	s := registered(t, ft, nil)
	for i := 0; i < 3; i++ {
		if _, err := s.ReadTag(context.Background(), "Speed", 1); err != nil {
			t.Fatal(err)
		}
	}
	seen := make(map[[8]byte]bool)
	for _, e := range ft.sent {
		if seen[e.SenderContext] {
			t.Fatalf("sender context % X reused", e.SenderContext[:])
		}
		seen[e.SenderContext] = true
	}
}

type frameLog struct {
	mu     sync.Mutex
	frames []Direction
}

func (l *frameLog) ObserveFrame(dir Direction, local, remote string, frame []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, dir)
}

func TestObserverSeesEveryFrame(t *testing.T) {
	obs := &frameLog{}
	ft := &fakeTransport{respond: controller(realReply)}
	s := registered(t, ft, func(o *Options) { o.Observer = obs })
	if _, err := s.ReadTag(context.Background(), "Speed", 1); err != nil {
		t.Fatal(err)
	}
	s.Close()

	want := []Direction{DirectionSent, DirectionReceived, DirectionSent, DirectionReceived, DirectionSent}
	if len(obs.frames) != len(want) {
		t.Fatalf("observed %v", obs.frames)
	}
	for i := range want {
		if obs.frames[i] != want[i] {
			t.Errorf("frame %d: %s, want %s", i, obs.frames[i], want[i])
		}
	}
}

func TestChunkBatch(t *testing.T) {
	items := make([]pending, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, pending{index: i, size: 100})
	}
	chunks := chunkBatch(items)
	// 102 bytes per item, four fit in 460
	if len(chunks) != 3 || len(chunks[0]) != 4 || len(chunks[2]) != 2 {
		t.Fatalf("chunk sizes: %d chunks", len(chunks))
	}

	big := chunkBatch([]pending{{index: 0, size: 600}, {index: 1, size: 10}})
	if len(big) != 2 {
		t.Errorf("oversized item shares a packet: %d chunks", len(big))
	}
}

func TestCPFTimeout(t *testing.T) {
	tests := []struct {
		timeout time.Duration
		want    uint16
	}{
		{500 * time.Millisecond, 1},
		{5 * time.Second, 5},
		{100000 * time.Second, 0xFFFF},
	}
	for _, tt := range tests {
		s := NewSession("h", Options{Timeout: tt.timeout, Transport: &fakeTransport{}})
		if got := s.cpfTimeout(); got != tt.want {
			t.Errorf("cpfTimeout(%v) = %d, want %d", tt.timeout, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	if StateRegistered.String() != "registered" || State(9).String() != "State(9)" {
		t.Errorf("State strings: %s %s", StateRegistered, State(9))
	}
}
