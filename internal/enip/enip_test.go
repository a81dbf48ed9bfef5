package enip

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	eipErrors "github.com/tturner/etherip/internal/errors"
)

func TestEncodeENIP(t *testing.T) {
	encap := ENIPEncapsulation{
		Command:       ENIPCommandRegisterSession,
		SessionID:     0x12345678,
		SenderContext: [8]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		Data:          []byte{0x01, 0x00, 0x00, 0x00},
	}

	packet := EncodeENIP(encap)
	want := []byte{
		0x65, 0x00, 0x04, 0x00,
		0x78, 0x56, 0x34, 0x12,
		0x00, 0x00, 0x00, 0x00,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(packet, want) {
		t.Fatalf("EncodeENIP =\n% X\nwant\n% X", packet, want)
	}
}

func TestDecodeENIPRoundTrip(t *testing.T) {
	frames := []ENIPEncapsulation{
		{Command: ENIPCommandRegisterSession, Length: 4, SenderContext: [8]byte{1}, Data: []byte{1, 0, 0, 0}},
		{Command: ENIPCommandUnregisterSession, SessionID: 0xDEADBEEF},
		{Command: ENIPCommandListIdentity, Options: 0x01020304},
		{Command: ENIPCommandListServices, Status: 0x64},
		{Command: ENIPCommandSendRRData, Length: 3, SessionID: 7, Data: []byte{0xAA, 0xBB, 0xCC}},
	}
	for _, encap := range frames {
		decoded, err := DecodeENIP(EncodeENIP(encap))
		if err != nil {
			t.Fatalf("DecodeENIP(%s): %v", CommandName(encap.Command), err)
		}
		if decoded.Command != encap.Command || decoded.Length != encap.Length ||
			decoded.SessionID != encap.SessionID || decoded.Status != encap.Status ||
			decoded.SenderContext != encap.SenderContext || decoded.Options != encap.Options ||
			!bytes.Equal(decoded.Data, encap.Data) {
			t.Errorf("round trip mismatch: got %+v want %+v", decoded, encap)
		}
	}
}

func TestDecodeENIPFramingErrors(t *testing.T) {
	good := EncodeENIP(ENIPEncapsulation{Command: ENIPCommandSendRRData, Data: []byte{1, 2, 3, 4}})

	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{0x01, 0x02, 0x03}},
		{"length exceeds available", good[:len(good)-1]},
		{"trailing bytes", append(append([]byte(nil), good...), 0x00)},
		{"unknown command", EncodeENIP(ENIPEncapsulation{Command: 0x00FE})},
		{"send unit data", EncodeENIP(ENIPEncapsulation{Command: ENIPCommandSendUnitData})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeENIP(tt.data)
			var framing *eipErrors.FramingError
			if !errors.As(err, &framing) {
				t.Fatalf("err = %v, want *FramingError", err)
			}
			if !errors.Is(err, eipErrors.ErrFraming) {
				t.Fatalf("err should match ErrFraming")
			}
		})
	}
}

func TestBuildRegisterSession(t *testing.T) {
	senderContext := [8]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	encap, err := DecodeENIP(BuildRegisterSession(senderContext))
	if err != nil {
		t.Fatalf("DecodeENIP failed: %v", err)
	}
	if encap.Command != ENIPCommandRegisterSession || encap.SessionID != 0 {
		t.Errorf("unexpected header %+v", encap)
	}
	if encap.SenderContext != senderContext {
		t.Errorf("sender context: got %v, want %v", encap.SenderContext, senderContext)
	}
	version, err := ParseRegisterSessionReply(encap.Data)
	if err != nil || version != ProtocolVersion {
		t.Errorf("ParseRegisterSessionReply = %d, %v", version, err)
	}
}

func TestBuildSendRRData(t *testing.T) {
	cipData := []byte{0x4C, 0x03, 0x91, 0x03, 'F', 'o', 'o', 0x00, 0x01, 0x00}
	encap, err := DecodeENIP(BuildSendRRData(0x12345678, [8]byte{9}, 10, cipData))
	if err != nil {
		t.Fatalf("DecodeENIP failed: %v", err)
	}
	if encap.SessionID != 0x12345678 {
		t.Errorf("session ID: got 0x%08X", encap.SessionID)
	}
	wantPrefix := []byte{
		0x00, 0x00, 0x00, 0x00, // interface handle
		0x0A, 0x00,             // timeout
		0x02, 0x00,             // item count
		0x00, 0x00, 0x00, 0x00, // null address item
		0xB2, 0x00, byte(len(cipData)), 0x00,
	}
	if !bytes.HasPrefix(encap.Data, wantPrefix) {
		t.Fatalf("SendRRData body = % X", encap.Data)
	}
	got, err := ParseSendRRDataPayload(encap.Data)
	if err != nil {
		t.Fatalf("ParseSendRRDataPayload: %v", err)
	}
	if !bytes.Equal(got, cipData) {
		t.Errorf("CIP data: got % X, want % X", got, cipData)
	}
}

func TestParseSendRRDataPayloadErrors(t *testing.T) {
	for name, data := range map[string][]byte{
		"short":        {0, 0, 0},
		"no items":     {0, 0, 0, 0, 0, 0, 0, 0},
		"truncated":    {0, 0, 0, 0, 0, 0, 1, 0, 0xB2, 0, 8, 0, 1},
		"only address": {0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0},
	} {
		if _, err := ParseSendRRDataPayload(data); !errors.Is(err, eipErrors.ErrFraming) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestReadFrame(t *testing.T) {
	first := EncodeENIP(ENIPEncapsulation{Command: ENIPCommandListIdentity})
	second := EncodeENIP(ENIPEncapsulation{Command: ENIPCommandSendRRData, Data: []byte{1, 2, 3}})
	stream := iotest.OneByteReader(bytes.NewReader(append(append([]byte(nil), first...), second...)))

	encap, raw, err := ReadFrame(stream)
	if err != nil || encap.Command != ENIPCommandListIdentity || !bytes.Equal(raw, first) {
		t.Fatalf("first frame = %+v, %v", encap, err)
	}
	encap, raw, err = ReadFrame(stream)
	if err != nil || !bytes.Equal(encap.Data, []byte{1, 2, 3}) || !bytes.Equal(raw, second) {
		t.Fatalf("second frame = %+v, %v", encap, err)
	}
	if _, _, err := ReadFrame(stream); err != io.EOF {
		t.Fatalf("end of stream err = %v, want io.EOF", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	header := EncodeENIP(ENIPEncapsulation{Command: ENIPCommandSendRRData})
	header[2] = 10 // declare 10 payload bytes
	data := append(header, 1, 2, 3, 4, 5, 6)

	_, _, err := ReadFrame(bytes.NewReader(data))
	if !errors.Is(err, eipErrors.ErrFraming) {
		t.Fatalf("err = %v, want framing error", err)
	}

	_, _, err = ReadFrame(bytes.NewReader(header[:10]))
	if !errors.Is(err, eipErrors.ErrFraming) {
		t.Fatalf("partial header err = %v, want framing error", err)
	}
}

func TestReadFramePassesReadErrors(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := ReadFrame(iotest.ErrReader(boom))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestReadRawFrameAcceptsUnknownCommand(t *testing.T) {
	frame := EncodeENIP(ENIPEncapsulation{Command: 0x00FE, Data: []byte{1}})
	raw, err := ReadRawFrame(bytes.NewReader(frame))
	if err != nil || !bytes.Equal(raw, frame) {
		t.Fatalf("ReadRawFrame = % X, %v", raw, err)
	}
}
