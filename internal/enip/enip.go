package enip

// EtherNet/IP encapsulation framing.

import (
	"fmt"

	"github.com/tturner/etherip/internal/cip/codec"
	"github.com/tturner/etherip/internal/errors"
)

// ENIP command codes
const (
	ENIPCommandNOP               uint16 = 0x0000
	ENIPCommandListServices      uint16 = 0x0004
	ENIPCommandListIdentity      uint16 = 0x0063
	ENIPCommandListInterfaces    uint16 = 0x0064
	ENIPCommandRegisterSession   uint16 = 0x0065
	ENIPCommandUnregisterSession uint16 = 0x0066
	ENIPCommandSendRRData        uint16 = 0x006F
	ENIPCommandSendUnitData      uint16 = 0x0070
)

// ENIP status codes
const (
	ENIPStatusSuccess              uint32 = 0x0000
	ENIPStatusInvalidCommand       uint32 = 0x0001
	ENIPStatusInsufficientMemory   uint32 = 0x0002
	ENIPStatusIncorrectData        uint32 = 0x0003
	ENIPStatusInvalidSessionHandle uint32 = 0x0064
	ENIPStatusInvalidLength        uint32 = 0x0065
	ENIPStatusUnsupportedProtocol  uint32 = 0x0069
)

// HeaderSize is the fixed encapsulation header length.
const HeaderSize = 24

// DefaultPort is the registered EtherNet/IP TCP and UDP port.
const DefaultPort = 44818

// ProtocolVersion is the encapsulation protocol version sent in RegisterSession.
const ProtocolVersion uint16 = 1

var commandNames = map[uint16]string{
	ENIPCommandListServices:      "ListServices",
	ENIPCommandListIdentity:      "ListIdentity",
	ENIPCommandRegisterSession:   "RegisterSession",
	ENIPCommandUnregisterSession: "UnregisterSession",
	ENIPCommandSendRRData:        "SendRRData",
}

// IsKnownCommand reports whether the client understands the command.
func IsKnownCommand(cmd uint16) bool {
	_, ok := commandNames[cmd]
	return ok
}

// CommandName returns a display name for an encapsulation command.
func CommandName(cmd uint16) string {
	if name, ok := commandNames[cmd]; ok {
		return name
	}
	switch cmd {
	case ENIPCommandNOP:
		return "NOP"
	case ENIPCommandListInterfaces:
		return "ListInterfaces"
	case ENIPCommandSendUnitData:
		return "SendUnitData"
	}
	return fmt.Sprintf("Unknown(0x%04X)", cmd)
}

// ENIPEncapsulation represents an EtherNet/IP encapsulation header
// and its payload.
type ENIPEncapsulation struct {
	Command       uint16
	Length        uint16
	SessionID     uint32
	Status        uint32
	SenderContext [8]byte
	Options       uint32
	Data          []byte
}

// EncodeENIP encodes an EtherNet/IP encapsulation packet. The length field
// is always taken from len(Data).
func EncodeENIP(encap ENIPEncapsulation) []byte {
	order := codec.Order
	packet := make([]byte, HeaderSize, HeaderSize+len(encap.Data))
	codec.PutUint16(order, packet[0:2], encap.Command)
	codec.PutUint16(order, packet[2:4], uint16(len(encap.Data)))
	codec.PutUint32(order, packet[4:8], encap.SessionID)
	codec.PutUint32(order, packet[8:12], encap.Status)
	copy(packet[12:20], encap.SenderContext[:])
	codec.PutUint32(order, packet[20:24], encap.Options)
	return append(packet, encap.Data...)
}

// DecodeHeader parses the fixed 24-byte header. Data is left nil.
func DecodeHeader(header []byte) (ENIPEncapsulation, error) {
	if len(header) < HeaderSize {
		return ENIPEncapsulation{}, &errors.FramingError{Reason: fmt.Sprintf("header too short: %d bytes (minimum %d)", len(header), HeaderSize)}
	}
	order := codec.Order
	encap := ENIPEncapsulation{
		Command:   order.Uint16(header[0:2]),
		Length:    order.Uint16(header[2:4]),
		SessionID: order.Uint32(header[4:8]),
		Status:    order.Uint32(header[8:12]),
		Options:   order.Uint32(header[20:24]),
	}
	copy(encap.SenderContext[:], header[12:20])
	return encap, nil
}

// DecodeENIP decodes one complete EtherNet/IP encapsulation packet.
// The declared length must match the bytes that follow the header exactly
// and the command must be one the client understands.
func DecodeENIP(data []byte) (ENIPEncapsulation, error) {
	encap, err := DecodeHeader(data)
	if err != nil {
		return ENIPEncapsulation{}, err
	}
	payload := data[HeaderSize:]
	if int(encap.Length) != len(payload) {
		return ENIPEncapsulation{}, &errors.FramingError{
			Reason: fmt.Sprintf("declared length %d, %d payload bytes available", encap.Length, len(payload)),
		}
	}
	if !IsKnownCommand(encap.Command) {
		return ENIPEncapsulation{}, &errors.FramingError{Reason: fmt.Sprintf("unrecognized command 0x%04X", encap.Command)}
	}
	if len(payload) > 0 {
		encap.Data = append([]byte(nil), payload...)
	}
	return encap, nil
}

// BuildRegisterSession builds a RegisterSession encapsulation
// (protocol version 1, option flags 0).
func BuildRegisterSession(senderContext [8]byte) []byte {
	var regData []byte
	regData = codec.AppendUint16(codec.Order, regData, ProtocolVersion)
	regData = codec.AppendUint16(codec.Order, regData, 0)

	return EncodeENIP(ENIPEncapsulation{
		Command:       ENIPCommandRegisterSession,
		SenderContext: senderContext,
		Data:          regData,
	})
}

// BuildUnregisterSession builds an UnregisterSession encapsulation
func BuildUnregisterSession(sessionID uint32, senderContext [8]byte) []byte {
	return EncodeENIP(ENIPEncapsulation{
		Command:       ENIPCommandUnregisterSession,
		SessionID:     sessionID,
		SenderContext: senderContext,
	})
}

// BuildListIdentity builds a ListIdentity encapsulation. Discovery always
// uses session handle 0.
func BuildListIdentity(senderContext [8]byte) []byte {
	return EncodeENIP(ENIPEncapsulation{
		Command:       ENIPCommandListIdentity,
		SenderContext: senderContext,
	})
}

// BuildListServices builds a ListServices encapsulation
func BuildListServices(senderContext [8]byte) []byte {
	return EncodeENIP(ENIPEncapsulation{
		Command:       ENIPCommandListServices,
		SenderContext: senderContext,
	})
}

// BuildSendRRData builds a SendRRData encapsulation carrying an
// unconnected CIP message in a common packet format envelope.
func BuildSendRRData(sessionID uint32, senderContext [8]byte, timeout uint16, cipData []byte) []byte {
	return EncodeENIP(ENIPEncapsulation{
		Command:       ENIPCommandSendRRData,
		SessionID:     sessionID,
		SenderContext: senderContext,
		Data:          BuildSendRRDataPayload(timeout, cipData),
	})
}

// ParseRegisterSessionReply validates the RegisterSession reply body.
func ParseRegisterSessionReply(data []byte) (uint16, error) {
	r := codec.NewReader(data)
	version := r.Uint16()
	_ = r.Uint16()
	if r.Err() != nil {
		return 0, &errors.FramingError{Reason: "RegisterSession reply too short", Err: r.Err()}
	}
	return version, nil
}
