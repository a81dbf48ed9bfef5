package spec

// ServiceCode is a CIP service code as carried in the first byte of a
// Message Router request. Replies set the high bit.
type ServiceCode uint8

// ReplyBit is OR-ed into the service code of every Message Router reply.
const ReplyBit ServiceCode = 0x80

// CIP service codes used by the client and the simulator.
const (
	CIPServiceGetAttributeAll    ServiceCode = 0x01
	CIPServiceSetAttributeAll    ServiceCode = 0x02
	CIPServiceGetAttributeList   ServiceCode = 0x03
	CIPServiceSetAttributeList   ServiceCode = 0x04
	CIPServiceReset              ServiceCode = 0x05
	CIPServiceMultipleService    ServiceCode = 0x0A
	CIPServiceGetAttributeSingle ServiceCode = 0x0E
	CIPServiceSetAttributeSingle ServiceCode = 0x10
	CIPServiceReadTag            ServiceCode = 0x4C
	CIPServiceWriteTag           ServiceCode = 0x4D
	CIPServiceReadModifyWrite    ServiceCode = 0x4E
	CIPServiceUnconnectedSend    ServiceCode = 0x52
	CIPServiceReadTagFragmented  ServiceCode = 0x52
	CIPServiceWriteTagFragmented ServiceCode = 0x53
	CIPServiceForwardOpen        ServiceCode = 0x54
	CIPServiceForwardClose       ServiceCode = 0x4E
)

// IsReply reports whether the reply bit is set.
func (s ServiceCode) IsReply() bool {
	return s&ReplyBit != 0
}

// Request strips the reply bit.
func (s ServiceCode) Request() ServiceCode {
	return s &^ ReplyBit
}

// Reply sets the reply bit.
func (s ServiceCode) Reply() ServiceCode {
	return s | ReplyBit
}

func (s ServiceCode) String() string {
	if s.IsReply() {
		return ServiceName(s.Request()) + "_Response"
	}
	return ServiceName(s)
}
