package errors

import "fmt"

// UnknownCIPStatus is the category for general status codes outside the table.
const UnknownCIPStatus = "unknown CIP error"

var generalStatusNames = map[uint8]string{
	0x00: "success",
	0x01: "connection failure",
	0x02: "resource unavailable",
	0x03: "invalid parameter value",
	0x04: "path segment error",
	0x05: "path destination unknown",
	0x06: "partial transfer",
	0x07: "connection lost",
	0x08: "service not supported",
	0x09: "invalid attribute value",
	0x0A: "attribute list error",
	0x0B: "already in requested mode/state",
	0x0C: "object state conflict",
	0x0D: "object already exists",
	0x0E: "attribute not settable",
	0x0F: "privilege violation",
	0x10: "device state conflict",
	0x11: "reply data too large",
	0x12: "fragmentation of a primitive value",
	0x13: "not enough data",
	0x14: "attribute not supported",
	0x15: "too much data",
	0x16: "object does not exist",
	0x17: "service fragmentation sequence not in progress",
	0x18: "no stored attribute data",
	0x19: "store operation failure",
	0x1A: "routing failure, request packet too large",
	0x1B: "routing failure, response packet too large",
	0x1C: "missing attribute list entry data",
	0x1D: "invalid attribute value list",
	0x1E: "embedded service error",
	0x1F: "vendor specific error",
	0x20: "invalid parameter",
	0x21: "write-once value or medium already written",
	0x22: "invalid reply received",
	0x25: "key failure in path",
	0x26: "path size invalid",
	0x27: "unexpected attribute in list",
	0x28: "invalid member ID",
	0x29: "member not settable",
	0xFF: "general error",
}

// GeneralStatusName maps a CIP general status code to its category.
// Codes outside the table map to UnknownCIPStatus.
func GeneralStatusName(status uint8) string {
	if name, ok := generalStatusNames[status]; ok {
		return name
	}
	return UnknownCIPStatus
}

// KnownGeneralStatuses returns the codes that have a category.
func KnownGeneralStatuses() []uint8 {
	codes := make([]uint8, 0, len(generalStatusNames))
	for code := range generalStatusNames {
		codes = append(codes, code)
	}
	return codes
}

var encapStatusNames = map[uint32]string{
	0x0000: "success",
	0x0001: "invalid or unsupported command",
	0x0002: "insufficient memory",
	0x0003: "incorrect data",
	0x0064: "invalid session handle",
	0x0065: "invalid length",
	0x0069: "unsupported protocol version",
}

// EncapStatusName maps an encapsulation status to a description.
func EncapStatusName(status uint32) string {
	if name, ok := encapStatusNames[status]; ok {
		return name
	}
	return fmt.Sprintf("unknown encapsulation status 0x%08X", status)
}
