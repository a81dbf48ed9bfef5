package enip

import (
	"bytes"
	"fmt"
	"net"

	"github.com/tturner/etherip/internal/cip/codec"
	"github.com/tturner/etherip/internal/errors"
)

// IdentityRecord is one identity item from a ListIdentity reply, or the
// Identity object attributes read with Get Attributes All.
type IdentityRecord struct {
	ProtocolVersion uint16
	IP              net.IP
	Port            uint16
	VendorID        uint16
	DeviceType      uint16
	ProductCode     uint16
	RevisionMajor   uint8
	RevisionMinor   uint8
	Status          uint16
	SerialNumber    uint32
	ProductName     string
	State           uint8
}

// Revision returns the firmware revision as major.minor.
func (r IdentityRecord) Revision() string {
	return fmt.Sprintf("%d.%03d", r.RevisionMajor, r.RevisionMinor)
}

// VendorName returns a human-readable vendor name for common vendors.
func (r IdentityRecord) VendorName() string {
	switch r.VendorID {
	case 1:
		return "Rockwell Automation"
	case 2:
		return "Schneider Electric"
	case 5:
		return "Omron"
	case 26:
		return "Turck"
	case 40:
		return "Molex"
	case 50:
		return "SICK"
	case 88:
		return "Cognex"
	default:
		return fmt.Sprintf("Vendor %d", r.VendorID)
	}
}

var deviceTypeNames = map[uint16]string{
	0x00: "Generic Device",
	0x02: "AC Drive",
	0x03: "Motor Overload",
	0x07: "General Purpose Discrete I/O",
	0x0C: "Communications Adapter",
	0x0E: "Programmable Logic Controller",
	0x10: "Position Controller",
	0x13: "DC Drive",
	0x25: "Encoder",
	0x26: "Safety Discrete I/O Device",
	0x2B: "Mass Flow Controller Enhanced",
	0x2C: "CIP Modbus Device",
	0x30: "Managed Ethernet Switch",
}

// DeviceTypeName returns a human-readable device type name.
func (r IdentityRecord) DeviceTypeName() string {
	if name, ok := deviceTypeNames[r.DeviceType]; ok {
		return name
	}
	return fmt.Sprintf("Device Type 0x%02X", r.DeviceType)
}

func (r IdentityRecord) String() string {
	return fmt.Sprintf("%s (%s) - %s v%s [SN: %08X]",
		r.ProductName, r.DeviceTypeName(), r.VendorName(), r.Revision(), r.SerialNumber)
}

// ParseListIdentityReply decodes every identity item in a ListIdentity
// reply body. Items of other types are skipped; an empty list is valid.
// Malformed bodies are reported as *errors.FramingError.
func ParseListIdentityReply(data []byte) ([]IdentityRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	items, err := DecodeCPFItems(data)
	if err != nil {
		return nil, &errors.FramingError{Reason: "ListIdentity reply", Err: err}
	}
	records := make([]IdentityRecord, 0, len(items))
	for i, item := range items {
		if item.TypeID != CPFItemListIdentity {
			continue
		}
		rec, err := ParseIdentityItem(item.Data)
		if err != nil {
			return nil, &errors.FramingError{Reason: fmt.Sprintf("ListIdentity item %d", i), Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseIdentityItem decodes the body of a ListIdentity item (type 0x0C).
// The socket address is big-endian, everything else little-endian.
func ParseIdentityItem(data []byte) (IdentityRecord, error) {
	r := codec.NewReader(data)
	var rec IdentityRecord
	rec.ProtocolVersion = r.Uint16()
	sock := r.Bytes(16)
	if r.Err() != nil {
		return IdentityRecord{}, fmt.Errorf("socket address truncated: %w", r.Err())
	}
	rec.Port = uint16(sock[2])<<8 | uint16(sock[3])
	rec.IP = net.IPv4(sock[4], sock[5], sock[6], sock[7])
	if err := readIdentityBody(r, &rec); err != nil {
		return IdentityRecord{}, err
	}
	rec.State = r.Uint8()
	if r.Err() != nil {
		return IdentityRecord{}, fmt.Errorf("missing state byte: %w", r.Err())
	}
	return rec, nil
}

// ParseIdentityAttributes decodes Identity object instance attributes 1-7
// as returned by Get Attributes All.
func ParseIdentityAttributes(data []byte) (IdentityRecord, error) {
	var rec IdentityRecord
	if err := readIdentityBody(codec.NewReader(data), &rec); err != nil {
		return IdentityRecord{}, &errors.FramingError{Reason: "Identity attributes", Err: err}
	}
	return rec, nil
}

func readIdentityBody(r *codec.Reader, rec *IdentityRecord) error {
	rec.VendorID = r.Uint16()
	rec.DeviceType = r.Uint16()
	rec.ProductCode = r.Uint16()
	rec.RevisionMajor = r.Uint8()
	rec.RevisionMinor = r.Uint8()
	rec.Status = r.Uint16()
	rec.SerialNumber = r.Uint32()
	nameLen := int(r.Uint8())
	name := r.Bytes(nameLen)
	if r.Err() != nil {
		return fmt.Errorf("identity truncated: %w", r.Err())
	}
	rec.ProductName = string(name)
	return nil
}

// EncodeIdentityAttributes encodes attributes 1-7 in Get Attributes All order.
func EncodeIdentityAttributes(rec IdentityRecord) []byte {
	order := codec.Order
	out := codec.AppendUint16(order, nil, rec.VendorID)
	out = codec.AppendUint16(order, out, rec.DeviceType)
	out = codec.AppendUint16(order, out, rec.ProductCode)
	out = append(out, rec.RevisionMajor, rec.RevisionMinor)
	out = codec.AppendUint16(order, out, rec.Status)
	out = codec.AppendUint32(order, out, rec.SerialNumber)
	name := rec.ProductName
	if len(name) > 0xFF {
		name = name[:0xFF]
	}
	out = append(out, byte(len(name)))
	return append(out, name...)
}

// EncodeIdentityItem encodes the body of a ListIdentity item.
func EncodeIdentityItem(rec IdentityRecord) []byte {
	out := codec.AppendUint16(codec.Order, nil, rec.ProtocolVersion)
	sock := make([]byte, 16)
	sock[1] = 0x02 // AF_INET, big-endian
	sock[2], sock[3] = byte(rec.Port>>8), byte(rec.Port)
	if ip4 := rec.IP.To4(); ip4 != nil {
		copy(sock[4:8], ip4)
	}
	out = append(out, sock...)
	out = append(out, EncodeIdentityAttributes(rec)...)
	return append(out, rec.State)
}

// ServiceRecord is one item from a ListServices reply.
type ServiceRecord struct {
	TypeCode     uint16
	Version      uint16
	Capabilities uint16
	Name         string
}

// Capability flags.
const (
	ServiceCapabilityCIPOverTCP uint16 = 1 << 5
	ServiceCapabilityClass01UDP uint16 = 1 << 8
)

// SupportsTCP reports CIP encapsulation over TCP.
func (s ServiceRecord) SupportsTCP() bool {
	return s.Capabilities&ServiceCapabilityCIPOverTCP != 0
}

// SupportsUDP reports class 0/1 I/O over UDP.
func (s ServiceRecord) SupportsUDP() bool {
	return s.Capabilities&ServiceCapabilityClass01UDP != 0
}

// ParseListServicesReply decodes every item in a ListServices reply body.
func ParseListServicesReply(data []byte) ([]ServiceRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	items, err := DecodeCPFItems(data)
	if err != nil {
		return nil, &errors.FramingError{Reason: "ListServices reply", Err: err}
	}
	records := make([]ServiceRecord, 0, len(items))
	for i, item := range items {
		r := codec.NewReader(item.Data)
		rec := ServiceRecord{TypeCode: item.TypeID}
		rec.Version = r.Uint16()
		rec.Capabilities = r.Uint16()
		name := r.Bytes(16)
		if r.Err() != nil {
			return nil, &errors.FramingError{Reason: fmt.Sprintf("ListServices item %d truncated", i), Err: r.Err()}
		}
		if idx := bytes.IndexByte(name, 0); idx >= 0 {
			name = name[:idx]
		}
		rec.Name = string(name)
		records = append(records, rec)
	}
	return records, nil
}

// EncodeServiceItem encodes a ListServices item.
func EncodeServiceItem(rec ServiceRecord) CPFItem {
	data := codec.AppendUint16(codec.Order, nil, rec.Version)
	data = codec.AppendUint16(codec.Order, data, rec.Capabilities)
	name := make([]byte, 16)
	copy(name[:15], rec.Name)
	return CPFItem{TypeID: rec.TypeCode, Data: append(data, name...)}
}
