package types

import (
	"fmt"
	"strconv"
	"strings"
)

// CIPDataType is the 16-bit type code carried in Read/Write Tag payloads.
type CIPDataType uint16

const (
	CIPTypeBOOL   CIPDataType = 0x00C1
	CIPTypeSINT   CIPDataType = 0x00C2
	CIPTypeINT    CIPDataType = 0x00C3
	CIPTypeDINT   CIPDataType = 0x00C4
	CIPTypeLINT   CIPDataType = 0x00C5
	CIPTypeUSINT  CIPDataType = 0x00C6
	CIPTypeUINT   CIPDataType = 0x00C7
	CIPTypeUDINT  CIPDataType = 0x00C8
	CIPTypeREAL   CIPDataType = 0x00CA
	CIPTypeLREAL  CIPDataType = 0x00CB
	CIPTypeSTRING CIPDataType = 0x00D0
	CIPTypeDWORD  CIPDataType = 0x00D3
	CIPTypeSTRUCT CIPDataType = 0x02A0
)

type typeInfo struct {
	name     string
	width    int
	integer  bool
	floating bool
}

var typeTable = map[CIPDataType]typeInfo{
	CIPTypeBOOL:   {name: "BOOL", width: 1, integer: true},
	CIPTypeSINT:   {name: "SINT", width: 1, integer: true},
	CIPTypeINT:    {name: "INT", width: 2, integer: true},
	CIPTypeDINT:   {name: "DINT", width: 4, integer: true},
	CIPTypeLINT:   {name: "LINT", width: 8, integer: true},
	CIPTypeUSINT:  {name: "USINT", width: 1, integer: true},
	CIPTypeUINT:   {name: "UINT", width: 2, integer: true},
	CIPTypeUDINT:  {name: "UDINT", width: 4, integer: true},
	CIPTypeREAL:   {name: "REAL", width: 4, floating: true},
	CIPTypeLREAL:  {name: "LREAL", width: 8, floating: true},
	CIPTypeSTRING: {name: "STRING"},
	CIPTypeDWORD:  {name: "DWORD", width: 4, integer: true},
	CIPTypeSTRUCT: {name: "STRUCT"},
}

// Known reports whether the type code is supported.
func (dt CIPDataType) Known() bool {
	_, ok := typeTable[dt]
	return ok
}

// Width returns the per-element size in bytes, or 0 for STRING and STRUCT
// whose size comes from the payload.
func (dt CIPDataType) Width() int {
	return typeTable[dt].width
}

// IsInteger reports whether elements convert to int64. BOOL and DWORD count.
func (dt CIPDataType) IsInteger() bool {
	return typeTable[dt].integer
}

// IsFloat reports REAL and LREAL.
func (dt CIPDataType) IsFloat() bool {
	return typeTable[dt].floating
}

func (dt CIPDataType) String() string {
	if info, ok := typeTable[dt]; ok {
		return info.name
	}
	return fmt.Sprintf("UNKNOWN(0x%04X)", uint16(dt))
}

// intRange returns the inclusive bounds a SetInt value must fall in.
func (dt CIPDataType) intRange() (int64, int64) {
	switch dt {
	case CIPTypeBOOL:
		return 0, 1
	case CIPTypeSINT:
		return -1 << 7, 1<<7 - 1
	case CIPTypeINT:
		return -1 << 15, 1<<15 - 1
	case CIPTypeDINT:
		return -1 << 31, 1<<31 - 1
	case CIPTypeUSINT:
		return 0, 1<<8 - 1
	case CIPTypeUINT:
		return 0, 1<<16 - 1
	case CIPTypeUDINT, CIPTypeDWORD:
		return 0, 1<<32 - 1
	default:
		return -1 << 63, 1<<63 - 1
	}
}

// ParseCIPDataType parses a CIP data type from hex or alias name.
func ParseCIPDataType(input string) (CIPDataType, error) {
	clean := strings.TrimSpace(input)
	if clean == "" {
		return 0, fmt.Errorf("data type is required")
	}
	if val, err := strconv.ParseUint(clean, 0, 16); err == nil {
		dt := CIPDataType(val)
		if !dt.Known() {
			return 0, fmt.Errorf("unsupported data type 0x%04X", val)
		}
		return dt, nil
	}
	upper := strings.ToUpper(clean)
	for dt, info := range typeTable {
		if info.name == upper {
			return dt, nil
		}
	}
	return 0, fmt.Errorf("unsupported data type %q", input)
}
