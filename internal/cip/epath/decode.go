package epath

import (
	"fmt"
	"strings"

	"github.com/tturner/etherip/internal/cip/codec"
)

// Symbolic is a decoded symbolic path.
type Symbolic struct {
	Name     string
	Index    uint32
	HasIndex bool
}

// String renders the path as Name or Name[index].
func (s Symbolic) String() string {
	if s.HasIndex {
		return fmt.Sprintf("%s[%d]", s.Name, s.Index)
	}
	return s.Name
}

// DecodeSymbolic decodes symbolic segments and a trailing element segment.
func DecodeSymbolic(data []byte) (Symbolic, error) {
	if len(data) < 2 || data[0] != SegmentSymbolic {
		return Symbolic{}, fmt.Errorf("not a symbolic EPATH")
	}
	var out Symbolic
	var names []string
	r := codec.NewReader(data)
	for r.Len() > 0 {
		if out.HasIndex {
			return Symbolic{}, fmt.Errorf("segment after element index at offset %d", r.Offset())
		}
		switch seg := r.Uint8(); seg {
		case SegmentSymbolic:
			n := int(r.Uint8())
			name := r.Bytes(n)
			if r.Err() != nil {
				return Symbolic{}, fmt.Errorf("incomplete symbolic segment: %w", r.Err())
			}
			names = append(names, string(name))
			if n%2 != 0 && r.Len() > 0 {
				r.Skip(1)
			}
		case SegmentElement8:
			out.Index, out.HasIndex = uint32(r.Uint8()), true
		case SegmentElement16:
			r.Skip(1)
			out.Index, out.HasIndex = uint32(r.Uint16()), true
		case SegmentElement32:
			r.Skip(1)
			out.Index, out.HasIndex = r.Uint32(), true
		default:
			return Symbolic{}, fmt.Errorf("invalid symbolic segment: 0x%02X", seg)
		}
		if r.Err() != nil {
			return Symbolic{}, fmt.Errorf("incomplete segment: %w", r.Err())
		}
	}
	out.Name = strings.Join(names, ".")
	return out, nil
}

// LogicalPath is a decoded class/instance/attribute path.
type LogicalPath struct {
	Class        uint16
	Instance     uint16
	Attribute    uint16
	HasAttribute bool
}

// DecodeLogical decodes class, instance and optional attribute segments.
func DecodeLogical(data []byte) (LogicalPath, error) {
	var out LogicalPath
	var haveClass, haveInstance bool
	r := codec.NewReader(data)
	for r.Len() > 0 {
		seg := r.Uint8()
		var id uint16
		switch seg & 0x03 {
		case 0x00:
			id = uint16(r.Uint8())
		case 0x01:
			r.Skip(1)
			id = r.Uint16()
		default:
			return LogicalPath{}, fmt.Errorf("unsupported logical format 0x%02X", seg)
		}
		if r.Err() != nil {
			return LogicalPath{}, fmt.Errorf("incomplete logical segment: %w", r.Err())
		}
		switch seg &^ 0x03 {
		case SegmentClassID:
			out.Class, haveClass = id, true
		case SegmentInstanceID:
			out.Instance, haveInstance = id, true
		case SegmentAttributeID:
			out.Attribute, out.HasAttribute = id, true
		default:
			return LogicalPath{}, fmt.Errorf("unsupported logical segment 0x%02X", seg)
		}
	}
	if !haveClass || !haveInstance {
		return LogicalPath{}, fmt.Errorf("logical path needs class and instance")
	}
	return out, nil
}
