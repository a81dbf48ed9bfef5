package epath

// CIP EPATH construction: symbolic tag segments, member (element) segments,
// logical class/instance/attribute segments and port segments.

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tturner/etherip/internal/cip/codec"
	"github.com/tturner/etherip/internal/errors"
)

// Segment type bytes.
const (
	SegmentSymbolic    = 0x91
	SegmentElement8    = 0x28
	SegmentElement16   = 0x29
	SegmentElement32   = 0x2A
	SegmentClassID     = 0x20
	SegmentInstanceID  = 0x24
	SegmentAttributeID = 0x30
)

// MaxSymbolLength is the longest name a single symbolic segment can carry.
const MaxSymbolLength = 255

// Path is an encoded, word-aligned EPATH.
type Path []byte

// Words returns the path size in 16-bit words as carried in CIP requests.
func (p Path) Words() uint8 {
	return uint8((len(p) + 1) / 2)
}

// Build encodes a symbolic tag name followed by at most one element index.
// Dotted names become one symbolic segment per member.
func Build(name string, index ...uint32) (Path, error) {
	if len(index) > 1 {
		return nil, fmt.Errorf("%w: at most one element index, got %d", errors.ErrInvalidTagName, len(index))
	}
	path, err := BuildSymbolic(name)
	if err != nil {
		return nil, err
	}
	if len(index) == 1 {
		path = append(path, Element(index[0])...)
	}
	return path, nil
}

// BuildSymbolic encodes a tag name as ANSI extended symbolic segments (0x91).
func BuildSymbolic(name string) (Path, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is empty", errors.ErrInvalidTagName)
	}
	var path Path
	for _, seg := range strings.Split(name, ".") {
		if err := validateSymbol(name, seg); err != nil {
			return nil, err
		}
		path = append(path, SegmentSymbolic, byte(len(seg)))
		path = append(path, seg...)
		if len(seg)%2 != 0 {
			path = append(path, 0x00)
		}
	}
	return path, nil
}

func validateSymbol(name, seg string) error {
	if seg == "" {
		return fmt.Errorf("%w: %q has an empty member name", errors.ErrInvalidTagName, name)
	}
	if len(seg) > MaxSymbolLength {
		return fmt.Errorf("%w: member %q exceeds %d characters", errors.ErrInvalidTagName, seg, MaxSymbolLength)
	}
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if c < 0x21 || c > 0x7E || c == '[' || c == ']' {
			return fmt.Errorf("%w: %q contains invalid character 0x%02X", errors.ErrInvalidTagName, name, c)
		}
	}
	return nil
}

// Element encodes a member segment using the narrowest width that holds index.
func Element(index uint32) []byte {
	switch {
	case index <= 0xFF:
		return []byte{SegmentElement8, byte(index)}
	case index <= 0xFFFF:
		return codec.AppendUint16(codec.Order, []byte{SegmentElement16, 0x00}, uint16(index))
	default:
		return codec.AppendUint32(codec.Order, []byte{SegmentElement32, 0x00}, index)
	}
}

// Logical encodes class/instance and optional attribute segments.
// IDs above 0xFF use the padded 16-bit form.
func Logical(class, instance uint16, attribute ...uint16) Path {
	var path Path
	path = appendLogical(path, SegmentClassID, class)
	path = appendLogical(path, SegmentInstanceID, instance)
	for _, attr := range attribute {
		path = appendLogical(path, SegmentAttributeID, attr)
	}
	return path
}

func appendLogical(path Path, segment byte, id uint16) Path {
	if id <= 0xFF {
		return append(path, segment, byte(id))
	}
	return codec.AppendUint16(codec.Order, append(path, segment|0x01, 0x00), id)
}

// Port encodes a port segment with a one byte link address, as used for
// backplane routing ({0x01, slot}).
func Port(port, link uint8) Path {
	return Path{port & 0x0F, link}
}

// ParseTagSpec splits "Name[5]" into the name and its element index.
// A name without brackets returns no index.
func ParseTagSpec(spec string) (string, []uint32, error) {
	spec = strings.TrimSpace(spec)
	open := strings.IndexByte(spec, '[')
	if open < 0 {
		if strings.IndexByte(spec, ']') >= 0 {
			return "", nil, fmt.Errorf("%w: unbalanced ']' in %q", errors.ErrInvalidTagName, spec)
		}
		return spec, nil, nil
	}
	if !strings.HasSuffix(spec, "]") {
		return "", nil, fmt.Errorf("%w: element index must close the tag spec %q", errors.ErrInvalidTagName, spec)
	}
	inner := spec[open+1 : len(spec)-1]
	if strings.ContainsAny(inner, "[],") {
		return "", nil, fmt.Errorf("%w: only one element index is supported in %q", errors.ErrInvalidTagName, spec)
	}
	idx, err := strconv.ParseUint(strings.TrimSpace(inner), 0, 32)
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad element index in %q", errors.ErrInvalidTagName, spec)
	}
	return spec[:open], []uint32{uint32(idx)}, nil
}
