package server

// Tag table of the simulated controller.

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/tturner/etherip/internal/cip/epath"
	"github.com/tturner/etherip/internal/cip/types"
	"github.com/tturner/etherip/internal/config"
)

// Tag is one controller tag.
type Tag struct {
	Name     string
	Value    types.Value
	ReadOnly bool
	Update   string

	counter   int64
	sinePhase float64
}

type tagStore struct {
	mu   sync.Mutex
	tags map[string]*Tag
}

func newTagStore(cfgs []config.ServerTagConfig) (*tagStore, error) {
	ts := &tagStore{tags: make(map[string]*Tag, len(cfgs))}
	for _, cfg := range cfgs {
		v, err := cfg.InitialValue()
		if err != nil {
			return nil, fmt.Errorf("tag %s: %w", cfg.Name, err)
		}
		ts.tags[strings.ToLower(cfg.Name)] = &Tag{
			Name:     cfg.Name,
			Value:    v.Clone(),
			ReadOnly: cfg.ReadOnly,
			Update:   strings.ToLower(cfg.Update),
		}
	}
	return ts, nil
}

// Logix tag names are case-insensitive.
func (ts *tagStore) lookup(name string) (*Tag, bool) {
	tag, ok := ts.tags[strings.ToLower(name)]
	return tag, ok
}

func (ts *tagStore) read(sym epath.Symbolic, count uint16) (types.Value, uint8, []uint16) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	tag, ok := ts.lookup(sym.Name)
	if !ok {
		return types.Value{}, statusPathUnknown, nil
	}
	tag.advance()

	dt := tag.Value.Type()
	w := dt.Width()
	if w == 0 {
		if sym.Index != 0 || count != 1 {
			return types.Value{}, statusVendor, []uint16{extOutOfRange}
		}
		return tag.Value, statusSuccess, nil
	}
	start, end := int(sym.Index), int(sym.Index)+int(count)
	if count == 0 || end > tag.Value.Count() {
		return types.Value{}, statusVendor, []uint16{extOutOfRange}
	}
	data := tag.Value.Encode()
	v, err := types.Decode(dt, data[start*w:end*w])
	if err != nil {
		return types.Value{}, statusVendor, []uint16{extTypeMismatch}
	}
	return v, statusSuccess, nil
}

func (ts *tagStore) write(sym epath.Symbolic, value types.Value) (uint8, []uint16) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	tag, ok := ts.lookup(sym.Name)
	if !ok {
		return statusPathUnknown, nil
	}
	if tag.ReadOnly {
		return statusPrivilege, nil
	}
	dt := tag.Value.Type()
	if value.Type() != dt {
		return statusVendor, []uint16{extTypeMismatch}
	}

	w := dt.Width()
	if w == 0 {
		if sym.Index != 0 {
			return statusVendor, []uint16{extOutOfRange}
		}
		if dt == types.CIPTypeSTRUCT {
			have, _, _ := tag.Value.StructHandle()
			got, _, _ := value.StructHandle()
			if have != got {
				return statusVendor, []uint16{extTypeMismatch}
			}
		}
		tag.Value = value.Clone()
		return statusSuccess, nil
	}

	start := int(sym.Index)
	if start+value.Count() > tag.Value.Count() {
		return statusVendor, []uint16{extOutOfRange}
	}
	data := tag.Value.Encode()
	copy(data[start*w:], value.Encode())
	updated, err := types.Decode(dt, data)
	if err != nil {
		return statusVendor, []uint16{extTypeMismatch}
	}
	tag.Value = updated.Clone()
	return statusSuccess, nil
}

// get returns a copy of the named tag's value.
func (ts *tagStore) get(name string) (types.Value, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	tag, ok := ts.lookup(name)
	if !ok {
		return types.Value{}, false
	}
	return tag.Value.Clone(), true
}

func (ts *tagStore) set(name string, value types.Value) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	tag, ok := ts.lookup(name)
	if !ok {
		return fmt.Errorf("unknown tag %q", name)
	}
	if value.Type() != tag.Value.Type() {
		return fmt.Errorf("tag %s is %s, not %s", tag.Name, tag.Value.Type(), value.Type())
	}
	tag.Value = value.Clone()
	return nil
}

// advance applies the tag's update pattern to element 0.
func (t *Tag) advance() {
	switch t.Update {
	case "counter":
		t.counter++
		_ = t.Value.SetInt(0, t.counter)
	case "sine":
		t.sinePhase += 0.1
		if t.sinePhase > 2*math.Pi {
			t.sinePhase -= 2 * math.Pi
		}
		_ = t.Value.SetFloat(0, math.Sin(t.sinePhase))
	}
}

// Tag returns a copy of the current value of a tag.
func (s *Server) Tag(name string) (types.Value, bool) {
	return s.tags.get(name)
}

// SetTag replaces the value of an existing tag. The type must match.
func (s *Server) SetTag(name string, value types.Value) error {
	return s.tags.set(name, value)
}
