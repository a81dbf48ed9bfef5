package config

import (
	"fmt"
	"strings"

	"github.com/tturner/etherip/internal/cip/epath"
	"github.com/tturner/etherip/internal/cip/types"
	"github.com/tturner/etherip/internal/errors"
)

// Request is one tag operation as given on the command line or in a
// config file. A nil WriteValue means read.
type Request struct {
	Host         string
	Slot         uint8
	TagName      string
	Index        *uint32
	ElementCount uint16
	WriteValue   *types.Value
}

// ParseRequest builds a Request from a tag spec such as "Recipe.Temps[3]".
func ParseRequest(host string, slot uint8, tagSpec string, elements uint16) (Request, error) {
	name, index, err := epath.ParseTagSpec(tagSpec)
	if err != nil {
		return Request{}, err
	}
	req := Request{Host: host, Slot: slot, TagName: name, ElementCount: elements}
	if len(index) == 1 {
		req.Index = &index[0]
	}
	return req, req.Validate()
}

// Validate checks the request before any network traffic happens.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if r.ElementCount == 0 {
		return fmt.Errorf("%w: element count must be > 0", errors.ErrInvalidValue)
	}
	_, err := r.Path()
	return err
}

// IsWrite reports whether the request carries a value.
func (r Request) IsWrite() bool {
	return r.WriteValue != nil
}

// Path encodes the tag name and optional element index.
func (r Request) Path() (epath.Path, error) {
	if r.Index != nil {
		return epath.Build(r.TagName, *r.Index)
	}
	return epath.Build(r.TagName)
}

// Label is the tag spec as a user would type it.
func (r Request) Label() string {
	if r.Index != nil {
		return fmt.Sprintf("%s[%d]", r.TagName, *r.Index)
	}
	return r.TagName
}
