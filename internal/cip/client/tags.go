package client

import (
	"context"
	"fmt"

	"github.com/tturner/etherip/internal/cip/epath"
	"github.com/tturner/etherip/internal/cip/protocol"
	"github.com/tturner/etherip/internal/cip/types"
)

// ReadTag reads count elements of the named tag starting at element 0.
func (s *Session) ReadTag(ctx context.Context, name string, count uint16) (types.Value, error) {
	return s.readTag(ctx, name, nil, count)
}

// ReadTagElement reads count elements of the named array tag starting at index.
func (s *Session) ReadTagElement(ctx context.Context, name string, index uint32, count uint16) (types.Value, error) {
	return s.readTag(ctx, name, &index, count)
}

func (s *Session) readTag(ctx context.Context, name string, index *uint32, count uint16) (types.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRegistered("read tag"); err != nil {
		return types.Value{}, err
	}
	req, err := readRequest(name, index, count)
	if err != nil {
		return types.Value{}, err
	}
	resp, err := s.invoke(ctx, "ReadTag", tagLabel(name, index), req, s.defaultRoute())
	if err != nil {
		return types.Value{}, err
	}
	return protocol.DecodeReadTagReply(resp.Payload, count)
}

// WriteTag writes value to the named tag starting at element 0.
func (s *Session) WriteTag(ctx context.Context, name string, value types.Value) error {
	return s.writeTag(ctx, name, nil, value)
}

// WriteTagElement writes value to the named array tag starting at index.
func (s *Session) WriteTagElement(ctx context.Context, name string, index uint32, value types.Value) error {
	return s.writeTag(ctx, name, &index, value)
}

func (s *Session) writeTag(ctx context.Context, name string, index *uint32, value types.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRegistered("write tag"); err != nil {
		return err
	}
	req, err := writeRequest(name, index, value)
	if err != nil {
		return err
	}
	_, err = s.invoke(ctx, "WriteTag", tagLabel(name, index), req, s.defaultRoute())
	return err
}

func tagPath(name string, index *uint32) (epath.Path, error) {
	if index != nil {
		return epath.Build(name, *index)
	}
	return epath.Build(name)
}

func readRequest(name string, index *uint32, count uint16) (protocol.CIPRequest, error) {
	path, err := tagPath(name, index)
	if err != nil {
		return protocol.CIPRequest{}, err
	}
	return protocol.NewReadTagRequest(path, count)
}

func writeRequest(name string, index *uint32, value types.Value) (protocol.CIPRequest, error) {
	path, err := tagPath(name, index)
	if err != nil {
		return protocol.CIPRequest{}, err
	}
	return protocol.NewWriteTagRequest(path, value)
}

func tagLabel(name string, index *uint32) string {
	if index == nil {
		return name
	}
	return fmt.Sprintf("%s[%d]", name, *index)
}
