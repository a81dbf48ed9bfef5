package client

import (
	"context"
	"fmt"

	"github.com/tturner/etherip/internal/cip/protocol"
	"github.com/tturner/etherip/internal/cip/spec"
	"github.com/tturner/etherip/internal/cip/types"
	"github.com/tturner/etherip/internal/errors"
)

// maxBatchRequestBytes keeps one Multiple Service Packet inside the
// 504-byte unconnected message limit of Logix controllers, leaving room for
// the Unconnected Send envelope.
const maxBatchRequestBytes = 460

// TagRequest is one item of a batch. Count applies to reads, Value to writes.
type TagRequest struct {
	Name  string
	Index *uint32
	Count uint16
	Value types.Value
}

// Label renders the tag as "Name" or "Name[i]".
func (r TagRequest) Label() string {
	return tagLabel(r.Name, r.Index)
}

// BatchResult is the outcome of one batch item. Value is set for reads
// that succeeded.
type BatchResult struct {
	Tag   string
	Value types.Value
	Err   error
}

// ReadTags reads several tags with Multiple Service Packets. Each item
// succeeds or fails on its own; the returned error is set only when the
// session itself failed.
func (s *Session) ReadTags(ctx context.Context, reqs []TagRequest) ([]BatchResult, error) {
	return s.batch(ctx, "ReadTags", reqs, false)
}

// WriteTags writes several tags with Multiple Service Packets.
func (s *Session) WriteTags(ctx context.Context, reqs []TagRequest) ([]BatchResult, error) {
	return s.batch(ctx, "WriteTags", reqs, true)
}

type pending struct {
	index int
	req   protocol.CIPRequest
	size  int
}

func (s *Session) batch(ctx context.Context, op string, reqs []TagRequest, write bool) ([]BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRegistered(op); err != nil {
		return nil, err
	}

	results := make([]BatchResult, len(reqs))
	var items []pending
	for i, r := range reqs {
		results[i].Tag = r.Label()
		var (
			req protocol.CIPRequest
			err error
		)
		if write {
			req, err = writeRequest(r.Name, r.Index, r.Value)
		} else {
			req, err = readRequest(r.Name, r.Index, r.Count)
		}
		if err != nil {
			results[i].Err = err
			continue
		}
		items = append(items, pending{index: i, req: req, size: len(protocol.EncodeCIPRequest(req))})
	}

	for _, chunk := range chunkBatch(items) {
		if err := s.sendBatch(ctx, op, chunk, reqs, results); err != nil {
			return results, err
		}
	}
	return results, nil
}

// chunkBatch splits items so each packet stays under the size and count
// limits. An item too large on its own still gets a packet to itself.
func chunkBatch(items []pending) [][]pending {
	var (
		chunks  [][]pending
		current []pending
		size    int
	)
	for _, it := range items {
		// two bytes of offset table per item
		cost := it.size + 2
		if len(current) > 0 && (size+cost > maxBatchRequestBytes || len(current) == protocol.MaxMultipleServiceCount) {
			chunks = append(chunks, current)
			current, size = nil, 0
		}
		current = append(current, it)
		size += cost
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func (s *Session) sendBatch(ctx context.Context, op string, chunk []pending, reqs []TagRequest, results []BatchResult) error {
	embedded := make([]protocol.CIPRequest, len(chunk))
	for i, it := range chunk {
		embedded[i] = it.req
	}
	msp, err := protocol.BuildMultipleServiceRequest(embedded)
	if err != nil {
		return err
	}

	resp, err := s.roundTrip(ctx, op, msp, s.defaultRoute())
	if err != nil {
		markAll(chunk, results, err)
		return err
	}

	// 0x1E means some embedded service failed; the per-item replies follow.
	if resp.Service == spec.CIPServiceMultipleService.Reply() && (resp.Status == 0x00 || resp.Status == 0x1E) {
		subs, perr := protocol.ParseMultipleServiceResponsePayload(resp.Payload)
		if perr == nil && len(subs) != len(chunk) {
			perr = &errors.ProtocolError{Reason: fmt.Sprintf("%s: %d replies for %d requests", op, len(subs), len(chunk))}
		}
		if perr != nil {
			err = s.fail(perr)
			markAll(chunk, results, err)
			return err
		}
		for i, it := range chunk {
			results[it.index].Value, results[it.index].Err = itemResult(it.req, subs[i], reqs[it.index].Count)
		}
		return nil
	}

	err = protocol.CheckReply(msp.Service, resp)
	if err == nil {
		err = &errors.ProtocolError{Reason: fmt.Sprintf("%s: unexpected reply status 0x%02X", op, resp.Status)}
	}
	if errors.IsFatal(err) {
		err = s.fail(err)
		markAll(chunk, results, err)
		return err
	}
	markAll(chunk, results, err)
	return nil
}

func itemResult(req protocol.CIPRequest, resp protocol.CIPResponse, count uint16) (types.Value, error) {
	if err := protocol.CheckReply(req.Service, resp); err != nil {
		return types.Value{}, err
	}
	if req.Service != spec.CIPServiceReadTag {
		return types.Value{}, nil
	}
	return protocol.DecodeReadTagReply(resp.Payload, count)
}

func markAll(chunk []pending, results []BatchResult, err error) {
	for _, it := range chunk {
		results[it.index].Err = err
	}
}
