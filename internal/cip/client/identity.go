package client

import (
	"context"

	"github.com/tturner/etherip/internal/cip/protocol"
	"github.com/tturner/etherip/internal/enip"
)

// ListIdentity asks the device for its identity items. An empty result
// is not an error.
func (s *Session) ListIdentity(ctx context.Context) ([]enip.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConnected("list identity"); err != nil {
		return nil, err
	}
	senderContext := s.nextContext()
	reply, err := s.exchange(ctx, "ListIdentity", enip.BuildListIdentity(senderContext), senderContext, enip.ENIPCommandListIdentity)
	if err != nil {
		return nil, err
	}
	records, err := enip.ParseListIdentityReply(reply.Data)
	if err != nil {
		return nil, s.fail(err)
	}
	s.logger.Verbose("ListIdentity from %s: %d item(s)", s.Addr(), len(records))
	return records, nil
}

// ListServices asks the device which encapsulation services it offers.
func (s *Session) ListServices(ctx context.Context) ([]enip.ServiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConnected("list services"); err != nil {
		return nil, err
	}
	senderContext := s.nextContext()
	reply, err := s.exchange(ctx, "ListServices", enip.BuildListServices(senderContext), senderContext, enip.ENIPCommandListServices)
	if err != nil {
		return nil, err
	}
	records, err := enip.ParseListServicesReply(reply.Data)
	if err != nil {
		return nil, s.fail(err)
	}
	s.logger.Verbose("ListServices from %s: %d item(s)", s.Addr(), len(records))
	return records, nil
}

// GetIdentity reads the Identity object of the controller the session
// routes to, using Get Attributes All. It is independent of ListIdentity,
// which describes the device terminating the TCP connection.
func (s *Session) GetIdentity(ctx context.Context) (enip.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getIdentity(ctx, s.defaultRoute())
}

// GetSlotIdentity reads the Identity object of the module in slot.
func (s *Session) GetSlotIdentity(ctx context.Context, slot uint8) (enip.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getIdentity(ctx, route{routed: true, slot: slot})
}

func (s *Session) getIdentity(ctx context.Context, rt route) (enip.IdentityRecord, error) {
	if err := s.requireRegistered("get identity"); err != nil {
		return enip.IdentityRecord{}, err
	}
	resp, err := s.invoke(ctx, "GetIdentity", rt.String(), protocol.NewIdentityRequest(), rt)
	if err != nil {
		return enip.IdentityRecord{}, err
	}
	rec, err := enip.ParseIdentityAttributes(resp.Payload)
	if err != nil {
		return enip.IdentityRecord{}, s.fail(err)
	}
	return rec, nil
}
