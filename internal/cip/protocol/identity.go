package protocol

import (
	"github.com/tturner/etherip/internal/cip/epath"
	"github.com/tturner/etherip/internal/cip/spec"
)

// NewGetAttributesAllRequest builds a Get Attributes All request.
func NewGetAttributesAllRequest(class, instance uint16) CIPRequest {
	return CIPRequest{
		Service: spec.CIPServiceGetAttributeAll,
		Path:    epath.Logical(class, instance),
	}
}

// NewIdentityRequest reads every attribute of Identity instance 1.
func NewIdentityRequest() CIPRequest {
	return NewGetAttributesAllRequest(spec.CIPClassIdentity, 1)
}
