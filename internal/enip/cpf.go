package enip

import (
	"fmt"

	"github.com/tturner/etherip/internal/cip/codec"
	"github.com/tturner/etherip/internal/errors"
)

// Common packet format item type IDs.
const (
	CPFItemNullAddress      uint16 = 0x0000
	CPFItemListIdentity     uint16 = 0x000C
	CPFItemConnectedAddress uint16 = 0x00A1
	CPFItemConnectedData    uint16 = 0x00B1
	CPFItemUnconnectedData  uint16 = 0x00B2
	CPFItemListServices     uint16 = 0x0100
)

// CPFItem is one type/length/value item of the common packet format.
type CPFItem struct {
	TypeID uint16
	Data   []byte
}

// EncodeCPFItems encodes an item count followed by the items.
func EncodeCPFItems(items []CPFItem) []byte {
	out := codec.AppendUint16(codec.Order, nil, uint16(len(items)))
	for _, item := range items {
		out = codec.AppendUint16(codec.Order, out, item.TypeID)
		out = codec.AppendUint16(codec.Order, out, uint16(len(item.Data)))
		out = append(out, item.Data...)
	}
	return out
}

// DecodeCPFItems decodes an item count followed by the items.
func DecodeCPFItems(data []byte) ([]CPFItem, error) {
	r := codec.NewReader(data)
	count := int(r.Uint16())
	if r.Err() != nil {
		return nil, fmt.Errorf("CPF item count: %w", r.Err())
	}
	items := make([]CPFItem, 0, count)
	for i := 0; i < count; i++ {
		typeID := r.Uint16()
		length := int(r.Uint16())
		body := r.Bytes(length)
		if r.Err() != nil {
			return nil, fmt.Errorf("CPF item %d of %d truncated: %w", i, count, r.Err())
		}
		items = append(items, CPFItem{TypeID: typeID, Data: body})
	}
	return items, nil
}

// BuildSendRRDataPayload builds the SendRRData body: interface handle 0,
// timeout, then a null address item and an unconnected data item.
func BuildSendRRDataPayload(timeout uint16, cipData []byte) []byte {
	out := codec.AppendUint32(codec.Order, nil, 0)
	out = codec.AppendUint16(codec.Order, out, timeout)
	return append(out, EncodeCPFItems([]CPFItem{
		{TypeID: CPFItemNullAddress},
		{TypeID: CPFItemUnconnectedData, Data: cipData},
	})...)
}

// ParseSendRRDataPayload extracts the unconnected data item from a
// SendRRData request or reply body.
func ParseSendRRDataPayload(data []byte) ([]byte, error) {
	if len(data) < 6 {
		return nil, &errors.FramingError{Reason: fmt.Sprintf("SendRRData body too short: %d bytes (minimum 6)", len(data))}
	}
	items, err := DecodeCPFItems(data[6:])
	if err != nil {
		return nil, &errors.FramingError{Reason: "SendRRData common packet format", Err: err}
	}
	for _, item := range items {
		if item.TypeID == CPFItemUnconnectedData {
			return item.Data, nil
		}
	}
	return nil, &errors.FramingError{Reason: "SendRRData has no unconnected data item"}
}
