package capture

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/tturner/etherip/internal/cip/epath"
	"github.com/tturner/etherip/internal/cip/protocol"
	"github.com/tturner/etherip/internal/cip/spec"
	"github.com/tturner/etherip/internal/enip"
	"github.com/tturner/etherip/internal/errors"
)

// Frame is one encapsulation frame recovered from a capture.
type Frame struct {
	Timestamp time.Time
	Transport string
	Src       string
	Dst       string
	Encap     enip.ENIPEncapsulation
	Raw       []byte
}

// ExtractFile opens a pcap file and extracts its encapsulation frames.
func ExtractFile(path string, ports ...uint16) ([]Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pcap file: %w", err)
	}
	defer file.Close()
	return Extract(file, ports...)
}

// Extract reads a pcap stream, reassembles TCP payloads per direction and
// returns every complete encapsulation frame in capture order. With no
// ports, any TCP or UDP payload is considered.
func Extract(r io.Reader, ports ...uint16) ([]Frame, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read pcap header: %w", err)
	}

	var frames []Frame
	streams := make(map[string][]byte)
	for {
		data, ci, err := reader.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return frames, fmt.Errorf("read packet %d: %w", len(frames)+1, err)
		}
		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.NoCopy)
		src, dst := endpoints(packet)

		if tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
			if !portMatch(ports, uint16(tcp.SrcPort), uint16(tcp.DstPort)) || len(tcp.Payload) == 0 {
				continue
			}
			srcEP := fmt.Sprintf("%s:%d", src, tcp.SrcPort)
			dstEP := fmt.Sprintf("%s:%d", dst, tcp.DstPort)
			key := srcEP + ">" + dstEP
			buf := append(streams[key], tcp.Payload...)
			var found []Frame
			found, streams[key] = splitFrames(buf)
			for _, f := range found {
				f.Timestamp, f.Transport, f.Src, f.Dst = ci.Timestamp, "tcp", srcEP, dstEP
				frames = append(frames, f)
			}
			continue
		}

		if udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
			if !portMatch(ports, uint16(udp.SrcPort), uint16(udp.DstPort)) || len(udp.Payload) == 0 {
				continue
			}
			found, _ := splitFrames(append([]byte(nil), udp.Payload...))
			for _, f := range found {
				f.Timestamp, f.Transport = ci.Timestamp, "udp"
				f.Src = fmt.Sprintf("%s:%d", src, udp.SrcPort)
				f.Dst = fmt.Sprintf("%s:%d", dst, udp.DstPort)
				frames = append(frames, f)
			}
		}
	}
	return frames, nil
}

func endpoints(packet gopacket.Packet) (string, string) {
	if nl := packet.NetworkLayer(); nl != nil {
		src, dst := nl.NetworkFlow().Endpoints()
		return src.String(), dst.String()
	}
	return "unknown", "unknown"
}

func portMatch(ports []uint16, src, dst uint16) bool {
	if len(ports) == 0 {
		return true
	}
	for _, p := range ports {
		if p == src || p == dst {
			return true
		}
	}
	return false
}

// splitFrames cuts complete frames off the front of buf and returns the
// unconsumed tail. Bytes that cannot start a frame are skipped one at a
// time so a capture that begins mid-stream resynchronises.
func splitFrames(buf []byte) ([]Frame, []byte) {
	var out []Frame
	for len(buf) >= enip.HeaderSize {
		hdr, _ := enip.DecodeHeader(buf)
		if !enip.IsKnownCommand(hdr.Command) {
			buf = buf[1:]
			continue
		}
		total := enip.HeaderSize + int(hdr.Length)
		if len(buf) < total {
			break
		}
		raw := append([]byte(nil), buf[:total]...)
		encap, err := enip.DecodeENIP(raw)
		buf = buf[total:]
		if err != nil {
			continue
		}
		out = append(out, Frame{Encap: encap, Raw: raw})
	}
	if len(buf) == 0 {
		return out, nil
	}
	return out, buf
}

// Describe summarises the frame: command, session, encapsulation status
// and, for SendRRData, the CIP service with its tag or status.
func (f Frame) Describe() string {
	e := f.Encap
	parts := []string{
		enip.CommandName(e.Command),
		fmt.Sprintf("session=0x%08X", e.SessionID),
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=0x%X (%s)", e.Status, errors.EncapStatusName(e.Status)))
	}
	if e.Command == enip.ENIPCommandSendRRData && e.Status == 0 {
		if cip := describeCIP(e.Data); cip != "" {
			parts = append(parts, cip)
		}
	}
	return strings.Join(parts, " ")
}

func describeCIP(data []byte) string {
	cip, err := enip.ParseSendRRDataPayload(data)
	if err != nil || len(cip) == 0 {
		return ""
	}
	if spec.ServiceCode(cip[0]).IsReply() {
		resp, err := protocol.DecodeCIPResponse(cip)
		if err != nil {
			return "malformed CIP reply"
		}
		if resp.Status == 0 {
			return resp.Service.String() + " ok"
		}
		return fmt.Sprintf("%s status=0x%02X (%s)", resp.Service, resp.Status, errors.GeneralStatusName(resp.Status))
	}

	req, err := protocol.DecodeCIPRequest(cip)
	if err != nil {
		return "malformed CIP request"
	}
	via := ""
	if req.Service == spec.CIPServiceUnconnectedSend {
		inner, route, err := protocol.ParseUnconnectedSendRequestPayload(req.Payload)
		if err != nil {
			return req.Service.String()
		}
		req = inner
		via = fmt.Sprintf(" via % X", []byte(route))
	}
	desc := req.Service.String()
	if sym, err := epath.DecodeSymbolic(req.Path); err == nil {
		desc += " " + sym.String()
	}
	if req.Service == spec.CIPServiceMultipleService {
		if items, err := protocol.ParseMultipleServiceRequestPayload(req.Payload); err == nil {
			desc += fmt.Sprintf(" items=%d", len(items))
		}
	}
	return desc + via
}
