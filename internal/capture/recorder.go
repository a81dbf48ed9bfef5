// Package capture writes session traffic to pcap files and reads it back.
package capture

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/tturner/etherip/internal/cip/client"
)

const snapLen = 65535

var (
	localMAC  = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	remoteMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// Recorder is a client.Observer that writes every frame as a synthetic
// Ethernet/IP/TCP packet. Sequence numbers advance per direction so
// Wireshark reassembles the stream.
type Recorder struct {
	mu      sync.Mutex
	writer  *pcapgo.Writer
	closer  io.Closer
	seq     map[string]uint32
	packets int
	err     error
	now     func() time.Time
}

var _ client.Observer = (*Recorder)(nil)

// NewRecorder writes a pcap file header to w and returns a Recorder.
func NewRecorder(w io.Writer) (*Recorder, error) {
	writer := pcapgo.NewWriter(w)
	if err := writer.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Recorder{
		writer: writer,
		seq:    make(map[string]uint32),
		now:    time.Now,
	}, nil
}

// CreateRecorder creates path and records into it. Close flushes the file.
func CreateRecorder(path string) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap file: %w", err)
	}
	r, err := NewRecorder(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

// ObserveFrame implements client.Observer. Write failures are kept and
// reported by Err and Close.
func (r *Recorder) ObserveFrame(dir client.Direction, local, remote string, frame []byte) {
	src, dst := local, remote
	srcMAC, dstMAC := localMAC, remoteMAC
	if dir == client.DirectionReceived {
		src, dst = remote, local
		srcMAC, dstMAC = remoteMAC, localMAC
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}

	fwd := src + ">" + dst
	seq := r.seq[fwd] + 1
	ack := r.seq[dst+">"+src] + 1
	r.seq[fwd] += uint32(len(frame))

	data, err := buildPacket(src, dst, srcMAC, dstMAC, seq, ack, frame)
	if err != nil {
		r.err = err
		return
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     r.now(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := r.writer.WritePacket(ci, data); err != nil {
		r.err = fmt.Errorf("write packet: %w", err)
		return
	}
	r.packets++
}

// Packets returns how many packets were written.
func (r *Recorder) Packets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.packets
}

// Err returns the first write failure, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close closes the underlying file when the Recorder owns it.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.closer != nil {
		err = r.closer.Close()
		r.closer = nil
	}
	if r.err != nil {
		return r.err
	}
	return err
}

func buildPacket(src, dst string, srcMAC, dstMAC net.HardwareAddr, seq, ack uint32, payload []byte) ([]byte, error) {
	srcIP, srcPort, err := splitEndpoint(src)
	if err != nil {
		return nil, err
	}
	dstIP, dstPort, err := splitEndpoint(dst)
	if err != nil {
		return nil, err
	}

	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     seq,
		Ack:     ack,
		ACK:     true,
		PSH:     true,
		Window:  65535,
	}

	var network gopacket.SerializableLayer
	if srcIP.To4() != nil && dstIP.To4() != nil {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolTCP,
			SrcIP:    srcIP.To4(),
			DstIP:    dstIP.To4(),
		}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		network = ip
	} else {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{
			Version:    6,
			HopLimit:   64,
			NextHeader: layers.IPProtocolTCP,
			SrcIP:      srcIP.To16(),
			DstIP:      dstIP.To16(),
		}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		network = ip
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, network, tcp, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("serialize packet: %w", err)
	}
	return buf.Bytes(), nil
}

func splitEndpoint(addr string) (net.IP, uint16, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, 0, fmt.Errorf("endpoint %q: %w", addr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, 0, fmt.Errorf("endpoint %q: not an IP address", addr)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, 0, fmt.Errorf("endpoint %q: bad port", addr)
	}
	return ip, uint16(port), nil
}
