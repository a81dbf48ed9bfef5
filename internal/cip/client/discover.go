package client

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tturner/etherip/internal/enip"
)

// Discover broadcasts ListIdentity over UDP and collects replies until
// timeout or ctx ends. Replies are deduplicated by address and serial.
// Malformed replies are skipped.
func Discover(ctx context.Context, broadcast string, port int, timeout time.Duration) ([]enip.IdentityRecord, error) {
	ip := net.ParseIP(broadcast)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("broadcast address must be IPv4: %q", broadcast)
	}
	if port == 0 {
		port = enip.DefaultPort
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("listen UDP: %w", err)
	}
	defer conn.Close()

	var senderContext [8]byte
	copy(senderContext[:], "discover")
	raddr := &net.UDPAddr{IP: ip.To4(), Port: port}
	if _, err := conn.WriteToUDP(enip.BuildListIdentity(senderContext), raddr); err != nil {
		return nil, fmt.Errorf("send ListIdentity to %s: %w", raddr, err)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()

	type key struct {
		addr   string
		serial uint32
	}
	seen := make(map[key]struct{})
	var out []enip.IdentityRecord

	buf := make([]byte, 4096)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			return out, fmt.Errorf("read UDP: %w", err)
		}
		encap, err := enip.DecodeENIP(buf[:n])
		if err != nil || encap.Command != enip.ENIPCommandListIdentity || encap.Status != enip.ENIPStatusSuccess {
			continue
		}
		records, err := enip.ParseListIdentityReply(encap.Data)
		if err != nil {
			continue
		}
		for _, rec := range records {
			if rec.IP == nil || rec.IP.IsUnspecified() {
				rec.IP = src.IP
			}
			k := key{addr: net.JoinHostPort(rec.IP.String(), strconv.Itoa(int(rec.Port))), serial: rec.SerialNumber}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, rec)
		}
	}
	return out, ctx.Err()
}
