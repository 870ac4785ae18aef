package resolver

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/nsavage/wardendns/internal/dns"
)

// DefaultUpstreamTimeout is how long ForwardingResolver waits for a single
// upstream response before giving up.
const DefaultUpstreamTimeout = 4 * time.Second

// ForwardingResolver relays a raw DNS query to a single configured upstream
// server and returns its raw response. No retries, no caching, no upstream
// pool, no TCP fallback: one UDP datagram out, one matching datagram back,
// or a timeout.
type ForwardingResolver struct {
	upstream string // host:port, e.g. "8.8.8.8:53"
	timeout  time.Duration
}

// NewForwardingResolver creates a ForwardingResolver targeting upstream
// (host:port). If timeout <= 0, DefaultUpstreamTimeout is used.
func NewForwardingResolver(upstream string, timeout time.Duration) *ForwardingResolver {
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}
	return &ForwardingResolver{upstream: upstream, timeout: timeout}
}

// Close is a no-op; the resolver owns no persistent resources.
func (f *ForwardingResolver) Close() error { return nil }

// Resolve sends reqBytes to the upstream and returns its raw response
// bytes. The transaction id of accepted responses must match the request;
// mismatched datagrams are discarded and the wait continues until timeout.
func (f *ForwardingResolver) Resolve(ctx context.Context, req dns.Packet, reqBytes []byte) (Result, error) {
	deadline := time.Now().Add(f.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	addr, err := net.ResolveUDPAddr("udp", f.upstream)
	if err != nil {
		return Result{}, fmt.Errorf("forward: resolve upstream: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return Result{}, fmt.Errorf("forward: dial upstream: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return Result{}, fmt.Errorf("forward: set deadline: %w", err)
	}

	if _, err := conn.Write(reqBytes); err != nil {
		return Result{}, fmt.Errorf("forward: write: %w", err)
	}

	wantTxid := req.Header.ID
	buf := make([]byte, dns.MaxIncomingDNSMessageSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return Result{}, fmt.Errorf("forward: read: %w", err)
		}
		if n < 2 {
			continue
		}
		gotTxid := binary.BigEndian.Uint16(buf[:2])
		if gotTxid != wantTxid {
			continue
		}
		resp := make([]byte, n)
		copy(resp, buf[:n])
		return Result{ResponseBytes: resp, Source: "upstream"}, nil
	}
}
