// Package resolver implements DNS query resolution: filtering decisions
// against the domain list store, and upstream forwarding for queries that
// are not blocked.
package resolver

import (
	"context"

	"github.com/nsavage/wardendns/internal/dns"
)

// Result holds the outcome of a DNS resolution.
type Result struct {
	ResponseBytes []byte // Wire-format DNS response
	Source        string // Where the answer came from (e.g., "blocked", "upstream")
}

// Resolver is the interface for DNS resolution strategies.
type Resolver interface {
	// Resolve processes a DNS query and returns a response.
	// The context can be used for cancellation and timeouts.
	Resolve(ctx context.Context, req dns.Packet, reqBytes []byte) (Result, error)

	// Close releases any resources held by the resolver.
	Close() error
}

// PatchTransactionID replaces the transaction ID in a DNS message.
// The transaction ID occupies the first 2 bytes of every DNS message (big-endian).
func PatchTransactionID(msg []byte, txid uint16) []byte {
	if len(msg) < 2 {
		return msg
	}
	if msg[0] == byte(txid>>8) && msg[1] == byte(txid) {
		return msg
	}
	out := make([]byte, len(msg))
	copy(out, msg)
	out[0] = byte(txid >> 8)
	out[1] = byte(txid)
	return out
}
