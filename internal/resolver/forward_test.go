package resolver

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/nsavage/wardendns/internal/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream is a bare UDP echo-style stand-in for a real upstream
// resolver, letting tests control exactly what bytes come back and when.
type fakeUpstream struct {
	conn *net.UDPConn
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &fakeUpstream{conn: conn}
}

func (u *fakeUpstream) addr() string {
	return u.conn.LocalAddr().String()
}

// respondOnce reads one datagram and replies with resp to whoever sent it.
func (u *fakeUpstream) respondOnce(t *testing.T, resp []byte) {
	t.Helper()
	go func() {
		buf := make([]byte, 512)
		n, from, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		_ = n
		_, _ = u.conn.WriteToUDP(resp, from)
	}()
}

// respondSequence replies with each resp in order to the same client
// address, simulating a stray mismatched datagram before the real answer.
func (u *fakeUpstream) respondSequence(t *testing.T, resps [][]byte) {
	t.Helper()
	go func() {
		buf := make([]byte, 512)
		_, from, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		for _, r := range resps {
			if _, err := u.conn.WriteToUDP(r, from); err != nil {
				return
			}
		}
	}()
}

func packetWithID(id uint16) []byte {
	b, err := dns.Packet{
		Header:    dns.Header{ID: id, Flags: dns.QRFlag},
		Questions: []dns.Question{{Name: "example.com.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)}},
	}.Marshal()
	if err != nil {
		panic(err)
	}
	return b
}

func TestForwardingResolver_MatchingTransactionID(t *testing.T) {
	up := newFakeUpstream(t)
	resp := packetWithID(0xABCD)
	up.respondOnce(t, resp)

	r := NewForwardingResolver(up.addr(), time.Second)
	req := dns.Packet{Header: dns.Header{ID: 0xABCD}}
	reqBytes := packetWithID(0xABCD)

	result, err := r.Resolve(context.Background(), req, reqBytes)
	require.NoError(t, err)
	assert.Equal(t, "upstream", result.Source)
	assert.Equal(t, resp, result.ResponseBytes)
}

func TestForwardingResolver_MismatchedTransactionIDIsDiscarded(t *testing.T) {
	up := newFakeUpstream(t)
	wrong := packetWithID(0x0001)
	right := packetWithID(0x2222)
	up.respondSequence(t, [][]byte{wrong, right})

	r := NewForwardingResolver(up.addr(), 2*time.Second)
	req := dns.Packet{Header: dns.Header{ID: 0x2222}}
	reqBytes := packetWithID(0x2222)

	result, err := r.Resolve(context.Background(), req, reqBytes)
	require.NoError(t, err)
	assert.Equal(t, right, result.ResponseBytes, "the stray wrong-txid datagram must be ignored")
}

func TestForwardingResolver_TimeoutWhenUpstreamSilent(t *testing.T) {
	up := newFakeUpstream(t) // never replies

	r := NewForwardingResolver(up.addr(), 100*time.Millisecond)
	req := dns.Packet{Header: dns.Header{ID: 0x4242}}
	reqBytes := packetWithID(0x4242)

	_, err := r.Resolve(context.Background(), req, reqBytes)
	assert.Error(t, err, "a silent upstream must surface as an error so the caller can SERVFAIL")
}

func TestForwardingResolver_DefaultTimeoutAppliedWhenNonPositive(t *testing.T) {
	r := NewForwardingResolver("127.0.0.1:53", 0)
	assert.Equal(t, DefaultUpstreamTimeout, r.timeout)
}

func TestForwardingResolver_Close(t *testing.T) {
	r := NewForwardingResolver("127.0.0.1:53", time.Second)
	assert.NoError(t, r.Close())
}

func TestPatchTransactionID(t *testing.T) {
	msg := packetWithID(0x1111)
	patched := PatchTransactionID(msg, 0x2222)
	assert.Equal(t, uint16(0x2222), binary.BigEndian.Uint16(patched[:2]))
	assert.Equal(t, uint16(0x1111), binary.BigEndian.Uint16(msg[:2]), "original slice must be untouched")

	same := PatchTransactionID(msg, 0x1111)
	assert.Equal(t, msg, same)

	short := PatchTransactionID([]byte{0x01}, 0x2222)
	assert.Equal(t, []byte{0x01}, short)
}
