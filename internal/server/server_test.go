// Package server_test provides behavior tests for the server package.
package server_test

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/nsavage/wardendns/internal/dns"
	"github.com/nsavage/wardendns/internal/resolver"
	"github.com/nsavage/wardendns/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// RateLimiter Tests
// ============================================================================

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	t.Setenv("HYDRADNS_RL_GLOBAL_QPS", "1000")
	t.Setenv("HYDRADNS_RL_GLOBAL_BURST", "100")
	t.Setenv("HYDRADNS_RL_PREFIX_QPS", "100")
	t.Setenv("HYDRADNS_RL_PREFIX_BURST", "10")
	t.Setenv("HYDRADNS_RL_IP_QPS", "10")
	t.Setenv("HYDRADNS_RL_IP_BURST", "5")
	limiter := server.NewRateLimiterFromEnv()

	for i := range 5 {
		assert.True(t, limiter.Allow("192.168.1.1"), "Request %d should be allowed", i)
	}
}

func TestRateLimiter_BlocksExceedingLimit(t *testing.T) {
	t.Setenv("HYDRADNS_RL_GLOBAL_QPS", "1000")
	t.Setenv("HYDRADNS_RL_GLOBAL_BURST", "100")
	t.Setenv("HYDRADNS_RL_PREFIX_QPS", "100")
	t.Setenv("HYDRADNS_RL_PREFIX_BURST", "10")
	t.Setenv("HYDRADNS_RL_IP_QPS", "10")
	t.Setenv("HYDRADNS_RL_IP_BURST", "2")
	limiter := server.NewRateLimiterFromEnv()

	limiter.Allow("192.168.1.1")
	limiter.Allow("192.168.1.1")

	assert.False(t, limiter.Allow("192.168.1.1"), "Should be rate limited after exceeding burst")
}

func TestRateLimiter_DifferentIPsIndependent(t *testing.T) {
	t.Setenv("HYDRADNS_RL_GLOBAL_QPS", "100000")
	t.Setenv("HYDRADNS_RL_GLOBAL_BURST", "10000")
	t.Setenv("HYDRADNS_RL_PREFIX_QPS", "100000")
	t.Setenv("HYDRADNS_RL_PREFIX_BURST", "10000")
	t.Setenv("HYDRADNS_RL_IP_QPS", "10")
	t.Setenv("HYDRADNS_RL_IP_BURST", "2")
	t.Setenv("HYDRADNS_RL_MAX_IP_ENTRIES", "1000")
	t.Setenv("HYDRADNS_RL_MAX_PREFIX_ENTRIES", "1000")
	limiter := server.NewRateLimiterFromEnv()

	assert.True(t, limiter.Allow("192.168.1.1"), "IP1 first request")
	assert.True(t, limiter.Allow("192.168.1.1"), "IP1 second request")

	// IP2 in a different /24 subnet should have its own bucket.
	assert.True(t, limiter.Allow("10.0.0.1"), "IP2 first request - different /24 should have its own bucket")
	assert.True(t, limiter.Allow("10.0.0.1"), "IP2 second request")
}

func TestRateLimiter_NilLimiter(t *testing.T) {
	var limiter *server.RateLimiter

	assert.True(t, limiter.Allow("192.168.1.1"))
}

func TestRateLimiter_AllowAddr(t *testing.T) {
	t.Setenv("HYDRADNS_RL_GLOBAL_QPS", "1000")
	t.Setenv("HYDRADNS_RL_GLOBAL_BURST", "100")
	t.Setenv("HYDRADNS_RL_PREFIX_QPS", "100")
	t.Setenv("HYDRADNS_RL_PREFIX_BURST", "10")
	t.Setenv("HYDRADNS_RL_IP_QPS", "10")
	t.Setenv("HYDRADNS_RL_IP_BURST", "5")
	limiter := server.NewRateLimiterFromEnv()

	ip := netip.MustParseAddr("192.168.1.1")

	for i := range 5 {
		assert.True(t, limiter.AllowAddr(ip), "Request %d should be allowed", i)
	}
}

func TestRateLimiter_IPv6(t *testing.T) {
	t.Setenv("HYDRADNS_RL_GLOBAL_QPS", "1000")
	t.Setenv("HYDRADNS_RL_GLOBAL_BURST", "100")
	t.Setenv("HYDRADNS_RL_PREFIX_QPS", "100")
	t.Setenv("HYDRADNS_RL_PREFIX_BURST", "10")
	t.Setenv("HYDRADNS_RL_IP_QPS", "10")
	t.Setenv("HYDRADNS_RL_IP_BURST", "5")
	limiter := server.NewRateLimiterFromEnv()

	ip := netip.MustParseAddr("2001:db8::1")

	for i := range 5 {
		assert.True(t, limiter.AllowAddr(ip), "IPv6 request %d should be allowed", i)
	}
}

func TestRateLimiter_PrefixLimit(t *testing.T) {
	t.Setenv("HYDRADNS_RL_GLOBAL_QPS", "1000")
	t.Setenv("HYDRADNS_RL_GLOBAL_BURST", "100")
	t.Setenv("HYDRADNS_RL_PREFIX_QPS", "10")
	t.Setenv("HYDRADNS_RL_PREFIX_BURST", "3")
	t.Setenv("HYDRADNS_RL_IP_QPS", "10")
	t.Setenv("HYDRADNS_RL_IP_BURST", "10")
	limiter := server.NewRateLimiterFromEnv()

	// Different IPs in the same /24 prefix.
	limiter.Allow("192.168.1.1")
	limiter.Allow("192.168.1.2")
	limiter.Allow("192.168.1.3")

	assert.False(t, limiter.Allow("192.168.1.4"), "Should be prefix-limited")
}

func TestRateLimiter_GlobalLimit(t *testing.T) {
	t.Setenv("HYDRADNS_RL_GLOBAL_QPS", "10")
	t.Setenv("HYDRADNS_RL_GLOBAL_BURST", "2")
	t.Setenv("HYDRADNS_RL_PREFIX_QPS", "1000")
	t.Setenv("HYDRADNS_RL_PREFIX_BURST", "100")
	t.Setenv("HYDRADNS_RL_IP_QPS", "1000")
	t.Setenv("HYDRADNS_RL_IP_BURST", "100")
	limiter := server.NewRateLimiterFromEnv()

	limiter.Allow("192.168.1.1")
	limiter.Allow("10.0.0.1")

	assert.False(t, limiter.Allow("172.16.0.1"), "Should be globally limited despite different IPs")
}

// ============================================================================
// TokenBucketRateLimiter Tests
// ============================================================================

func TestTokenBucket_AllowConsumesToken(t *testing.T) {
	tb := server.NewTokenBucketRateLimiter(server.TokenBucketConfig{
		Rate:       1.0,
		Burst:      5,
		MaxEntries: 100,
	})

	for i := range 5 {
		assert.True(t, tb.Allow("key1"), "Request %d should be allowed", i)
	}

	assert.False(t, tb.Allow("key1"), "Should be rate limited after burst")
}

func TestTokenBucket_DifferentKeys(t *testing.T) {
	tb := server.NewTokenBucketRateLimiter(server.TokenBucketConfig{
		Rate:       1.0,
		Burst:      2,
		MaxEntries: 100,
	})

	tb.Allow("key1")
	tb.Allow("key1")

	assert.True(t, tb.Allow("key2"), "Different key should have separate bucket")
}

func TestTokenBucket_TokenReplenishment(t *testing.T) {
	tb := server.NewTokenBucketRateLimiter(server.TokenBucketConfig{
		Rate:       1000.0,
		Burst:      1,
		MaxEntries: 100,
	})

	assert.True(t, tb.Allow("key1"))
	assert.False(t, tb.Allow("key1"))

	time.Sleep(5 * time.Millisecond)

	assert.True(t, tb.Allow("key1"), "Should have replenished tokens")
}

func TestTokenBucket_DisabledWithZeroRate(t *testing.T) {
	tb := server.NewTokenBucketRateLimiter(server.TokenBucketConfig{
		Rate:       0,
		Burst:      5,
		MaxEntries: 100,
	})

	assert.True(t, tb.Allow("key1"), "rate<=0 disables limiting, always allow")
}

// ============================================================================
// RateLimitsStartupLog Tests
// ============================================================================

func TestRateLimitsStartupLog(t *testing.T) {
	t.Setenv("HYDRADNS_RL_GLOBAL_QPS", "1000")
	t.Setenv("HYDRADNS_RL_GLOBAL_BURST", "100")
	t.Setenv("HYDRADNS_RL_PREFIX_QPS", "100")
	t.Setenv("HYDRADNS_RL_PREFIX_BURST", "10")
	t.Setenv("HYDRADNS_RL_IP_QPS", "10")
	t.Setenv("HYDRADNS_RL_IP_BURST", "5")

	result := server.RateLimitsStartupLog()

	assert.Contains(t, result, "global=1000qps/100")
	assert.Contains(t, result, "prefix=100qps/10")
	assert.Contains(t, result, "ip=10qps/5")
}

func TestRateLimitsStartupLog_Disabled(t *testing.T) {
	t.Setenv("HYDRADNS_RL_GLOBAL_QPS", "0")
	t.Setenv("HYDRADNS_RL_GLOBAL_BURST", "0")
	t.Setenv("HYDRADNS_RL_PREFIX_QPS", "0")
	t.Setenv("HYDRADNS_RL_PREFIX_BURST", "0")
	t.Setenv("HYDRADNS_RL_IP_QPS", "0")
	t.Setenv("HYDRADNS_RL_IP_BURST", "0")

	result := server.RateLimitsStartupLog()

	assert.Contains(t, result, "global=disabled")
	assert.Contains(t, result, "prefix=disabled")
	assert.Contains(t, result, "ip=disabled")
}

// ============================================================================
// QueryHandler Tests
// ============================================================================

type mockResolver struct {
	resolveFunc func(ctx context.Context, req dns.Packet, reqBytes []byte) (resolver.Result, error)
}

func (m *mockResolver) Resolve(ctx context.Context, req dns.Packet, reqBytes []byte) (resolver.Result, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, req, reqBytes)
	}
	return resolver.Result{}, errors.New("not implemented")
}

func (m *mockResolver) Close() error { return nil }

func createValidDNSRequest(t *testing.T) []byte {
	pkt := dns.Packet{
		Header: dns.Header{
			ID:    0x1234,
			Flags: 0x0100, // Standard query, RD=1
		},
		Questions: []dns.Question{
			{Name: "example.com", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)},
		},
	}
	data, err := pkt.Marshal()
	require.NoError(t, err)
	return data
}

func TestQueryHandler_SuccessfulResolve(t *testing.T) {
	responseBytes := []byte{0x12, 0x34, 0x81, 0x80, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}

	res := &mockResolver{
		resolveFunc: func(_ context.Context, _ dns.Packet, _ []byte) (resolver.Result, error) {
			return resolver.Result{ResponseBytes: responseBytes, Source: "test"}, nil
		},
	}

	handler := &server.QueryHandler{
		Resolver: res,
		Timeout:  5 * time.Second,
	}

	result := handler.Handle(context.Background(), "udp", "127.0.0.1:12345", createValidDNSRequest(t))

	assert.True(t, result.ParsedOK, "Should successfully parse request")
	assert.Equal(t, responseBytes, result.ResponseBytes)
	assert.Equal(t, "test", result.Source)
}

func TestQueryHandler_ResolverError(t *testing.T) {
	res := &mockResolver{
		resolveFunc: func(_ context.Context, _ dns.Packet, _ []byte) (resolver.Result, error) {
			return resolver.Result{}, errors.New("resolver failed")
		},
	}

	handler := &server.QueryHandler{
		Resolver: res,
		Timeout:  5 * time.Second,
	}

	result := handler.Handle(context.Background(), "udp", "127.0.0.1:12345", createValidDNSRequest(t))

	assert.True(t, result.ParsedOK)
	assert.Equal(t, "servfail", result.Source)
	assert.NotNil(t, result.ResponseBytes)
}

func TestQueryHandler_Timeout(t *testing.T) {
	res := &mockResolver{
		resolveFunc: func(_ context.Context, _ dns.Packet, _ []byte) (resolver.Result, error) {
			time.Sleep(500 * time.Millisecond)
			return resolver.Result{}, nil
		},
	}

	handler := &server.QueryHandler{
		Resolver: res,
		Timeout:  10 * time.Millisecond,
	}

	result := handler.Handle(context.Background(), "udp", "127.0.0.1:12345", createValidDNSRequest(t))

	assert.True(t, result.ParsedOK)
	assert.Equal(t, "timeout", result.Source)
}

func TestQueryHandler_InvalidRequest(t *testing.T) {
	res := &mockResolver{}

	handler := &server.QueryHandler{
		Resolver: res,
		Timeout:  5 * time.Second,
	}

	result := handler.Handle(context.Background(), "udp", "127.0.0.1:12345", []byte{0x00})

	assert.False(t, result.ParsedOK)
	assert.Equal(t, "parse-error", result.Source)
	assert.Nil(t, result.ResponseBytes, "malformed request is dropped silently")
}

func TestQueryHandler_ContextCancellation(t *testing.T) {
	res := &mockResolver{
		resolveFunc: func(ctx context.Context, _ dns.Packet, _ []byte) (resolver.Result, error) {
			<-ctx.Done()
			return resolver.Result{}, ctx.Err()
		},
	}

	handler := &server.QueryHandler{
		Resolver: res,
		Timeout:  5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := handler.Handle(ctx, "udp", "127.0.0.1:12345", createValidDNSRequest(t))

	assert.True(t, result.ParsedOK)
}

// ============================================================================
// HandleResult Tests
// ============================================================================

func TestHandleResult_Fields(t *testing.T) {
	result := server.HandleResult{
		ResponseBytes: []byte{0x12, 0x34},
		Source:        "test",
		ParsedOK:      true,
	}

	assert.Equal(t, []byte{0x12, 0x34}, result.ResponseBytes)
	assert.Equal(t, "test", result.Source)
	assert.True(t, result.ParsedOK)
}

// ============================================================================
// Truncation fixture check (truncateUDPResponse is tested in truncate_test.go)
// ============================================================================

func TestTruncation_LargeResponse(t *testing.T) {
	largeResponse := make([]byte, 1000)
	largeResponse[0] = 0x12
	largeResponse[1] = 0x34
	largeResponse[2] = 0x81
	largeResponse[3] = 0x80
	largeResponse[4] = 0x00
	largeResponse[5] = 0x01
	largeResponse[6] = 0x00
	largeResponse[7] = 0x05

	assert.Greater(t, len(largeResponse), dns.DefaultUDPPayloadSize)
}

// ============================================================================
// Integration-style Tests
// ============================================================================

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	t.Setenv("HYDRADNS_RL_GLOBAL_QPS", "10000")
	t.Setenv("HYDRADNS_RL_GLOBAL_BURST", "1000")
	t.Setenv("HYDRADNS_RL_PREFIX_QPS", "1000")
	t.Setenv("HYDRADNS_RL_PREFIX_BURST", "100")
	t.Setenv("HYDRADNS_RL_IP_QPS", "100")
	t.Setenv("HYDRADNS_RL_IP_BURST", "10")
	limiter := server.NewRateLimiterFromEnv()

	done := make(chan bool)
	for range 10 {
		go func() {
			for range 100 {
				limiter.Allow("192.168.1.1")
			}
			done <- true
		}()
	}

	for range 10 {
		<-done
	}
}

func TestQueryHandler_SequentialRequests(t *testing.T) {
	callCount := 0
	res := &mockResolver{
		resolveFunc: func(_ context.Context, _ dns.Packet, _ []byte) (resolver.Result, error) {
			callCount++
			return resolver.Result{
				ResponseBytes: []byte{0x12, 0x34, 0x81, 0x80, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
				Source:        "test",
			}, nil
		},
	}

	handler := &server.QueryHandler{
		Resolver: res,
		Timeout:  5 * time.Second,
	}

	for range 5 {
		result := handler.Handle(context.Background(), "udp", "127.0.0.1:12345", createValidDNSRequest(t))
		assert.True(t, result.ParsedOK)
		assert.Equal(t, "test", result.Source)
	}

	assert.Equal(t, 5, callCount)
}

func TestTokenBucket_ConcurrentAccess(t *testing.T) {
	tb := server.NewTokenBucketRateLimiter(server.TokenBucketConfig{
		Rate:       1000,
		Burst:      100,
		MaxEntries: 1000,
	})

	done := make(chan bool)
	for i := range 10 {
		go func(id int) {
			key := string(rune('a' + id))
			for range 50 {
				tb.Allow(key)
			}
			done <- true
		}(i)
	}

	for range 10 {
		<-done
	}
}
