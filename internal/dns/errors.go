// Package dns provides DNS protocol parsing, encoding, and packet manipulation.
//
// Standards Compliance:
//
// This package implements DNS protocol features from the following RFCs:
//
//   - RFC 1035: Domain Names - Implementation and Specification (core DNS protocol)
//   - RFC 1034: Domain Names - Concepts and Facilities (DNS concepts)
//   - RFC 3596: DNS Extensions to Support IPv6 (AAAA records)
//   - RFC 4035: DNSSEC Protocol Extensions (AD, CD flags)
//   - RFC 6891: Extension Mechanisms for DNS (EDNS, OPT records)
//
// Record Representation:
//
// Every resource record is the one generic Record struct. Its Data field holds
// the type-specific payload: []byte for A, AAAA and other opaque rdata, a
// string for CNAME/NS/PTR targets, and MXData for MX.
//
// Error Handling:
//
// Codec errors wrap ErrDNSError with context using fmt.Errorf("...: %w", err).
// The size and count limit checks in parsing.go return plain errors.
package dns

import "errors"

var (
	// ErrDNSError is a sentinel error type for DNS protocol violations.
	// Wrap this with fmt.Errorf("context: %w", ErrDNSError) to add context.
	ErrDNSError = errors.New("dns wire error")
)
