package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/nsavage/wardendns/internal/classify"
	"github.com/nsavage/wardendns/internal/dns"
	"github.com/nsavage/wardendns/internal/store"
)

// blockedTTL is the TTL (seconds) on the synthesized blocking answer.
const blockedTTL = 60

// domainLister is the subset of store.Store the FilteringResolver needs to
// make a decision and record it.
type domainLister interface {
	ListActiveEntries(ctx context.Context, domain string) ([]store.DomainListEntry, error)
	AppendLog(ctx context.Context, entry store.DomainLogEntry) error
}

// FilteringResolver is the request-path decision stage: it classifies the
// query against the Store and either synthesizes a blocking answer or
// delegates to the next resolver (the Upstream Forwarder).
type FilteringResolver struct {
	store  domainLister
	queue  *classify.Queue
	next   Resolver
	logger *slog.Logger
}

// NewFilteringResolver builds a FilteringResolver. queue may be nil, in
// which case reviewed domains are simply not enqueued for classification.
func NewFilteringResolver(st domainLister, queue *classify.Queue, next Resolver, logger *slog.Logger) *FilteringResolver {
	return &FilteringResolver{store: st, queue: queue, next: next, logger: logger}
}

// Resolve implements the decision rule in full: look up active entries,
// decide allowed/blocked/reviewed, log the decision, and either answer
// locally or forward upstream.
func (f *FilteringResolver) Resolve(ctx context.Context, req dns.Packet, reqBytes []byte) (Result, error) {
	if len(req.Questions) == 0 {
		return f.next.Resolve(ctx, req, reqBytes)
	}

	qname := store.CanonicalDomain(req.Questions[0].Name)
	status := f.decide(ctx, qname)

	f.appendLogBestEffort(ctx, qname, status)

	switch status {
	case store.StatusBlocked:
		return f.buildBlockedResult(req, qname)
	case store.StatusReviewed:
		f.enqueueForClassification(qname)
		return f.next.Resolve(ctx, req, reqBytes)
	default: // StatusAllowed
		return f.next.Resolve(ctx, req, reqBytes)
	}
}

// decide applies the decision rule from active Store entries. A Store read
// failure degrades to reviewed and is logged as a warning, per the
// failure-semantics contract.
func (f *FilteringResolver) decide(ctx context.Context, qname string) store.LogStatus {
	entries, err := f.store.ListActiveEntries(ctx, qname)
	if err != nil {
		if f.logger != nil {
			f.logger.Warn("store read failed, treating as reviewed", "domain", qname, "err", err)
		}
		return store.StatusReviewed
	}

	hasBlacklist := false
	hasWhitelist := false
	for _, e := range entries {
		switch e.ListType {
		case store.ListBlacklist:
			hasBlacklist = true
		case store.ListWhitelist:
			hasWhitelist = true
		}
	}

	switch {
	case hasBlacklist:
		return store.StatusBlocked
	case hasWhitelist:
		return store.StatusAllowed
	default:
		return store.StatusReviewed
	}
}

func (f *FilteringResolver) appendLogBestEffort(ctx context.Context, qname string, status store.LogStatus) {
	err := f.store.AppendLog(ctx, store.DomainLogEntry{
		Domain:    qname,
		Status:    status,
		Timestamp: time.Now(),
	})
	if err != nil && f.logger != nil {
		f.logger.Warn("log append failed", "domain", qname, "err", err)
	}
}

func (f *FilteringResolver) enqueueForClassification(qname string) {
	if f.queue == nil {
		return
	}
	f.queue.Offer(qname) // non-blocking; overflow/duplicate are silently dropped
}

// Close releases the next resolver in the chain.
func (f *FilteringResolver) Close() error {
	if f.next != nil {
		return f.next.Close()
	}
	return nil
}

func (f *FilteringResolver) buildBlockedResult(req dns.Packet, qname string) (Result, error) {
	resp := dns.Packet{
		Header: dns.Header{
			ID:    req.Header.ID,
			Flags: buildBlockedFlags(req.Header.Flags),
		},
		Questions: req.Questions,
		Answers:   []dns.Record{blockingAnswer(qname)},
	}
	respBytes, err := resp.Marshal()
	if err != nil {
		return Result{}, err
	}
	return Result{ResponseBytes: respBytes, Source: "blocked"}, nil
}

// blockingAnswer synthesizes an A 0.0.0.0 record regardless of the query's
// qtype. AAAA queries should in principle get an AAAA ::, but preserving
// this behavior is a deliberate choice, not an oversight.
func blockingAnswer(name string) dns.Record {
	return dns.Record{
		Name:  name,
		Type:  uint16(dns.TypeA),
		Class: uint16(dns.ClassIN),
		TTL:   blockedTTL,
		Data:  []byte{0, 0, 0, 0},
	}
}

// buildBlockedFlags sets QR, preserves opcode, and mirrors RD/RA so clients
// that requested recursion see it honored; RCODE stays NOERROR since a
// blocking answer carries a real (if fake) record, not NXDOMAIN.
func buildBlockedFlags(reqFlags uint16) uint16 {
	flags := dns.QRFlag
	flags |= reqFlags & dns.OpcodeMask
	if reqFlags&dns.RDFlag != 0 {
		flags |= dns.RDFlag
		flags |= dns.RAFlag
	}
	flags |= uint16(dns.RCodeNoError)
	return flags
}
