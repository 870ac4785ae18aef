package store

import (
	"strings"
	"time"
)

// CanonicalDomain normalizes a domain to the canonical form spec.md §3
// requires for the `domain` attribute: lowercase, single trailing dot.
// Store and log lookups must compare against this form so that a domain
// inserted via the Control API (no trailing dot, e.g. "ads.example.com")
// matches the qname the Resolver sees on the wire (e.g.
// "ads.example.com."), and vice versa.
func CanonicalDomain(domain string) string {
	return strings.ToLower(strings.TrimRight(domain, ".")) + "."
}

// ListType enumerates the two DomainList classifications.
type ListType string

const (
	ListWhitelist ListType = "whitelist"
	ListBlacklist ListType = "blacklist"
)

// Source identifies who created a DomainList entry.
type Source string

const (
	SourceManual Source = "manual"
	SourceLLM    Source = "llm"
)

// LogStatus enumerates the three possible DomainLog outcomes.
type LogStatus string

const (
	StatusAllowed  LogStatus = "allowed"
	StatusBlocked  LogStatus = "blocked"
	StatusReviewed LogStatus = "reviewed"
)

// DomainListEntry is a single classification rule.
type DomainListEntry struct {
	Domain    string
	ListType  ListType
	Source    Source
	CreatedAt time.Time
	ExpiresAt *time.Time // nil means never expires
}

// Active reports whether the entry is active at t.
func (e DomainListEntry) Active(t time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(t)
}

// DomainLogEntry is a single append-only query decision record.
type DomainLogEntry struct {
	Domain    string
	Status    LogStatus
	Timestamp time.Time
}

// User holds control-API login credentials.
type User struct {
	Username       string
	HashedPassword string
}

// ListFilters narrows a ListEntries query.
type ListFilters struct {
	Source       Source
	ListType     ListType
	ActiveAsOf   *time.Time // when set, only entries active at this time are returned
	HasSource    bool
	HasListType  bool
}

// ErrConflict is returned when an insert collides with an existing domain.
type ErrConflict struct{ Domain string }

func (e *ErrConflict) Error() string { return "domain already present: " + e.Domain }

// ErrNotFound is returned when a delete targets a row that does not exist.
type ErrNotFound struct{ Domain string }

func (e *ErrNotFound) Error() string { return "domain not found: " + e.Domain }
