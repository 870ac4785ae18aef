package models

import "time"

// DomainLogEntry is the JSON representation of a store.DomainLogEntry.
type DomainLogEntry struct {
	Domain    string    `json:"domain"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// DomainLogsResponse is returned by GET /api/domain-logs.
type DomainLogsResponse struct {
	Logs []DomainLogEntry `json:"logs"`
	Meta PageMeta         `json:"meta"`
}
