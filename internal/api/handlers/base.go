// Package handlers implements the REST API endpoint handlers for the
// Control API.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/nsavage/wardendns/internal/store"
)

// domainStore is the subset of store.Store the Control API needs.
type domainStore interface {
	ListActiveEntries(ctx context.Context, domain string) ([]store.DomainListEntry, error)
	GetEntry(ctx context.Context, domain string) (*store.DomainListEntry, error)
	InsertEntry(ctx context.Context, entry store.DomainListEntry) error
	DeleteEntry(ctx context.Context, domain string, listType store.ListType, source store.Source) error
	ListEntries(ctx context.Context, filters store.ListFilters, offset, limit int) ([]store.DomainListEntry, int, error)
	AppendLog(ctx context.Context, entry store.DomainLogEntry) error
	ListLogs(ctx context.Context, offset, limit int, keyword string) ([]store.DomainLogEntry, int, error)
	FindUser(ctx context.Context, username string) (*store.User, error)
}

// Handler holds the dependencies every Control API endpoint needs.
type Handler struct {
	store     domainStore
	secretKey string
	tokenTTL  time.Duration
	logger    *slog.Logger
	startTime time.Time
}

// New creates a Handler. tokenTTL bounds how long an issued bearer token
// stays valid.
func New(st domainStore, secretKey string, tokenTTL time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		store:     st,
		secretKey: secretKey,
		tokenTTL:  tokenTTL,
		logger:    logger,
		startTime: time.Now(),
	}
}
