package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nsavage/wardendns/internal/api/models"
	"github.com/nsavage/wardendns/internal/store"
	"github.com/nsavage/wardendns/internal/validate"
)

// ListDomains serves GET /api/lists/{source}/{list_type}/domains. An
// llm-sourced listing filters to entries active as of now.
func (h *Handler) ListDomains(c *gin.Context) {
	source, ok := parseSource(c.Param("source"))
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid source"})
		return
	}
	listType, ok := parseListType(c.Param("list_type"))
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid list_type"})
		return
	}

	offset, limit := parsePageParams(c)

	filters := store.ListFilters{Source: source, ListType: listType, HasSource: true, HasListType: true}
	if source == store.SourceLLM {
		now := time.Now()
		filters.ActiveAsOf = &now
	}

	entries, total, err := h.store.ListEntries(c.Request.Context(), filters, offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "store error"})
		return
	}

	c.JSON(http.StatusOK, models.DomainListResponse{
		Domains: toDomainEntries(entries),
		Meta:    models.PageMeta{Total: total, Offset: offset, Limit: limit},
	})
}

// CreateDomain serves POST /api/lists/manual/{list_type}/domains.
func (h *Handler) CreateDomain(c *gin.Context) {
	listType, ok := parseListType(c.Param("list_type"))
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid list_type"})
		return
	}

	var req models.CreateDomainRequest
	if err := c.ShouldBind(&req); err != nil || req.Domain == "" {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: "domain is required"})
		return
	}
	if !validate.Domain(req.Domain) {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: "domain fails grammar validation"})
		return
	}

	domain := store.CanonicalDomain(req.Domain)
	entry := store.DomainListEntry{
		Domain:    domain,
		ListType:  listType,
		Source:    store.SourceManual,
		CreatedAt: time.Now(),
	}

	if err := h.store.InsertEntry(c.Request.Context(), entry); err != nil {
		var conflict *store.ErrConflict
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: conflictMessage(c, h, domain)})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "store error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// conflictMessage names the list and source of the entry already holding
// domain, for the 409 body spec.md requires. Falls back to a generic
// message if the existing row can't be re-read (e.g. deleted between the
// conflicting insert and this lookup).
func conflictMessage(c *gin.Context, h *Handler, domain string) string {
	existing, err := h.store.GetEntry(c.Request.Context(), domain)
	if err != nil || existing == nil {
		return "domain already listed"
	}
	return "domain already listed as " + string(existing.ListType) + " (" + string(existing.Source) + ")"
}

// DeleteDomain serves DELETE /api/lists/{source}/{list_type}/domains/{domain}.
func (h *Handler) DeleteDomain(c *gin.Context) {
	source, ok := parseSource(c.Param("source"))
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid source"})
		return
	}
	listType, ok := parseListType(c.Param("list_type"))
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid list_type"})
		return
	}
	domain := store.CanonicalDomain(c.Param("domain"))

	err := h.store.DeleteEntry(c.Request.Context(), domain, listType, source)
	if err != nil {
		var notFound *store.ErrNotFound
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "domain not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "store error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListStats serves GET /api/lists/stats: aggregate counts by list_type and
// source.
func (h *Handler) ListStats(c *gin.Context) {
	counts := make(map[string]int)
	now := time.Now()

	for _, lt := range []store.ListType{store.ListWhitelist, store.ListBlacklist} {
		for _, src := range []store.Source{store.SourceManual, store.SourceLLM} {
			filters := store.ListFilters{ListType: lt, Source: src, HasListType: true, HasSource: true}
			if src == store.SourceLLM {
				filters.ActiveAsOf = &now
			}
			_, total, err := h.store.ListEntries(c.Request.Context(), filters, 0, 1)
			if err != nil {
				c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "store error"})
				return
			}
			counts[string(lt)+"/"+string(src)] = total
		}
	}

	c.JSON(http.StatusOK, models.ListStatsResponse{Counts: counts})
}

func toDomainEntries(entries []store.DomainListEntry) []models.DomainEntry {
	out := make([]models.DomainEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.DomainEntry{
			Domain:    e.Domain,
			ListType:  string(e.ListType),
			Source:    string(e.Source),
			CreatedAt: e.CreatedAt,
			ExpiresAt: e.ExpiresAt,
		})
	}
	return out
}

func parseSource(s string) (store.Source, bool) {
	switch s {
	case string(store.SourceManual):
		return store.SourceManual, true
	case string(store.SourceLLM):
		return store.SourceLLM, true
	default:
		return "", false
	}
}

func parseListType(s string) (store.ListType, bool) {
	switch s {
	case string(store.ListWhitelist):
		return store.ListWhitelist, true
	case string(store.ListBlacklist):
		return store.ListBlacklist, true
	default:
		return "", false
	}
}
