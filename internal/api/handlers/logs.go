package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nsavage/wardendns/internal/api/models"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// DomainLogs serves GET /api/domain-logs. An optional keyword parameter
// enables fuzzy token-set-ratio ordering over the domain field.
func (h *Handler) DomainLogs(c *gin.Context) {
	offset, limit := parsePageParams(c)
	keyword := c.Query("keyword")

	entries, total, err := h.store.ListLogs(c.Request.Context(), offset, limit, keyword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "store error"})
		return
	}

	logs := make([]models.DomainLogEntry, 0, len(entries))
	for _, e := range entries {
		logs = append(logs, models.DomainLogEntry{
			Domain:    e.Domain,
			Status:    string(e.Status),
			Timestamp: e.Timestamp,
		})
	}

	c.JSON(http.StatusOK, models.DomainLogsResponse{
		Logs: logs,
		Meta: models.PageMeta{Total: total, Offset: offset, Limit: limit},
	})
}

// parsePageParams reads offset/limit query parameters. A missing, malformed
// or negative value falls back to its default, and a limit of 0 or above
// maxPageLimit falls back to defaultPageLimit.
func parsePageParams(c *gin.Context) (offset, limit int) {
	offset = parseNonNegative(c.Query("offset"), 0)
	limit = parseNonNegative(c.Query("limit"), defaultPageLimit)
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	return offset, limit
}

func parseNonNegative(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
