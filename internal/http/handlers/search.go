package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nexusknowledge-backend/internal/http/response"
	"github.com/yungbote/nexusknowledge-backend/internal/search"
)

const maxSearchLimit = 50

type SearchHandler struct {
	search search.Service
}

func NewSearchHandler(searchService search.Service) *SearchHandler {
	return &SearchHandler{search: searchService}
}

// GET /api/search?q=<query>&limit=<n>
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = parsed
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	results, err := h.search.Search(c.Request.Context(), query, limit)
	if err != nil {
		response.RespondDomainError(c, "search_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"results": results, "count": len(results)})
}
