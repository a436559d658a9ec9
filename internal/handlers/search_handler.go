package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"catalog-sync-service/internal/services"
)

// SearchHandler handles location search endpoints
type SearchHandler struct {
	service *services.SearchService
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(service *services.SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// SearchLocations resolves a free-text location query into ranked
// candidates. The service degrades internally, so this endpoint only
// fails on missing input.
func (h *SearchHandler) SearchLocations(c *gin.Context) {
	keyword := c.Query("q")
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if limit <= 0 || limit > 50 {
		limit = 5
	}

	candidates := h.service.Search(c.Request.Context(), keyword, limit)
	c.JSON(http.StatusOK, gin.H{
		"data":  candidates,
		"total": len(candidates),
	})
}
