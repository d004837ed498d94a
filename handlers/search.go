package handlers

import (
	"cratedig/services"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// SearchHandler searches entry names across cached archives
type SearchHandler struct {
	cache services.MetadataCache
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(cache services.MetadataCache) *SearchHandler {
	return &SearchHandler{
		cache: cache,
	}
}

// SearchMatch is one hit in the search results
type SearchMatch struct {
	Archive    string `json:"archive"`
	Entry      string `json:"entry"`
	DurationMs *int64 `json:"durationMs,omitempty"`
}

// Search returns audio entries whose names contain the query, drawn from
// valid cache entries only. Archives never scanned (or stale) don't appear.
func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	needle := strings.ToLower(query)
	matches := []SearchMatch{}

	for _, archivePath := range h.cache.ListCachedArchives() {
		payload, ok := h.cache.GetValidMetadata(archivePath)
		if !ok {
			continue
		}

		for _, entry := range payload.AudioEntries {
			if !strings.Contains(strings.ToLower(path.Base(entry)), needle) {
				continue
			}

			match := SearchMatch{Archive: archivePath, Entry: entry}
			if record, ok := payload.Entries[entry]; ok && record != nil {
				match.DurationMs = record.DurationMs
			}
			matches = append(matches, match)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"matches": matches,
		"count":   len(matches),
	})
}
