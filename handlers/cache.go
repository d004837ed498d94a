package handlers

import (
	"cratedig/services"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CacheHandler handles metadata cache endpoints
type CacheHandler struct {
	cache services.MetadataCache
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cache services.MetadataCache) *CacheHandler {
	return &CacheHandler{
		cache: cache,
	}
}

// GetCacheInfo returns cache diagnostics
func (h *CacheHandler) GetCacheInfo(c *gin.Context) {
	archives := h.cache.ListCachedArchives()
	c.JSON(http.StatusOK, gin.H{
		"sizeOnDisk": h.cache.SizeOnDisk(),
		"archives":   archives,
		"count":      len(archives),
	})
}

// InvalidateArchive removes one archive's cache entry
func (h *CacheHandler) InvalidateArchive(c *gin.Context) {
	archivePath := c.Query("path")
	if archivePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'path' is required"})
		return
	}

	h.cache.Invalidate(archivePath)
	c.JSON(http.StatusOK, gin.H{"message": "cache entry removed"})
}

// ClearCache removes every cache entry
func (h *CacheHandler) ClearCache(c *gin.Context) {
	h.cache.ClearAll()
	c.JSON(http.StatusOK, gin.H{"message": "cache cleared"})
}
