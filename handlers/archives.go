package handlers

import (
	"cratedig/services"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// ArchiveHandler handles archive browsing endpoints
type ArchiveHandler struct {
	archive services.ArchiveService
}

// NewArchiveHandler creates a new archive handler
func NewArchiveHandler(archive services.ArchiveService) *ArchiveHandler {
	return &ArchiveHandler{
		archive: archive,
	}
}

// OpenRequest is the body for the open endpoint
type OpenRequest struct {
	Path string `json:"path" binding:"required"`
}

// OpenArchive loads an archive (cache-first) and returns load statistics
func (h *ArchiveHandler) OpenArchive(c *gin.Context) {
	var req OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "archive path is required",
			"details": err.Error(),
		})
		return
	}

	stats, err := h.archive.Open(req.Path)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, services.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, services.ErrInvalidArchive):
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{
			"error":   "failed to open archive",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"path":  req.Path,
		"stats": stats,
	})
}

// ListOpenArchives returns the currently open archives
func (h *ArchiveHandler) ListOpenArchives(c *gin.Context) {
	archives := h.archive.OpenArchives()
	c.JSON(http.StatusOK, gin.H{
		"archives": archives,
		"count":    len(archives),
	})
}

// CloseArchive closes an archive handle
func (h *ArchiveHandler) CloseArchive(c *gin.Context) {
	archivePath := c.Query("path")
	if archivePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'path' is required"})
		return
	}

	h.archive.CloseArchive(archivePath)
	c.JSON(http.StatusOK, gin.H{"message": "archive closed"})
}

// ListEntries returns the archive's audio entries in canonical order
func (h *ArchiveHandler) ListEntries(c *gin.Context) {
	archivePath := c.Query("path")
	if archivePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'path' is required"})
		return
	}

	entries, err := h.archive.ListAudioEntries(archivePath)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, services.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, services.ErrInvalidArchive):
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{
			"error":   "failed to list entries",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// GetEntryMetadata returns the cached per-entry record
func (h *ArchiveHandler) GetEntryMetadata(c *gin.Context) {
	archivePath, entryName, ok := entryParams(c)
	if !ok {
		return
	}

	meta, err := h.archive.EntryMetadata(archivePath, entryName)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrEntryNotFound) || errors.Is(err, services.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"error":   "failed to get entry metadata",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entry":    entryName,
		"metadata": meta,
	})
}

// GetDuration returns the entry's duration in milliseconds, if determinable
func (h *ArchiveHandler) GetDuration(c *gin.Context) {
	archivePath, entryName, ok := entryParams(c)
	if !ok {
		return
	}

	duration, found := h.archive.Duration(archivePath, entryName)
	c.JSON(http.StatusOK, gin.H{
		"entry":      entryName,
		"durationMs": duration,
		"known":      found,
	})
}

// GetDetailedMetadata returns the entry's rich tag record, if determinable
func (h *ArchiveHandler) GetDetailedMetadata(c *gin.Context) {
	archivePath, entryName, ok := entryParams(c)
	if !ok {
		return
	}

	full, found := h.archive.DetailedMetadata(archivePath, entryName)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "no metadata could be extracted",
			"entry": entryName,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entry":    entryName,
		"metadata": full,
	})
}

// StreamEntry serves an entry's bytes for preview playback
func (h *ArchiveHandler) StreamEntry(c *gin.Context) {
	archivePath, entryName, ok := entryParams(c)
	if !ok {
		return
	}

	data, err := h.archive.ReadEntry(archivePath, entryName)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrEntryNotFound) || errors.Is(err, services.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"error":   "failed to read entry",
			"details": err.Error(),
		})
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, getContentType(entryName), data)
}

// entryParams pulls the path+entry query pair shared by entry endpoints
func entryParams(c *gin.Context) (string, string, bool) {
	archivePath := c.Query("path")
	entryName := c.Query("entry")
	if archivePath == "" || entryName == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "query parameters 'path' and 'entry' are required",
		})
		return "", "", false
	}
	return archivePath, entryName, true
}

// getContentType returns the appropriate MIME type for an audio entry
func getContentType(entryName string) string {
	switch strings.ToLower(filepath.Ext(entryName)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
