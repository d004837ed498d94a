package handlers

import (
	"cratedig/config"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// SettingsHandler handles user settings endpoints
type SettingsHandler struct{}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler() *SettingsHandler {
	return &SettingsHandler{}
}

// GetSettings returns the effective settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cacheDirectory":   config.GetCacheLocation(),
		"extractDirectory": config.GetExtractLocation(),
	})
}

// UpdateSettings persists the user's directory preferences
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var settings config.UserSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid settings payload",
			"details": err.Error(),
		})
		return
	}

	if settings.CacheDirectory != "" {
		if err := validatePath(settings.CacheDirectory); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid cache directory",
				"details": err.Error(),
			})
			return
		}
	}
	if settings.ExtractDirectory != "" {
		if err := validatePath(settings.ExtractDirectory); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid extract directory",
				"details": err.Error(),
			})
			return
		}
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode settings"})
		return
	}

	if err := os.WriteFile(config.GetSettingsFilePath(), data, 0644); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to save settings",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "settings saved",
		"settings": settings,
	})
}

// validatePath checks that the directory exists or can be created
func validatePath(dir string) error {
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("path must be absolute: %s", dir)
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("path is not a directory: %s", dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}

	return os.MkdirAll(dir, 0755)
}
