package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

var Env = map[string]string{
	"CRATEDIG_CACHE":    os.Getenv("CRATEDIG_CACHE"),
	"CRATEDIG_EXTRACTS": os.Getenv("CRATEDIG_EXTRACTS"),
}

// GetCacheLocation returns the metadata cache root directory.
func GetCacheLocation() string {
	// First check environment variable for custom location
	if customPath := Env["CRATEDIG_CACHE"]; customPath != "" {
		return customPath
	}

	// Then the user's saved preference
	if settings := getUserSettings(); settings != nil && settings.CacheDirectory != "" {
		return settings.CacheDirectory
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if can't get home dir
		return filepath.Join(".", "cache")
	}

	return filepath.Join(homeDir, ".cratedig", "cache")
}

// GetExtractLocation returns where extracted entries land. Empty means the
// accessor's session temp directory.
func GetExtractLocation() string {
	if customPath := Env["CRATEDIG_EXTRACTS"]; customPath != "" {
		return customPath
	}
	if settings := getUserSettings(); settings != nil && settings.ExtractDirectory != "" {
		return settings.ExtractDirectory
	}
	return ""
}

// UserSettings represents the user's personal settings
type UserSettings struct {
	CacheDirectory   string `json:"cacheDirectory"`
	ExtractDirectory string `json:"extractDirectory"`
}

// GetSettingsFilePath returns the path to the settings file
func GetSettingsFilePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".cratedig-settings.json")
}

// getUserSettings loads the user's saved preferences from the settings file
func getUserSettings() *UserSettings {
	settingsPath := GetSettingsFilePath()

	// If file doesn't exist, fall back to env vars / defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil
	}

	return &settings
}
