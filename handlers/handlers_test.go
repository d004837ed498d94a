package handlers

import (
	"archive/zip"
	"bytes"
	"cratedig/services"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testRouter wires the handlers over real services rooted in a temp dir.
func testRouter(t *testing.T) (*gin.Engine, services.ArchiveService, string) {
	t.Helper()
	dir := t.TempDir()

	cache := services.NewMetadataCache(filepath.Join(dir, "cache"), false)
	archive := services.NewArchiveService(cache, services.NewTagProbe())
	t.Cleanup(archive.Cleanup)

	archiveHandler := NewArchiveHandler(archive)
	cacheHandler := NewCacheHandler(cache)
	searchHandler := NewSearchHandler(cache)
	healthHandler := NewHealthHandler()

	r := gin.New()
	r.GET("/health", healthHandler.HealthCheck)
	r.POST("/api/archives/open", archiveHandler.OpenArchive)
	r.GET("/api/archives/entries", archiveHandler.ListEntries)
	r.GET("/api/archives/entry/stream", archiveHandler.StreamEntry)
	r.GET("/api/cache", cacheHandler.GetCacheInfo)
	r.DELETE("/api/cache", cacheHandler.ClearCache)
	r.GET("/api/search", searchHandler.Search)
	return r, archive, dir
}

// writeTestZip builds a small archive with one WAV entry.
func writeTestZip(t *testing.T, dir string) string {
	t.Helper()
	archivePath := filepath.Join(dir, "pack.zip")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("drums/kick.wav")
	require.NoError(t, err)

	// Minimal RIFF header; enough for the scanner to accept the entry.
	wav := append([]byte("RIFF"), 0x24, 0, 0, 0)
	wav = append(wav, []byte("WAVE")...)
	_, err = w.Write(wav)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(archivePath, buf.Bytes(), 0644))
	return archivePath
}

func TestHealthCheck(t *testing.T) {
	r, _, _ := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "cratedig", body["service"])
}

func TestOpenArchive(t *testing.T) {
	r, _, dir := testRouter(t)
	archivePath := writeTestZip(t, dir)

	payload, _ := json.Marshal(map[string]string{"path": archivePath})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/archives/open", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenArchiveNotFound(t *testing.T) {
	r, _, dir := testRouter(t)

	payload, _ := json.Marshal(map[string]string{"path": filepath.Join(dir, "missing.zip")})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/archives/open", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpenArchiveMissingBody(t *testing.T) {
	r, _, _ := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/archives/open", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEntries(t *testing.T) {
	r, _, dir := testRouter(t)
	archivePath := writeTestZip(t, dir)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/archives/entries?path="+archivePath, nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Entries []string `json:"entries"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"drums/kick.wav"}, body.Entries)
	assert.Equal(t, 1, body.Count)
}

func TestStreamEntryContentType(t *testing.T) {
	r, _, dir := testRouter(t)
	archivePath := writeTestZip(t, dir)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/archives/entry/stream?path="+archivePath+"&entry=drums/kick.wav", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/wav", w.Header().Get("Content-Type"))
}

func TestCacheInfoAndClear(t *testing.T) {
	r, archive, dir := testRouter(t)
	archivePath := writeTestZip(t, dir)
	_, err := archive.Open(archivePath)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/cache", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var info struct {
		Count      int   `json:"count"`
		SizeOnDisk int64 `json:"sizeOnDisk"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, 1, info.Count)
	assert.Greater(t, info.SizeOnDisk, int64(0))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/cache", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/cache", nil)
	r.ServeHTTP(w, req)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, 0, info.Count)
}

func TestSearch(t *testing.T) {
	r, archive, dir := testRouter(t)
	archivePath := writeTestZip(t, dir)
	_, err := archive.Open(archivePath)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=kick", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Matches []SearchMatch `json:"matches"`
		Count   int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "drums/kick.wav", body.Matches[0].Entry)

	// Queries with no hits return an empty list, not an error.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/search?q=nothing-here", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Missing query is a client error.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/search", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
