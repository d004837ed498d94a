package services

import (
	"cratedig/config"
	"cratedig/types"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MetadataCache is the durable store mapping archive paths to their cached
// metadata payloads. It validates entries against a (size, mtime) fingerprint
// of the source archive and degrades to a miss on any corruption.
type MetadataCache interface {
	GetValidMetadata(archivePath string) (*types.ArchivePayload, bool)
	Store(archivePath string, payload *types.ArchivePayload) error
	Invalidate(archivePath string)
	ClearAll()
	SizeOnDisk() int64
	ListCachedArchives() []string
}

// metadataCache implements MetadataCache with one JSON entry file per archive
// plus a JSON index file, all under cacheDir.
type metadataCache struct {
	cacheDir  string
	indexFile string
	index     map[string]string // archive path -> entry file path
	debug     bool
	mu        sync.Mutex
}

const indexFileName = "cache_index.json"

// NewMetadataCache creates a metadata cache rooted at cacheDir. An empty
// cacheDir resolves to the configured default location. Debug logging is
// explicit per-instance configuration.
func NewMetadataCache(cacheDir string, debug bool) MetadataCache {
	if cacheDir == "" {
		cacheDir = config.GetCacheLocation()
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.Printf("Error creating cache directory %s: %v", cacheDir, err)
	}

	c := &metadataCache{
		cacheDir:  cacheDir,
		indexFile: filepath.Join(cacheDir, indexFileName),
		debug:     debug,
	}
	c.index = c.loadIndex()
	return c
}

// entryFilePath returns the entry file path for an archive.
func (c *metadataCache) entryFilePath(archivePath string) string {
	return filepath.Join(c.cacheDir, filepath.Base(archivePath)+".cache")
}

// loadIndex reads the persistent index; any failure means an empty index.
func (c *metadataCache) loadIndex() map[string]string {
	data, err := os.ReadFile(c.indexFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Error loading cache index: %v", err)
		}
		return make(map[string]string)
	}

	index := make(map[string]string)
	if err := json.Unmarshal(data, &index); err != nil {
		log.Printf("Error parsing cache index: %v", err)
		return make(map[string]string)
	}
	return index
}

// saveIndex persists the index, best effort.
func (c *metadataCache) saveIndex() {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		log.Printf("Error encoding cache index: %v", err)
		return
	}
	if err := os.WriteFile(c.indexFile, data, 0644); err != nil {
		log.Printf("Error saving cache index: %v", err)
	}
}

// loadEntry reads and parses one entry file. A missing or unreadable file is
// a miss, not an error.
func (c *metadataCache) loadEntry(archivePath string) *types.CacheEntry {
	data, err := os.ReadFile(c.entryFilePath(archivePath))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Error loading cache entry for %s: %v", archivePath, err)
		}
		return nil
	}

	var entry types.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Printf("Error parsing cache entry for %s: %v", archivePath, err)
		return nil
	}
	return &entry
}

// saveEntry writes one entry file, best effort.
func (c *metadataCache) saveEntry(archivePath string, entry *types.CacheEntry) error {
	entryFile := c.entryFilePath(archivePath)
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		log.Printf("Error encoding cache entry for %s: %v", archivePath, err)
		return err
	}
	if err := os.WriteFile(entryFile, data, 0644); err != nil {
		log.Printf("Error saving cache entry for %s: %v", archivePath, err)
		return err
	}
	if c.debug {
		log.Printf("Cache entry saved: %s", entryFile)
	}
	return nil
}

// liveFingerprint stats the archive and returns its current fingerprint.
func liveFingerprint(archivePath string) (*types.Fingerprint, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, err
	}
	return &types.Fingerprint{
		Size:    info.Size(),
		ModTime: info.ModTime().Unix(),
	}, nil
}

// validPayload checks that a payload carries the fields every entry must
// have. Anything less is treated as corruption, never partially used.
func validPayload(p *types.ArchivePayload) bool {
	return p != nil && p.AudioEntries != nil && p.TotalEntries > 0
}

// GetValidMetadata returns the cached payload for an archive when the entry
// exists and its fingerprint still matches the archive on disk. Stale,
// orphaned, and corrupt entries are removed and reported as a miss.
func (c *metadataCache) GetValidMetadata(archivePath string) (*types.ArchivePayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[archivePath]; !ok {
		return nil, false
	}

	entry := c.loadEntry(archivePath)
	if entry == nil {
		return nil, false
	}

	// Source archive gone: the entry has nothing to describe anymore.
	if _, err := os.Stat(archivePath); os.IsNotExist(err) {
		c.removeLocked(archivePath)
		return nil, false
	}

	current, err := liveFingerprint(archivePath)
	if err != nil {
		log.Printf("Error reading archive stats for %s: %v", archivePath, err)
		return nil, false
	}

	switch entry.Kind() {
	case types.FingerprintCurrent:
		if entry.Fingerprint.Size != current.Size || entry.Fingerprint.ModTime != current.ModTime {
			c.removeLocked(archivePath)
			return nil, false
		}

	case types.FingerprintLegacy:
		// Legacy entries carry a content checksum; size is the only cheap
		// validity check available. A match upgrades the entry in place.
		if entry.LegacySize != current.Size {
			c.removeLocked(archivePath)
			return nil, false
		}
		entry.Fingerprint = current
		entry.LegacyChecksum = ""
		entry.LegacySize = 0
		c.saveEntry(archivePath, entry)

	case types.FingerprintNone:
		c.removeLocked(archivePath)
		return nil, false
	}

	if !validPayload(entry.Payload) {
		log.Printf("Cache entry for %s has an incomplete payload, discarding", archivePath)
		c.removeLocked(archivePath)
		return nil, false
	}
	if entry.Payload.Entries == nil {
		entry.Payload.Entries = make(map[string]*types.EntryMetadata)
	}
	return entry.Payload, true
}

// Store writes the payload for an archive under a fresh fingerprint and
// registers it in the index. Callers supply the complete payload; merging
// happens before Store, never inside it.
func (c *metadataCache) Store(archivePath string, payload *types.ArchivePayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fingerprint, err := liveFingerprint(archivePath)
	if err != nil {
		log.Printf("Error computing fingerprint for %s: %v", archivePath, err)
		return err
	}

	entry := &types.CacheEntry{
		Fingerprint: fingerprint,
		WrittenAt:   time.Now().Unix(),
		Payload:     payload,
	}
	if err := c.saveEntry(archivePath, entry); err != nil {
		return err
	}

	c.index[archivePath] = c.entryFilePath(archivePath)
	c.saveIndex()
	return nil
}

// Invalidate removes an archive's entry and index registration. Removing an
// unknown path is a no-op.
func (c *metadataCache) Invalidate(archivePath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(archivePath)
}

// removeLocked deletes the entry file and index row. Callers hold c.mu.
func (c *metadataCache) removeLocked(archivePath string) {
	entryFile, ok := c.index[archivePath]
	if !ok {
		return
	}
	if err := os.Remove(entryFile); err != nil && !os.IsNotExist(err) {
		log.Printf("Error removing cache entry %s: %v", entryFile, err)
	}
	delete(c.index, archivePath)
	c.saveIndex()
}

// ClearAll removes every cache entry and resets the index.
func (c *metadataCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entryFile := range c.index {
		if err := os.Remove(entryFile); err != nil && !os.IsNotExist(err) {
			log.Printf("Error removing cache entry %s: %v", entryFile, err)
		}
	}
	c.index = make(map[string]string)
	c.saveIndex()
}

// SizeOnDisk returns the total size in bytes of all registered entry files.
func (c *metadataCache) SizeOnDisk() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, entryFile := range c.index {
		if info, err := os.Stat(entryFile); err == nil {
			total += info.Size()
		}
	}
	return total
}

// ListCachedArchives returns the archive paths registered in the index.
func (c *metadataCache) ListCachedArchives() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	archives := make([]string, 0, len(c.index))
	for archivePath := range c.index {
		archives = append(archives, archivePath)
	}
	return archives
}
