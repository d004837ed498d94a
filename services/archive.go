package services

import (
	"archive/zip"
	"cratedig/types"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"
)

// ProgressFunc receives status text and a 0-100 percentage during long
// scans and extractions.
type ProgressFunc func(status string, percent int)

// maxHeaderBytes is how much of an entry a probe reads before falling back
// to the full entry.
const maxHeaderBytes = 1 << 20

// scanBatchSize is how many entries are processed between progress reports.
const scanBatchSize = 50

// ArchiveService presents a uniform, cache-backed view of the audio entries
// in ZIP archives. Every lookup goes to the metadata cache first; only a
// miss or invalidation triggers archive I/O, and scan results are written
// back through the cache before the call returns.
type ArchiveService interface {
	Open(archivePath string) (*types.LoadStats, error)
	ListAudioEntries(archivePath string) ([]string, error)
	ReadEntry(archivePath, entryName string) ([]byte, error)
	ReadEntryRange(archivePath, entryName string, maxBytes int64) ([]byte, error)
	ExtractEntry(archivePath, entryName, outputDir string) (string, error)
	ExtractEntries(archivePath string, entryNames []string, outputDir string) ([]string, error)
	EntryMetadata(archivePath, entryName string) (*types.EntryMetadata, error)
	Duration(archivePath, entryName string) (int64, bool)
	DetailedMetadata(archivePath, entryName string) (*types.FullMetadata, bool)
	OpenArchives() []string
	CloseArchive(archivePath string)
	SetProgressCallback(cb ProgressFunc)
	ScanCount() int
	Cleanup()
}

// archiveService implements ArchiveService
type archiveService struct {
	openZips  map[string]*zip.ReadCloser
	extracted []string
	tempDir   string
	cache     MetadataCache
	probe     TagProbe
	progress  ProgressFunc
	scans     int
	mu        sync.Mutex
}

// NewArchiveService creates an archive service backed by the given cache and
// probe.
func NewArchiveService(cache MetadataCache, probe TagProbe) ArchiveService {
	return &archiveService{
		openZips: make(map[string]*zip.ReadCloser),
		cache:    cache,
		probe:    probe,
	}
}

// SetProgressCallback sets a callback for progress updates.
func (s *archiveService) SetProgressCallback(cb ProgressFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = cb
}

// reportProgress invokes the progress callback if one is set.
func (s *archiveService) reportProgress(status string, percent int) {
	if s.progress != nil {
		s.progress(status, percent)
	}
}

// ScanCount returns how many live archive scans have run. Cache hits do not
// increment it.
func (s *archiveService) ScanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

// Open loads an archive, serving from the cache when its fingerprint still
// matches and otherwise scanning it and persisting the result.
func (s *archiveService) Open(archivePath string) (*types.LoadStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, _, err := s.openLocked(normalizePath(archivePath))
	return stats, err
}

// ListAudioEntries returns the archive's audio entries in the canonical
// order: folders case-insensitively, files case-insensitively within each.
func (s *archiveService) ListAudioEntries(archivePath string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := s.payloadLocked(normalizePath(archivePath))
	if err != nil {
		return nil, err
	}
	return payload.AudioEntries, nil
}

// EntryMetadata returns the cached per-entry record (size, archive
// timestamp, plus whatever probes have filled in so far).
func (s *archiveService) EntryMetadata(archivePath, entryName string) (*types.EntryMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := s.payloadLocked(normalizePath(archivePath))
	if err != nil {
		return nil, err
	}
	meta, ok := payload.Entries[entryName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entryName)
	}
	return meta, nil
}

// ReadEntry reads the whole entry into memory.
func (s *archiveService) ReadEntry(archivePath, entryName string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readEntryLocked(normalizePath(archivePath), entryName, -1)
}

// ReadEntryRange reads at most maxBytes from the start of the entry, so
// probing does not decompress huge entries in full.
func (s *archiveService) ReadEntryRange(archivePath, entryName string, maxBytes int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readEntryLocked(normalizePath(archivePath), entryName, maxBytes)
}

// ExtractEntry writes the entry's base name into outputDir (the session temp
// directory when outputDir is empty) and tracks the written path for cleanup.
func (s *archiveService) ExtractEntry(archivePath, entryName, outputDir string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extractEntryLocked(normalizePath(archivePath), entryName, outputDir)
}

// ExtractEntries extracts several entries, reporting progress per file.
func (s *archiveService) ExtractEntries(archivePath string, entryNames []string, outputDir string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archivePath = normalizePath(archivePath)
	written := make([]string, 0, len(entryNames))
	for i, name := range entryNames {
		outPath, err := s.extractEntryLocked(archivePath, name, outputDir)
		if err != nil {
			return written, err
		}
		written = append(written, outPath)
		s.reportProgress(fmt.Sprintf("Extracted %d/%d files", i+1, len(entryNames)),
			(i+1)*100/len(entryNames))
	}
	return written, nil
}

// Duration returns the entry's duration in milliseconds, probing and caching
// it on first request. Absence means the duration could not be determined.
func (s *archiveService) Duration(archivePath, entryName string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archivePath = normalizePath(archivePath)
	if payload, ok := s.cache.GetValidMetadata(archivePath); ok {
		if meta, ok := payload.Entries[entryName]; ok && meta.DurationMs != nil {
			return *meta.DurationMs, true
		}
	}

	duration, ok := s.probeDurationLocked(archivePath, entryName)
	if !ok {
		return 0, false
	}

	s.mergeEntryLocked(archivePath, entryName, func(meta *types.EntryMetadata) {
		d := duration
		meta.DurationMs = &d
	})
	return duration, true
}

// DetailedMetadata returns the entry's rich tag record, probing and caching
// it on first request.
func (s *archiveService) DetailedMetadata(archivePath, entryName string) (*types.FullMetadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archivePath = normalizePath(archivePath)
	if payload, ok := s.cache.GetValidMetadata(archivePath); ok {
		if meta, ok := payload.Entries[entryName]; ok && meta.Full != nil {
			return meta.Full, true
		}
	}

	data, err := s.readEntryLocked(archivePath, entryName, maxHeaderBytes)
	if err != nil {
		log.Printf("Failed to read %s for metadata probe: %v", entryName, err)
		return nil, false
	}
	size := s.entrySizeLocked(archivePath, entryName)

	full, ok := s.probe.ProbeFull(data, size)
	if !ok && size > maxHeaderBytes {
		if data, err = s.readEntryLocked(archivePath, entryName, -1); err == nil {
			full, ok = s.probe.ProbeFull(data, size)
		}
	}
	if !ok {
		return nil, false
	}

	s.mergeEntryLocked(archivePath, entryName, func(meta *types.EntryMetadata) {
		meta.Full = full
		if meta.DurationMs == nil && full.DurationMs > 0 {
			d := full.DurationMs
			meta.DurationMs = &d
		}
	})
	return full, true
}

// OpenArchives returns the paths of currently open archives.
func (s *archiveService) OpenArchives() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.openZips))
	for p := range s.openZips {
		paths = append(paths, p)
	}
	return paths
}

// CloseArchive closes one archive handle. Unknown paths are a no-op.
func (s *archiveService) CloseArchive(archivePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archivePath = normalizePath(archivePath)
	if zr, ok := s.openZips[archivePath]; ok {
		zr.Close()
		delete(s.openZips, archivePath)
	}
}

// Cleanup closes every archive handle, removes every file written by
// ExtractEntry this session, and releases the session temp directory. Safe
// to call repeatedly.
func (s *archiveService) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, filePath := range s.extracted {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			log.Printf("Error removing extracted file %s: %v", filePath, err)
		}
	}
	s.extracted = nil

	if s.tempDir != "" {
		if err := os.RemoveAll(s.tempDir); err != nil {
			log.Printf("Error removing temp directory %s: %v", s.tempDir, err)
		}
		s.tempDir = ""
	}

	for _, zr := range s.openZips {
		zr.Close()
	}
	s.openZips = make(map[string]*zip.ReadCloser)
}

// openLocked is the scan path behind Open and payloadLocked. On a cache hit
// it performs no archive I/O at all.
func (s *archiveService) openLocked(archivePath string) (*types.LoadStats, *types.ArchivePayload, error) {
	start := time.Now()
	stats := &types.LoadStats{Steps: make(map[string]time.Duration)}

	if _, err := os.Stat(archivePath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, archivePath)
	}

	s.reportProgress("Checking cache...", 0)
	cacheStart := time.Now()
	payload, ok := s.cache.GetValidMetadata(archivePath)
	stats.Steps["cache_lookup"] = time.Since(cacheStart)

	if ok {
		stats.UsedCache = true
		stats.AudioCount = len(payload.AudioEntries)
		stats.TotalTime = time.Since(start)
		return stats, payload, nil
	}

	s.reportProgress("Opening and validating archive...", 0)
	validateStart := time.Now()
	zr, err := s.ensureOpenLocked(archivePath)
	if err != nil {
		return nil, nil, err
	}
	s.scans++

	names := make([]string, 0, len(zr.File))
	entryFiles := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		if IsAudioEntry(f.Name) {
			names = append(names, f.Name)
			entryFiles[f.Name] = f
		}
	}
	if len(names) == 0 {
		s.reportProgress("No audio files found in archive", 100)
		return nil, nil, fmt.Errorf("%w: no audio entries in %s", ErrInvalidArchive, archivePath)
	}
	audioEntries := SortAudioEntries(names)
	stats.Steps["validation"] = time.Since(validateStart)
	s.reportProgress(fmt.Sprintf("Found %d audio files", len(audioEntries)), 0)

	// Scan entry records in batches so progress keeps flowing on big packs.
	metadataStart := time.Now()
	entries := make(map[string]*types.EntryMetadata, len(audioEntries))
	total := len(audioEntries)
	for i := 0; i < total; i += scanBatchSize {
		end := i + scanBatchSize
		if end > total {
			end = total
		}
		for _, name := range audioEntries[i:end] {
			f := entryFiles[name]
			meta := &types.EntryMetadata{
				Size:        int64(f.UncompressedSize64),
				ArchiveTime: f.Modified,
			}
			if duration, ok := s.probeEntryLocked(f); ok {
				meta.DurationMs = &duration
			}
			entries[name] = meta
		}
		s.reportProgress(fmt.Sprintf("Extracting metadata (%d/%d)...", end, total), end*100/total)
	}
	stats.Steps["metadata"] = time.Since(metadataStart)

	payload = &types.ArchivePayload{
		AudioEntries: audioEntries,
		TotalEntries: len(zr.File),
		Entries:      entries,
	}

	cacheWriteStart := time.Now()
	if err := s.cache.Store(archivePath, payload); err != nil {
		log.Printf("Failed to cache metadata for %s: %v", archivePath, err)
	}
	stats.Steps["cache_write"] = time.Since(cacheWriteStart)

	s.reportProgress("Archive loaded successfully", 100)
	stats.AudioCount = len(audioEntries)
	stats.TotalTime = time.Since(start)
	return stats, payload, nil
}

// payloadLocked returns the archive's payload, cache-first, scanning on a
// miss.
func (s *archiveService) payloadLocked(archivePath string) (*types.ArchivePayload, error) {
	if payload, ok := s.cache.GetValidMetadata(archivePath); ok {
		return payload, nil
	}
	_, payload, err := s.openLocked(archivePath)
	return payload, err
}

// ensureOpenLocked returns the archive's ZIP reader, opening it if needed.
func (s *archiveService) ensureOpenLocked(archivePath string) (*zip.ReadCloser, error) {
	if zr, ok := s.openZips[archivePath]; ok {
		return zr, nil
	}

	if _, err := os.Stat(archivePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, archivePath)
	}
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, archivePath, err)
	}
	s.openZips[archivePath] = zr
	return zr, nil
}

// findEntryLocked resolves an entry name against the archive's directory.
func (s *archiveService) findEntryLocked(archivePath, entryName string) (*zip.File, error) {
	zr, err := s.ensureOpenLocked(archivePath)
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if f.Name == entryName {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entryName)
}

// readEntryLocked reads an entry, whole when maxBytes < 0, else at most
// maxBytes from the start.
func (s *archiveService) readEntryLocked(archivePath, entryName string, maxBytes int64) ([]byte, error) {
	f, err := s.findEntryLocked(archivePath, entryName)
	if err != nil {
		return nil, err
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("error reading entry %s: %w", entryName, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if maxBytes >= 0 {
		r = io.LimitReader(rc, maxBytes)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading entry %s: %w", entryName, err)
	}
	return data, nil
}

// entrySizeLocked returns the entry's uncompressed size, or 0 when unknown.
func (s *archiveService) entrySizeLocked(archivePath, entryName string) int64 {
	f, err := s.findEntryLocked(archivePath, entryName)
	if err != nil {
		return 0
	}
	return int64(f.UncompressedSize64)
}

// probeEntryLocked probes one zip entry's duration, header range first, full
// read as fallback.
func (s *archiveService) probeEntryLocked(f *zip.File) (int64, bool) {
	size := int64(f.UncompressedSize64)

	read := func(limit int64) []byte {
		rc, err := f.Open()
		if err != nil {
			log.Printf("Failed to open %s for probing: %v", f.Name, err)
			return nil
		}
		defer rc.Close()
		var r io.Reader = rc
		if limit >= 0 {
			r = io.LimitReader(rc, limit)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			log.Printf("Failed to read %s for probing: %v", f.Name, err)
			return nil
		}
		return data
	}

	data := read(maxHeaderBytes)
	if data == nil {
		return 0, false
	}
	if duration, ok := s.probe.ProbeDuration(data, size); ok {
		return duration, true
	}

	// Header-only read was inconclusive; retry with the whole entry.
	if size > maxHeaderBytes {
		if data = read(-1); data != nil {
			if duration, ok := s.probe.ProbeDuration(data, size); ok {
				return duration, true
			}
		}
	}
	return 0, false
}

// probeDurationLocked probes a named entry's duration via the range-read
// path.
func (s *archiveService) probeDurationLocked(archivePath, entryName string) (int64, bool) {
	f, err := s.findEntryLocked(archivePath, entryName)
	if err != nil {
		log.Printf("Cannot probe duration for %s: %v", entryName, err)
		return 0, false
	}
	return s.probeEntryLocked(f)
}

// mergeEntryLocked applies a read-modify-write against the cached payload:
// load (or rebuild) the payload, update one entry record, store the whole
// payload back. Per-entry fields are additive; only full invalidation clears
// them.
func (s *archiveService) mergeEntryLocked(archivePath, entryName string, update func(*types.EntryMetadata)) {
	payload, err := s.payloadLocked(archivePath)
	if err != nil {
		log.Printf("Cannot update cached metadata for %s: %v", archivePath, err)
		return
	}

	merged := payload.Clone()
	meta, ok := merged.Entries[entryName]
	if !ok {
		f, err := s.findEntryLocked(archivePath, entryName)
		if err != nil {
			log.Printf("Cannot update cached metadata for %s: %v", entryName, err)
			return
		}
		meta = &types.EntryMetadata{
			Size:        int64(f.UncompressedSize64),
			ArchiveTime: f.Modified,
		}
		merged.Entries[entryName] = meta
	}
	update(meta)

	if err := s.cache.Store(archivePath, merged); err != nil {
		log.Printf("Failed to cache updated metadata for %s: %v", archivePath, err)
	}
}

// extractEntryLocked extracts one entry and verifies the write.
func (s *archiveService) extractEntryLocked(archivePath, entryName, outputDir string) (string, error) {
	f, err := s.findEntryLocked(archivePath, entryName)
	if err != nil {
		return "", err
	}

	if outputDir == "" {
		outputDir, err = s.sessionTempDirLocked()
		if err != nil {
			return "", fmt.Errorf("%w: extracting entry %s: %w", ErrIO, entryName, err)
		}
	} else if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("%w: extracting entry %s: %w", ErrIO, entryName, err)
	}

	outPath := filepath.Join(outputDir, path.Base(entryName))
	log.Printf("Extracting %s to %s", entryName, outPath)

	src, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("%w: extracting entry %s: %w", ErrIO, entryName, err)
	}
	defer src.Close()

	dst, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("%w: extracting entry %s: %w", ErrIO, entryName, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("%w: extracting entry %s: %w", ErrIO, entryName, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("%w: extracting entry %s: %w", ErrIO, entryName, err)
	}

	// Verify the write landed before reporting success.
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("%w: extracting entry %s: %w", ErrIO, entryName, err)
	}

	s.extracted = append(s.extracted, outPath)
	return outPath, nil
}

// sessionTempDirLocked lazily creates the session's temp directory.
func (s *archiveService) sessionTempDirLocked() (string, error) {
	if s.tempDir != "" {
		return s.tempDir, nil
	}
	dir, err := os.MkdirTemp("", "cratedig-*")
	if err != nil {
		return "", err
	}
	s.tempDir = dir
	return dir, nil
}

// normalizePath makes the archive path absolute so cache keys are unique per
// file.
func normalizePath(archivePath string) string {
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return archivePath
	}
	return abs
}
