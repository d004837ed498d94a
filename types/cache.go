package types

// Fingerprint identifies the exact state of an archive file at cache-write
// time. A cache entry is valid only while the archive's live (size, mtime)
// still equals its stored fingerprint.
type Fingerprint struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"mtime"`
}

// CacheEntry is the on-disk record for one archive. Exactly one of the two
// validity forms is populated: Fingerprint (current format) or
// LegacyChecksum+LegacySize (old format, validated by size only and rewritten
// in fingerprint form on first successful read).
type CacheEntry struct {
	Fingerprint    *Fingerprint    `json:"file_stats,omitempty"`
	LegacyChecksum string          `json:"checksum,omitempty"`
	LegacySize     int64           `json:"size,omitempty"`
	WrittenAt      int64           `json:"timestamp"`
	Payload        *ArchivePayload `json:"metadata"`
}

// FingerprintKind classifies which validity form a cache entry carries, so
// validation handles every case explicitly.
type FingerprintKind int

const (
	FingerprintNone FingerprintKind = iota
	FingerprintCurrent
	FingerprintLegacy
)

// Kind reports the entry's validity form.
func (e *CacheEntry) Kind() FingerprintKind {
	switch {
	case e.Fingerprint != nil:
		return FingerprintCurrent
	case e.LegacyChecksum != "":
		return FingerprintLegacy
	default:
		return FingerprintNone
	}
}
