package types

import "time"

// ArchivePayload is the cached metadata document for one archive: the ordered
// audio entry list, the archive's total entry count, and per-entry records.
type ArchivePayload struct {
	AudioEntries []string                  `json:"audio_files"`
	TotalEntries int                       `json:"total_files"`
	Entries      map[string]*EntryMetadata `json:"file_metadata"`
}

// Clone returns a deep copy of the payload so callers can merge new fields
// without mutating a value another caller may still hold.
func (p *ArchivePayload) Clone() *ArchivePayload {
	if p == nil {
		return nil
	}
	out := &ArchivePayload{
		AudioEntries: append([]string(nil), p.AudioEntries...),
		TotalEntries: p.TotalEntries,
		Entries:      make(map[string]*EntryMetadata, len(p.Entries)),
	}
	for name, meta := range p.Entries {
		out.Entries[name] = meta.Clone()
	}
	return out
}

// EntryMetadata holds what we know about a single audio entry. Size and
// ArchiveTime come from the ZIP central directory; duration and the full tag
// record are filled in lazily by probes and are never cleared once set.
type EntryMetadata struct {
	Size        int64         `json:"size"`
	ArchiveTime time.Time     `json:"timestamp"`
	DurationMs  *int64        `json:"duration_ms,omitempty"`
	Full        *FullMetadata `json:"full_metadata,omitempty"`
}

// Clone returns a copy of the record with its own optional fields.
func (m *EntryMetadata) Clone() *EntryMetadata {
	if m == nil {
		return nil
	}
	out := *m
	if m.DurationMs != nil {
		d := *m.DurationMs
		out.DurationMs = &d
	}
	if m.Full != nil {
		f := *m.Full
		out.Full = &f
	}
	return &out
}

// FullMetadata is the rich tag record for an audio entry: technical
// properties from the container header plus free-form tag fields.
type FullMetadata struct {
	DurationMs int64  `json:"duration_ms,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	BitDepth   int    `json:"bit_depth,omitempty"`
	Bitrate    int    `json:"bitrate,omitempty"`
	Format     string `json:"format,omitempty"`

	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Composer    string `json:"composer,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Year        int    `json:"year,omitempty"`
	Track       int    `json:"track,omitempty"`
	TrackTotal  int    `json:"track_total,omitempty"`
	Disc        int    `json:"disc,omitempty"`
	DiscTotal   int    `json:"disc_total,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

// LoadStats reports how an Open call was served and where the time went.
type LoadStats struct {
	UsedCache  bool                     `json:"usedCache"`
	AudioCount int                      `json:"audioCount"`
	TotalTime  time.Duration            `json:"totalTime"`
	Steps      map[string]time.Duration `json:"steps"`
}
