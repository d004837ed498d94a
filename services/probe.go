package services

import (
	"bytes"
	"cratedig/types"
	"encoding/binary"

	"github.com/dhowden/tag"
)

// TagProbe extracts audio properties from raw entry bytes. Probes accept a
// truncated header read; totalSize is the entry's full uncompressed size so
// estimates and end-of-stream checks still work on partial data. A probe that
// cannot determine a value reports absence, never a guess.
type TagProbe interface {
	ProbeDuration(data []byte, totalSize int64) (int64, bool)
	ProbeFull(data []byte, totalSize int64) (*types.FullMetadata, bool)
}

// tagProbe implements TagProbe
type tagProbe struct{}

// NewTagProbe creates a new tag probe
func NewTagProbe() TagProbe {
	return &tagProbe{}
}

// audioInfo is the technical half of a probe result.
type audioInfo struct {
	format      string
	durationMs  int64
	hasDuration bool
	sampleRate  int
	channels    int
	bitDepth    int
	bitrate     int // bits per second
}

// ProbeDuration returns the entry's duration in milliseconds.
func (p *tagProbe) ProbeDuration(data []byte, totalSize int64) (int64, bool) {
	info := probeTechnical(data, totalSize)
	if info == nil || !info.hasDuration {
		return 0, false
	}
	return info.durationMs, true
}

// ProbeFull returns the rich metadata record: technical properties from the
// container header plus free-form tags where the container carries them.
func (p *tagProbe) ProbeFull(data []byte, totalSize int64) (*types.FullMetadata, bool) {
	info := probeTechnical(data, totalSize)
	if info == nil {
		return nil, false
	}

	full := &types.FullMetadata{
		Format:     info.format,
		SampleRate: info.sampleRate,
		Channels:   info.channels,
		BitDepth:   info.bitDepth,
		Bitrate:    info.bitrate,
	}
	if info.hasDuration {
		full.DurationMs = info.durationMs
	}

	// Tag parsing is best effort; WAV entries typically carry no tags at all.
	if meta, err := tag.ReadFrom(bytes.NewReader(data)); err == nil {
		full.Title = meta.Title()
		full.Artist = meta.Artist()
		full.Album = meta.Album()
		full.AlbumArtist = meta.AlbumArtist()
		full.Composer = meta.Composer()
		full.Genre = meta.Genre()
		full.Year = meta.Year()
		full.Comment = meta.Comment()
		full.Track, full.TrackTotal = meta.Track()
		full.Disc, full.DiscTotal = meta.Disc()
	}

	return full, true
}

// probeTechnical sniffs the container by magic bytes and dispatches.
func probeTechnical(data []byte, totalSize int64) *audioInfo {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return probeWAV(data)
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("fLaC")):
		return probeFLAC(data)
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("OggS")):
		return probeOgg(data, totalSize)
	case len(data) >= 3 && (bytes.Equal(data[0:3], []byte("ID3")) || isMP3FrameSync(data)):
		return probeMP3(data, totalSize)
	default:
		return nil
	}
}

// probeWAV walks RIFF chunks for fmt and data. The data chunk's declared size
// is in the header, so a truncated read still yields an exact duration.
func probeWAV(data []byte) *audioInfo {
	info := &audioInfo{format: "wav"}
	var byteRate uint32
	var dataSize uint32
	haveFmt, haveData := false, false

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return nil
			}
			info.channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			info.bitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			info.bitrate = int(byteRate) * 8
			haveFmt = true
		case "data":
			dataSize = chunkSize
			haveData = true
		}
		if haveFmt && haveData {
			break
		}
		// Chunks are word aligned.
		pos = body + int(chunkSize)
		if chunkSize%2 == 1 {
			pos++
		}
	}

	if !haveFmt {
		return nil
	}
	if haveData && byteRate > 0 {
		info.durationMs = int64(dataSize) * 1000 / int64(byteRate)
		info.hasDuration = true
	}
	return info
}

// probeFLAC decodes the mandatory STREAMINFO block.
func probeFLAC(data []byte) *audioInfo {
	// 4 bytes magic, 4 bytes block header, then the 34-byte STREAMINFO body.
	if len(data) < 8+34 {
		return nil
	}
	if data[4]&0x7F != 0 {
		// First metadata block must be STREAMINFO.
		return nil
	}
	b := data[8:]

	sampleRate := int(b[10])<<12 | int(b[11])<<4 | int(b[12])>>4
	if sampleRate == 0 {
		return nil
	}
	info := &audioInfo{
		format:     "flac",
		sampleRate: sampleRate,
		channels:   int(b[12]>>1)&0x07 + 1,
		bitDepth:   int(b[12]&0x01)<<4 | int(b[13]>>4) + 1,
	}
	totalSamples := int64(b[13]&0x0F)<<32 | int64(b[14])<<24 | int64(b[15])<<16 | int64(b[16])<<8 | int64(b[17])
	if totalSamples > 0 {
		info.durationMs = totalSamples * 1000 / int64(sampleRate)
		info.hasDuration = true
	}
	return info
}

// probeOgg reads the Vorbis identification header for stream properties and
// the terminal page's granule position for duration. The granule is only
// trustworthy when the whole entry was read, so a truncated probe yields no
// duration and the caller falls back to a full read.
func probeOgg(data []byte, totalSize int64) *audioInfo {
	idx := bytes.Index(data, []byte("\x01vorbis"))
	if idx < 0 || idx+23 > len(data) {
		return nil
	}
	header := data[idx+7:]
	if len(header) < 16 {
		return nil
	}
	info := &audioInfo{
		format:     "ogg",
		channels:   int(header[4]),
		sampleRate: int(binary.LittleEndian.Uint32(header[5:9])),
		bitrate:    int(int32(binary.LittleEndian.Uint32(header[13:17]))), // nominal
	}
	if info.sampleRate == 0 {
		return nil
	}

	if int64(len(data)) < totalSize {
		return info
	}
	for search := data; ; {
		last := bytes.LastIndex(search, []byte("OggS"))
		if last < 0 {
			break
		}
		if last+14 <= len(search) {
			granule := int64(binary.LittleEndian.Uint64(search[last+6 : last+14]))
			if granule > 0 {
				info.durationMs = granule * 1000 / int64(info.sampleRate)
				info.hasDuration = true
			}
			break
		}
		search = search[:last]
	}
	return info
}

// probeMP3 locates the first MPEG audio frame header and estimates duration
// from the frame bitrate and the entry's total size. Constant-bitrate files
// are exact; variable-bitrate files get a bitrate-weighted estimate.
func probeMP3(data []byte, totalSize int64) *audioInfo {
	offset := 0
	if len(data) >= 10 && bytes.Equal(data[0:3], []byte("ID3")) {
		tagSize := int(data[6])<<21 | int(data[7])<<14 | int(data[8])<<7 | int(data[9])
		offset = 10 + tagSize
	}

	// Find the frame sync within a bounded window past the tag.
	for ; offset+4 <= len(data) && offset < 1<<16; offset++ {
		if isMP3FrameSync(data[offset:]) {
			break
		}
	}
	if offset+4 > len(data) || !isMP3FrameSync(data[offset:]) {
		return nil
	}

	h1, h2, h3 := data[offset+1], data[offset+2], data[offset+3]
	version := (h1 >> 3) & 0x03 // 3 = MPEG1, 2 = MPEG2
	layer := (h1 >> 1) & 0x03   // 1 = Layer III
	if layer != 1 || (version != 3 && version != 2) {
		return nil
	}

	var bitrates [16]int
	var sampleRates [3]int
	if version == 3 {
		bitrates = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
		sampleRates = [3]int{44100, 48000, 32000}
	} else {
		bitrates = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}
		sampleRates = [3]int{22050, 24000, 16000}
	}

	bitrateKbps := bitrates[h2>>4]
	sampleRateIdx := (h2 >> 2) & 0x03
	if bitrateKbps == 0 || sampleRateIdx == 3 {
		return nil
	}

	info := &audioInfo{
		format:     "mp3",
		sampleRate: sampleRates[sampleRateIdx],
		channels:   2,
		bitrate:    bitrateKbps * 1000,
	}
	if h3>>6 == 3 {
		info.channels = 1
	}

	if audioBytes := totalSize - int64(offset); audioBytes > 0 {
		info.durationMs = audioBytes * 8 / int64(bitrateKbps)
		info.hasDuration = true
	}
	return info
}

// isMP3FrameSync reports whether data starts with an MPEG frame sync word.
func isMP3FrameSync(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}
