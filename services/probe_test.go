package services

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeWAV builds a minimal PCM WAV file. With 44100 Hz mono 16-bit, one
// second of audio is 88200 data bytes.
func makeWAV(sampleRate, channels, bitDepth int, dataSize uint32) []byte {
	byteRate := uint32(sampleRate * channels * bitDepth / 8)
	blockAlign := uint16(channels * bitDepth / 8)

	buf := make([]byte, 0, 44+int(dataSize))
	buf = append(buf, []byte("RIFF")...)
	buf = binary.LittleEndian.AppendUint32(buf, 36+dataSize)
	buf = append(buf, []byte("WAVE")...)

	buf = append(buf, []byte("fmt ")...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, byteRate)
	buf = binary.LittleEndian.AppendUint16(buf, blockAlign)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(bitDepth))

	buf = append(buf, []byte("data")...)
	buf = binary.LittleEndian.AppendUint32(buf, dataSize)
	buf = append(buf, make([]byte, dataSize)...)
	return buf
}

// makeMP3 builds a constant-bitrate MPEG1 Layer III stream: one valid frame
// header followed by zero padding up to totalBytes.
func makeMP3(totalBytes int) []byte {
	buf := make([]byte, totalBytes)
	// Sync, MPEG1 Layer III, 128 kbps, 44100 Hz, stereo.
	buf[0], buf[1], buf[2], buf[3] = 0xFF, 0xFB, 0x90, 0x00
	return buf
}

// makeFLAC builds the fLaC magic plus a STREAMINFO block describing 44100 Hz
// stereo 16-bit audio with the given total sample count.
func makeFLAC(totalSamples uint64) []byte {
	buf := make([]byte, 8+34)
	copy(buf, "fLaC")
	buf[4] = 0x80 // last metadata block, type STREAMINFO
	buf[7] = 34

	b := buf[8:]
	// 20-bit sample rate 44100 (0x0AC44), 3-bit channels-1, 1-bit bitdepth high.
	b[10] = 0x0A
	b[11] = 0xC4
	b[12] = 0x42 // rate low nibble 0x4, channels-1 = 1, bit depth high bit 0
	b[13] = 0xF0 | byte(totalSamples>>32)&0x0F
	binary.BigEndian.PutUint32(b[14:18], uint32(totalSamples))
	return buf
}

// makeOgg builds a Vorbis identification header and a terminal page with the
// given granule position.
func makeOgg(sampleRate uint32, granule uint64) []byte {
	buf := []byte("OggS")
	buf = append(buf, make([]byte, 23)...)

	buf = append(buf, []byte("\x01vorbis")...)
	buf = append(buf, 0, 0, 0, 0) // version
	buf = append(buf, 2)          // channels
	buf = binary.LittleEndian.AppendUint32(buf, sampleRate)
	buf = binary.LittleEndian.AppendUint32(buf, 0)      // bitrate max
	buf = binary.LittleEndian.AppendUint32(buf, 128000) // bitrate nominal
	buf = binary.LittleEndian.AppendUint32(buf, 0)      // bitrate min

	// Terminal page: capture pattern, version, header type, granule position.
	buf = append(buf, []byte("OggS")...)
	buf = append(buf, 0, 0x04)
	buf = binary.LittleEndian.AppendUint64(buf, granule)
	buf = append(buf, make([]byte, 8)...)
	return buf
}

func TestProbeDurationWAV(t *testing.T) {
	data := makeWAV(44100, 1, 16, 88200) // exactly one second

	probe := NewTagProbe()
	duration, ok := probe.ProbeDuration(data, int64(len(data)))
	require.True(t, ok)
	assert.Equal(t, int64(1000), duration)
}

func TestProbeDurationWAVTruncated(t *testing.T) {
	data := makeWAV(44100, 2, 16, 176400)
	totalSize := int64(len(data))

	// The data chunk size lives in the header, so a truncated read still
	// produces an exact duration.
	probe := NewTagProbe()
	duration, ok := probe.ProbeDuration(data[:1024], totalSize)
	require.True(t, ok)
	assert.Equal(t, int64(1000), duration)
}

func TestProbeDurationMP3(t *testing.T) {
	data := makeMP3(16000) // 16000 bytes at 128 kbps = 1000 ms

	probe := NewTagProbe()
	duration, ok := probe.ProbeDuration(data, int64(len(data)))
	require.True(t, ok)
	assert.Equal(t, int64(1000), duration)
}

func TestProbeDurationFLAC(t *testing.T) {
	data := makeFLAC(44100)

	probe := NewTagProbe()
	duration, ok := probe.ProbeDuration(data, int64(len(data)))
	require.True(t, ok)
	assert.Equal(t, int64(1000), duration)
}

func TestProbeDurationOggNeedsFullRead(t *testing.T) {
	data := makeOgg(44100, 44100)
	probe := NewTagProbe()

	// A partial read cannot trust the last visible granule position.
	_, ok := probe.ProbeDuration(data, int64(len(data))+1000)
	assert.False(t, ok)

	duration, ok := probe.ProbeDuration(data, int64(len(data)))
	require.True(t, ok)
	assert.Equal(t, int64(1000), duration)
}

func TestProbeDurationUnrecognized(t *testing.T) {
	probe := NewTagProbe()

	_, ok := probe.ProbeDuration([]byte("this is not audio data at all"), 29)
	assert.False(t, ok)

	_, ok = probe.ProbeDuration(nil, 0)
	assert.False(t, ok)
}

func TestProbeFullWAV(t *testing.T) {
	data := makeWAV(48000, 2, 24, 288000) // 48000*2*3 bytes/sec -> 1000 ms

	probe := NewTagProbe()
	full, ok := probe.ProbeFull(data, int64(len(data)))
	require.True(t, ok)

	assert.Equal(t, "wav", full.Format)
	assert.Equal(t, 48000, full.SampleRate)
	assert.Equal(t, 2, full.Channels)
	assert.Equal(t, 24, full.BitDepth)
	assert.Equal(t, int64(1000), full.DurationMs)
}

func TestProbeFullFLAC(t *testing.T) {
	data := makeFLAC(88200)

	probe := NewTagProbe()
	full, ok := probe.ProbeFull(data, int64(len(data)))
	require.True(t, ok)

	assert.Equal(t, "flac", full.Format)
	assert.Equal(t, 44100, full.SampleRate)
	assert.Equal(t, 2, full.Channels)
	assert.Equal(t, 16, full.BitDepth)
	assert.Equal(t, int64(2000), full.DurationMs)
}

func TestProbeFullUnrecognized(t *testing.T) {
	probe := NewTagProbe()
	full, ok := probe.ProbeFull([]byte{0x00, 0x01, 0x02, 0x03}, 4)
	assert.False(t, ok)
	assert.Nil(t, full)
}
