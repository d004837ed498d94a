package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAudioEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		want  bool
	}{
		{"wav file", "kick.wav", true},
		{"mp3 file", "loops/groove.mp3", true},
		{"ogg file", "amb/room.ogg", true},
		{"flac file", "stems/bass.flac", true},
		{"uppercase extension", "kick.WAV", true},
		{"text file", "README.txt", false},
		{"no extension", "samples/kick", false},
		{"directory entry", "samples/", false},
		{"macos metadata folder", "__MACOSX/kick.wav", false},
		{"macos resource fork", "samples/._kick.wav", false},
		{"aiff not recognized", "kick.aiff", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAudioEntry(tt.entry))
		})
	}
}

func TestSortAudioEntries(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "folders before files within them",
			input: []string{"drums/kick.wav", "drums/Snare.wav", "amb/room.ogg"},
			want:  []string{"amb/room.ogg", "drums/kick.wav", "drums/Snare.wav"},
		},
		{
			name:  "case insensitive folder order",
			input: []string{"Zebra/a.wav", "alpha/b.wav", "Beta/c.wav"},
			want:  []string{"alpha/b.wav", "Beta/c.wav", "Zebra/a.wav"},
		},
		{
			name:  "case insensitive file order within folder",
			input: []string{"kit/Tom.wav", "kit/hat.wav", "kit/Kick.wav"},
			want:  []string{"kit/hat.wav", "kit/Kick.wav", "kit/Tom.wav"},
		},
		{
			name:  "root entries grouped under dot",
			input: []string{"b.wav", "sub/a.wav", "A.wav"},
			want:  []string{"A.wav", "b.wav", "sub/a.wav"},
		},
		{
			name:  "names differing only in case sort deterministically",
			input: []string{"kit/a.wav", "kit/A.wav"},
			want:  []string{"kit/A.wav", "kit/a.wav"},
		},
		{
			name:  "folders equal under case fold stay adjacent",
			input: []string{"B/b.wav", "A/a.mp3", "a/c.ogg"},
			want:  []string{"A/a.mp3", "a/c.ogg", "B/b.wav"},
		},
		{
			name:  "empty input",
			input: []string{},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SortAudioEntries(tt.input))
		})
	}
}

func TestSortAudioEntriesIsStablePerCall(t *testing.T) {
	input := []string{"x/b.wav", "a/z.wav", "x/A.wav", "a/Q.wav"}
	first := SortAudioEntries(input)
	second := SortAudioEntries([]string{"a/Q.wav", "x/A.wav", "a/z.wav", "x/b.wav"})
	assert.Equal(t, first, second, "order must not depend on input order")
}
