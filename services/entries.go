package services

import (
	"path"
	"sort"
	"strings"
)

// audioExtensions is the recognized set of audio entry extensions.
var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".ogg":  true,
	".flac": true,
}

// IsAudioEntry reports whether a ZIP entry name should be listed as an audio
// entry: recognized extension, not hidden, not under a platform metadata
// folder like __MACOSX.
func IsAudioEntry(name string) bool {
	if strings.HasPrefix(name, "__MACOSX") {
		return false
	}
	if strings.HasPrefix(path.Base(name), "._") {
		return false
	}
	return audioExtensions[strings.ToLower(path.Ext(name))]
}

// SortAudioEntries orders entry names by folder and then by base filename,
// both case-insensitively. The cache payload builder and the live scan share
// this so cached and fresh listings are indistinguishable in order.
func SortAudioEntries(names []string) []string {
	byFolder := make(map[string][]string)
	for _, name := range names {
		folder := path.Dir(name)
		byFolder[folder] = append(byFolder[folder], name)
	}

	folders := make([]string, 0, len(byFolder))
	for folder := range byFolder {
		folders = append(folders, folder)
	}
	sort.Slice(folders, func(i, j int) bool {
		return caseInsensitiveLess(folders[i], folders[j])
	})

	sorted := make([]string, 0, len(names))
	for _, folder := range folders {
		files := byFolder[folder]
		sort.Slice(files, func(i, j int) bool {
			return caseInsensitiveLess(path.Base(files[i]), path.Base(files[j]))
		})
		sorted = append(sorted, files...)
	}
	return sorted
}

// caseInsensitiveLess compares case-insensitively, falling back to a raw
// comparison so names differing only in case still sort deterministically.
func caseInsensitiveLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}
