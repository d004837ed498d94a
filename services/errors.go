package services

import "errors"

// Failures surfaced by the archive accessor. Cache failures are never
// surfaced; they degrade to a cache miss and a log line.
var (
	// ErrNotFound means the archive path does not exist on disk.
	ErrNotFound = errors.New("archive not found")

	// ErrInvalidArchive means the archive cannot be parsed as a ZIP, or
	// contains no recognized audio entries.
	ErrInvalidArchive = errors.New("invalid archive")

	// ErrEntryNotFound means the requested entry name is absent from the
	// archive's directory.
	ErrEntryNotFound = errors.New("entry not found in archive")

	// ErrIO means an extraction write failed or could not be verified.
	ErrIO = errors.New("i/o failure")
)
