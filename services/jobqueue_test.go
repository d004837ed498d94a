package services

import (
	"cratedig/types"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (JobQueue, string) {
	t.Helper()
	dir := t.TempDir()
	cache := NewMetadataCache(filepath.Join(dir, "cache"), false)
	archive := NewArchiveService(cache, NewTagProbe())
	t.Cleanup(archive.Cleanup)

	queue := NewJobQueue(1, archive, nil)
	queue.Start()
	return queue, dir
}

func waitForStatus(t *testing.T, queue JobQueue, jobID string, want types.JobStatus) *types.ArchiveJob {
	t.Helper()
	var job *types.ArchiveJob
	require.Eventually(t, func() bool {
		j, ok := queue.GetJob(jobID)
		if !ok {
			return false
		}
		job = j
		return j.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job %s never reached status %s", jobID, want)
	return job
}

func TestScanJobCompletes(t *testing.T) {
	queue, dir := newTestQueue(t)
	archivePath := filepath.Join(dir, "pack.zip")
	makeZip(t, archivePath, samplePackEntries())

	job := queue.AddScanJob(archivePath)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, types.JobTypeScan, job.Type)

	done := waitForStatus(t, queue, job.ID, types.JobStatusCompleted)
	assert.False(t, done.UsedCache)
	assert.NotNil(t, done.CompletedAt)

	// A second scan of the same archive is served from the cache.
	again := queue.AddScanJob(archivePath)
	done = waitForStatus(t, queue, again.ID, types.JobStatusCompleted)
	assert.True(t, done.UsedCache)
}

func TestScanJobFailsOnMissingArchive(t *testing.T) {
	queue, dir := newTestQueue(t)

	job := queue.AddScanJob(filepath.Join(dir, "missing.zip"))
	done := waitForStatus(t, queue, job.ID, types.JobStatusFailed)
	assert.NotEmpty(t, done.Error)
}

func TestExtractJobWritesFiles(t *testing.T) {
	queue, dir := newTestQueue(t)
	archivePath := filepath.Join(dir, "pack.zip")
	makeZip(t, archivePath, map[string][]byte{
		"drums/kick.wav":  makeWAV(44100, 1, 16, 4410),
		"drums/snare.wav": makeWAV(44100, 1, 16, 4410),
	})

	outDir := filepath.Join(dir, "out")
	job := queue.AddExtractJob(archivePath, []string{"drums/kick.wav", "drums/snare.wav"}, outDir)

	done := waitForStatus(t, queue, job.ID, types.JobStatusCompleted)
	assert.Equal(t, 2, done.Progress)
	assert.Equal(t, 2, done.Total)

	for _, name := range []string{"kick.wav", "snare.wav"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	dir := t.TempDir()
	cache := NewMetadataCache(filepath.Join(dir, "cache"), false)
	archive := NewArchiveService(cache, NewTagProbe())
	t.Cleanup(archive.Cleanup)

	// Never started, so queued jobs stay cancellable.
	queue := NewJobQueue(1, archive, nil)

	job := queue.AddScanJob(filepath.Join(dir, "pack.zip"))
	assert.True(t, queue.CancelJob(job.ID))

	got, ok := queue.GetJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, types.JobStatusCancelled, got.Status)

	assert.False(t, queue.CancelJob("no-such-job"))
}

func TestGetAllJobs(t *testing.T) {
	dir := t.TempDir()
	cache := NewMetadataCache(filepath.Join(dir, "cache"), false)
	archive := NewArchiveService(cache, NewTagProbe())
	t.Cleanup(archive.Cleanup)
	queue := NewJobQueue(1, archive, nil)

	assert.Empty(t, queue.GetAllJobs())
	queue.AddScanJob(filepath.Join(dir, "a.zip"))
	queue.AddScanJob(filepath.Join(dir, "b.zip"))
	assert.Len(t, queue.GetAllJobs(), 2)
}
