package services

import (
	"cratedig/types"
	"cratedig/websocket"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobQueue interface defines the methods for managing archive jobs
type JobQueue interface {
	Start()
	AddScanJob(archivePath string) *types.ArchiveJob
	AddExtractJob(archivePath string, entries []string, outputDir string) *types.ArchiveJob
	GetJob(id string) (*types.ArchiveJob, bool)
	GetAllJobs() []*types.ArchiveJob
	CancelJob(id string) bool
	UpdateJobProgress(id string, progress, total int)
	SetJobStatus(id string, status types.JobStatus, errorMsg string)
}

// jobQueue manages archive scan and extraction jobs
type jobQueue struct {
	jobs       map[string]*types.ArchiveJob
	queue      chan *types.ArchiveJob
	activeJobs map[string]*types.ArchiveJob
	maxWorkers int
	archive    ArchiveService
	hub        websocket.Hub
	mu         sync.RWMutex
}

// NewJobQueue creates a new job queue. Jobs against the same archive service
// are serialized by the worker pool; one worker keeps progress reporting
// unambiguous.
func NewJobQueue(maxWorkers int, archive ArchiveService, hub websocket.Hub) JobQueue {
	return &jobQueue{
		jobs:       make(map[string]*types.ArchiveJob),
		queue:      make(chan *types.ArchiveJob, 100), // Buffer for 100 jobs
		activeJobs: make(map[string]*types.ArchiveJob),
		maxWorkers: maxWorkers,
		archive:    archive,
		hub:        hub,
	}
}

// AddScanJob queues a full metadata scan of an archive
func (jq *jobQueue) AddScanJob(archivePath string) *types.ArchiveJob {
	return jq.addJob(&types.ArchiveJob{
		ID:          uuid.New().String(),
		Type:        types.JobTypeScan,
		Status:      types.JobStatusQueued,
		ArchivePath: archivePath,
		Total:       1,
		CreatedAt:   time.Now(),
	})
}

// AddExtractJob queues extraction of the given entries
func (jq *jobQueue) AddExtractJob(archivePath string, entries []string, outputDir string) *types.ArchiveJob {
	return jq.addJob(&types.ArchiveJob{
		ID:          uuid.New().String(),
		Type:        types.JobTypeExtract,
		Status:      types.JobStatusQueued,
		ArchivePath: archivePath,
		Entries:     entries,
		OutputDir:   outputDir,
		Total:       len(entries),
		CreatedAt:   time.Now(),
	})
}

func (jq *jobQueue) addJob(job *types.ArchiveJob) *types.ArchiveJob {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	jq.jobs[job.ID] = job
	jq.queue <- job
	return job
}

// GetJob retrieves a job by ID
func (jq *jobQueue) GetJob(id string) (*types.ArchiveJob, bool) {
	jq.mu.RLock()
	defer jq.mu.RUnlock()
	job, exists := jq.jobs[id]
	return job, exists
}

// GetAllJobs returns all jobs
func (jq *jobQueue) GetAllJobs() []*types.ArchiveJob {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	jobs := make([]*types.ArchiveJob, 0, len(jq.jobs))
	for _, job := range jq.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// CancelJob cancels a queued job
func (jq *jobQueue) CancelJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, exists := jq.jobs[id]
	if !exists {
		return false
	}

	if job.Status == types.JobStatusQueued {
		job.Status = types.JobStatusCancelled
		now := time.Now()
		job.CompletedAt = &now
		return true
	}

	return false
}

// UpdateJobProgress updates job progress
func (jq *jobQueue) UpdateJobProgress(id string, progress, total int) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if job, exists := jq.jobs[id]; exists {
		job.Progress = progress
		job.Total = total

		if jq.hub != nil && total > 0 {
			progressPercent := float64(progress) / float64(total) * 100
			jq.hub.BroadcastProgress(id, "progress", string(job.Status), job.ArchivePath, "",
				fmt.Sprintf("Processed %d of %d entries", progress, total), progressPercent)
		}
	}
}

// SetJobStatus updates job status
func (jq *jobQueue) SetJobStatus(id string, status types.JobStatus, errorMsg string) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if job, exists := jq.jobs[id]; exists {
		job.Status = status
		if errorMsg != "" {
			job.Error = errorMsg
		}

		now := time.Now()
		if status == types.JobStatusProcessing && job.StartedAt == nil {
			job.StartedAt = &now
			jq.activeJobs[id] = job
		} else if status == types.JobStatusCompleted || status == types.JobStatusFailed || status == types.JobStatusCancelled {
			job.CompletedAt = &now
			delete(jq.activeJobs, id)
		}

		if jq.hub != nil {
			msgType := "status"
			message := string(status)
			progress := float64(job.Progress) / float64(job.Total) * 100

			if status == types.JobStatusCompleted {
				msgType = "complete"
				progress = 100.0
				message = fmt.Sprintf("%s processed successfully", job.ArchivePath)
			} else if status == types.JobStatusFailed {
				msgType = "error"
				message = errorMsg
			} else if status == types.JobStatusProcessing {
				message = fmt.Sprintf("Started processing %s", job.ArchivePath)
			}

			jq.hub.BroadcastProgress(id, msgType, string(status), job.ArchivePath, "", message, progress)
		}
	}
}

// Start begins processing jobs
func (jq *jobQueue) Start() {
	for i := 0; i < jq.maxWorkers; i++ {
		go jq.worker()
	}
}

// worker processes jobs from the queue
func (jq *jobQueue) worker() {
	for job := range jq.queue {
		if job.Status == types.JobStatusCancelled {
			continue
		}

		jq.SetJobStatus(job.ID, types.JobStatusProcessing, "")

		// Route the accessor's progress callbacks to this job's clients.
		jq.archive.SetProgressCallback(func(status string, percent int) {
			if jq.hub != nil {
				jq.hub.BroadcastProgress(job.ID, "progress", string(types.JobStatusProcessing),
					job.ArchivePath, "", status, float64(percent))
			}
		})

		var err error
		switch job.Type {
		case types.JobTypeScan:
			err = jq.processScanJob(job)
		case types.JobTypeExtract:
			err = jq.processExtractJob(job)
		}
		jq.archive.SetProgressCallback(nil)

		if err != nil {
			jq.SetJobStatus(job.ID, types.JobStatusFailed, err.Error())
			log.Printf("Job %s failed: %v", job.ID, err)
		} else {
			jq.SetJobStatus(job.ID, types.JobStatusCompleted, "")
			log.Printf("Job %s completed successfully", job.ID)
		}
	}
}

// processScanJob runs a full metadata scan of an archive
func (jq *jobQueue) processScanJob(job *types.ArchiveJob) error {
	stats, err := jq.archive.Open(job.ArchivePath)
	if err != nil {
		return fmt.Errorf("failed to scan archive: %w", err)
	}

	job.UsedCache = stats.UsedCache
	jq.UpdateJobProgress(job.ID, stats.AudioCount, stats.AudioCount)
	return nil
}

// processExtractJob extracts the job's entries
func (jq *jobQueue) processExtractJob(job *types.ArchiveJob) error {
	jq.UpdateJobProgress(job.ID, 0, len(job.Entries))

	for i, entry := range job.Entries {
		if _, err := jq.archive.ExtractEntry(job.ArchivePath, entry, job.OutputDir); err != nil {
			return fmt.Errorf("failed to extract %s: %w", entry, err)
		}
		jq.UpdateJobProgress(job.ID, i+1, len(job.Entries))
	}
	return nil
}
