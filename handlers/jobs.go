package handlers

import (
	"cratedig/services"
	"cratedig/websocket"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// JobHandler handles job queue endpoints
type JobHandler struct {
	jobQueue services.JobQueue
	hub      websocket.Hub
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobQueue services.JobQueue, hub websocket.Hub) *JobHandler {
	return &JobHandler{
		jobQueue: jobQueue,
		hub:      hub,
	}
}

// ScanRequest is the body for queueing a metadata scan
type ScanRequest struct {
	Path string `json:"path" binding:"required"`
}

// ExtractRequest is the body for queueing an extraction
type ExtractRequest struct {
	Path      string   `json:"path" binding:"required"`
	Entries   []string `json:"entries" binding:"required"`
	OutputDir string   `json:"outputDir"`
}

// QueueScan queues a full metadata scan of an archive
func (h *JobHandler) QueueScan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "archive path is required",
			"details": err.Error(),
		})
		return
	}

	job := h.jobQueue.AddScanJob(req.Path)
	log.Printf("Queued scan job %s for %s", job.ID, req.Path)

	c.JSON(http.StatusAccepted, gin.H{
		"job":     job,
		"message": "scan queued",
	})
}

// QueueExtract queues extraction of a set of entries
func (h *JobHandler) QueueExtract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "archive path and entries are required",
			"details": err.Error(),
		})
		return
	}

	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one entry is required"})
		return
	}

	job := h.jobQueue.AddExtractJob(req.Path, req.Entries, req.OutputDir)
	log.Printf("Queued extract job %s for %s (%d entries)", job.ID, req.Path, len(req.Entries))

	c.JSON(http.StatusAccepted, gin.H{
		"job":     job,
		"message": "extraction queued",
	})
}

// GetAllJobs returns every known job
func (h *JobHandler) GetAllJobs(c *gin.Context) {
	jobs := h.jobQueue.GetAllJobs()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJob returns a single job by ID
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("id")

	job, exists := h.jobQueue.GetJob(jobID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// CancelJob cancels a queued job
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("id")

	if !h.jobQueue.CancelJob(jobID) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "job not found or already processing",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job cancelled"})
}

// HandleWebSocketConnection upgrades to a WebSocket scoped to one job's progress
func (h *JobHandler) HandleWebSocketConnection(c *gin.Context) {
	jobID := c.Param("id")

	if _, exists := h.jobQueue.GetJob(jobID); !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, jobID)
	h.hub.RegisterClient(client)
	client.StartPumps()
}

// HandleWebSocketAllConnection upgrades to a WebSocket receiving all progress
func (h *JobHandler) HandleWebSocketAllConnection(c *gin.Context) {
	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, "all")
	h.hub.RegisterClient(client)
	client.StartPumps()
}
