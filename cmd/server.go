package cmd

import (
	"cratedig/config"
	"cratedig/handlers"
	"cratedig/middleware"
	"cratedig/services"
	"cratedig/websocket"
	"log"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
)

// StartWebServer starts the web server
func StartWebServer(port int) {
	// Set production mode if not specified
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize services
	hub := websocket.NewHub()
	go hub.Run()

	cache := services.NewMetadataCache(config.GetCacheLocation(), os.Getenv("CRATEDIG_DEBUG") != "")
	probe := services.NewTagProbe()
	archive := services.NewArchiveService(cache, probe)
	defer archive.Cleanup()

	jobQueue := services.NewJobQueue(1, archive, hub)
	jobQueue.Start()

	// Initialize handlers
	archiveHandler := handlers.NewArchiveHandler(archive)
	cacheHandler := handlers.NewCacheHandler(cache)
	jobHandler := handlers.NewJobHandler(jobQueue, hub)
	searchHandler := handlers.NewSearchHandler(cache)
	healthHandler := handlers.NewHealthHandler()
	settingsHandler := handlers.NewSettingsHandler()

	// Setup router
	r := gin.New()
	r.Use(gin.Recovery())

	// Apply middleware
	r.Use(middleware.CORS())
	r.Use(middleware.Logging())

	// Setup routes
	setupRoutes(r, archiveHandler, cacheHandler, jobHandler, searchHandler, healthHandler, settingsHandler)

	// Start server
	portStr := strconv.Itoa(port)
	if serverPort := os.Getenv("SERVER_PORT"); serverPort != "" {
		portStr = serverPort
	}

	log.Printf("cratedig web server starting on port %s", portStr)
	log.Printf("Cache location: %s", config.GetCacheLocation())
	if err := r.Run(":" + portStr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRoutes configures all the HTTP routes
func setupRoutes(r *gin.Engine, archiveHandler *handlers.ArchiveHandler, cacheHandler *handlers.CacheHandler, jobHandler *handlers.JobHandler, searchHandler *handlers.SearchHandler, healthHandler *handlers.HealthHandler, settingsHandler *handlers.SettingsHandler) {
	// Health check endpoint
	r.GET("/health", healthHandler.HealthCheck)

	// API routes group
	apiGroup := r.Group("/api")
	{
		// Search across cached archives
		apiGroup.GET("/search", searchHandler.Search)

		// Archive browsing endpoints
		archivesGroup := apiGroup.Group("/archives")
		{
			archivesGroup.POST("/open", archiveHandler.OpenArchive)
			archivesGroup.GET("", archiveHandler.ListOpenArchives)
			archivesGroup.DELETE("", archiveHandler.CloseArchive)
			archivesGroup.GET("/entries", archiveHandler.ListEntries)
			archivesGroup.GET("/entry", archiveHandler.GetEntryMetadata)
			archivesGroup.GET("/entry/duration", archiveHandler.GetDuration)
			archivesGroup.GET("/entry/metadata", archiveHandler.GetDetailedMetadata)
			archivesGroup.GET("/entry/stream", archiveHandler.StreamEntry)
		}

		// Job management endpoints
		jobsGroup := apiGroup.Group("/jobs")
		{
			jobsGroup.POST("/scan", jobHandler.QueueScan)
			jobsGroup.POST("/extract", jobHandler.QueueExtract)
			jobsGroup.GET("", jobHandler.GetAllJobs)
			jobsGroup.GET("/:id", jobHandler.GetJob)
			jobsGroup.DELETE("/:id", jobHandler.CancelJob)
		}

		// WebSocket endpoints for real-time progress
		wsGroup := apiGroup.Group("/ws")
		{
			// WebSocket endpoint for specific job progress
			wsGroup.GET("/jobs/:id", jobHandler.HandleWebSocketConnection)

			// WebSocket endpoint for all jobs progress
			wsGroup.GET("/jobs", jobHandler.HandleWebSocketAllConnection)
		}

		// Cache management endpoints
		cacheGroup := apiGroup.Group("/cache")
		{
			cacheGroup.GET("", cacheHandler.GetCacheInfo)
			cacheGroup.DELETE("/entry", cacheHandler.InvalidateArchive)
			cacheGroup.DELETE("", cacheHandler.ClearCache)
		}

		// Settings endpoints
		apiGroup.GET("/settings", settingsHandler.GetSettings)
		apiGroup.POST("/settings", settingsHandler.UpdateSettings)
	}
}
