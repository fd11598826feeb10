package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/classboard/classboard-api/config"
	"github.com/classboard/classboard-api/database"
	"github.com/classboard/classboard-api/handlers"
	auth_handlers "github.com/classboard/classboard-api/handlers/auth"
	file_handlers "github.com/classboard/classboard-api/handlers/file"
	folder_handlers "github.com/classboard/classboard-api/handlers/folder"
	recording_handlers "github.com/classboard/classboard-api/handlers/recording"
	replay_handlers "github.com/classboard/classboard-api/handlers/replay"
	session_handlers "github.com/classboard/classboard-api/handlers/session"
	tracking_handlers "github.com/classboard/classboard-api/handlers/tracking"
	"github.com/classboard/classboard-api/services/replay"
	"github.com/classboard/classboard-api/services/session"
	"github.com/classboard/classboard-api/services/storage"
	"github.com/classboard/classboard-api/services/tracking"
	"github.com/classboard/classboard-api/utils/auth"
	"github.com/classboard/classboard-api/utils/cache"
	"github.com/classboard/classboard-api/utils/middleware"
)

// Deps are the long-lived components the router builds; the cron manager
// reuses them after setup.
type Deps struct {
	Tracker  *tracking.Tracker
	Registry *replay.Registry
	Cache    *cache.RedisCache
}

func SetupRoutes(app *fiber.App, store *database.GORMStore) *Deps {
	getEnv, err := config.Get()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// Get JWT secret from environment
	jwtSecret := getEnv.JWT_SECRET
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := getEnv.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "classboard-api"
	}

	// Initialize JWT manager with config
	jwtConfig := auth.JWTConfig{
		Secret:        jwtSecret,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	db := store.DB()

	// Initialize Redis cache
	redisURL := getEnv.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Fatal("Failed to connect to Redis: ", err)
	}

	// Initialize brute force protection
	bruteForceProtection := middleware.NewBruteForceProtection(redisCache)

	// Initialize auth middleware with DB for blacklist checking
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Initialize object storage
	spacesClient, err := storage.NewSpacesClient(storage.SpacesConfig{
		AccessKey: getEnv.DO_SPACES_ACCESS_KEY,
		SecretKey: getEnv.DO_SPACES_SECRET_KEY,
		Bucket:    getEnv.DO_SPACES_BUCKET,
		Region:    getEnv.DO_SPACES_REGION,
		Endpoint:  getEnv.DO_SPACES_ENDPOINT,
		CDNURL:    getEnv.DO_SPACES_CDN_URL,
	})
	if err != nil {
		log.Fatal("Failed to initialize object storage: ", err)
	}

	// Core tracking stack: session records, viewing-window tracker, replay
	sessionService := session.NewService(db, redisCache, getEnv.SESSION_CACHE_LIMIT_BYTES)
	tracker := tracking.NewTracker(redisCache, sessionService, tracking.Config{
		IdleThresholdMs:  getEnv.IDLE_THRESHOLD_MS,
		MergeBufferMs:    getEnv.MERGE_BUFFER_MS,
		PayloadWarnBytes: getEnv.PAYLOAD_WARN_BYTES,
	})
	rewriter := replay.NewRewriter(getEnv.MEDIA_BASE_URL)
	registry := replay.NewRegistry(rewriter)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(store, redisCache)
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection, sessionService)
	folderHandler := folder_handlers.NewFolderHandler(db)
	fileHandler := file_handlers.NewFileHandler(db, spacesClient)
	sessionHandler := session_handlers.NewSessionHandler(sessionService)
	trackingHandler := tracking_handlers.NewTrackingHandler(db, tracker)
	recordingHandler := recording_handlers.NewRecordingHandler(db, spacesClient, tracker.Candidates())
	replayHandler := replay_handlers.NewReplayHandler(registry, sessionService)

	// Apply security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", healthHandler.Check)

	// Asset serving proxy. Replay snapshots resolve their rewritten URLs
	// here, so the path lives outside the versioned API group.
	app.Get("/api/files/serve/:filename", fileHandler.Serve)

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	// Login with brute force protection
	authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)

	authGroup.Post("/refresh", authHandler.RefreshToken)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)

	// Profile routes (protected)
	profileGroup := api.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)

	// Folder routes
	folders := api.Group("/folders", authMiddleware.Required())
	folders.Get("/", folderHandler.ListFolders)                                    // List folders, filterable by scope
	folders.Get("/:id", folderHandler.GetFolder)                                   // Folder with its files
	folders.Post("/", authMiddleware.RequireTeacher(), folderHandler.CreateFolder) // Teacher: create folder
	folders.Delete("/:id", authMiddleware.RequireAdmin(), folderHandler.DeleteFolder)

	// File routes (nested under folders)
	files := api.Group("/folders/:folder_id/files", authMiddleware.Required())
	files.Get("/", fileHandler.ListFiles)
	files.Post("/", authMiddleware.RequireTeacher(), fileHandler.UploadFile)

	api.Get("/files/:id", authMiddleware.Required(), fileHandler.GetFile)
	api.Delete("/files/:id", authMiddleware.RequireTeacher(), fileHandler.DeleteFile)

	// Teacher session records
	sessions := api.Group("/teacher-sessions", authMiddleware.RequireTeacher())
	sessions.Get("/", sessionHandler.ListMySessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Put("/:id", sessionHandler.UpdateSession) // Incremental merge update

	// Viewing-window tracking
	trackingGroup := api.Group("/tracking", authMiddleware.RequireTeacher())
	trackingGroup.Post("/open", trackingHandler.Open)
	trackingGroup.Post("/event", trackingHandler.Event)
	trackingGroup.Post("/close", trackingHandler.Close) // Reconcile and submit

	// Screen recording lifecycle and candidate intake
	recordings := api.Group("/recordings", authMiddleware.RequireTeacher())
	recordings.Post("/start", recordingHandler.Start)
	recordings.Post("/:id/stop", recordingHandler.Stop)
	recordings.Post("/candidates", recordingHandler.SubmitCandidates)

	// Replay viewer
	replays := api.Group("/replays", authMiddleware.Required())
	replays.Post("/", replayHandler.Create)
	replays.Post("/:id/timeupdate", replayHandler.TimeUpdate)
	replays.Post("/:id/event", replayHandler.Event)
	replays.Post("/:id/sync", replayHandler.Sync)
	replays.Get("/:id/stream", replayHandler.Stream) // SSE command stream
	replays.Delete("/:id", replayHandler.Dispose)

	return &Deps{
		Tracker:  tracker,
		Registry: registry,
		Cache:    redisCache,
	}
}
