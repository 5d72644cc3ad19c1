package api

import (
	"fmt"
	"log"
	"time"

	api_utils "github.com/ethanbaker/api/pkg/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ethanbaker/voicechat/internal/auth"
	"github.com/ethanbaker/voicechat/pkg/sdk"
	"github.com/ethanbaker/voicechat/pkg/utils"

	health_module "github.com/ethanbaker/voicechat/internal/api/modules/health"
	voice_module "github.com/ethanbaker/voicechat/internal/api/modules/voice"
)

// Start builds every component from cfg and serves the API until it fails
func Start(cfg *utils.Config) {
	// Initialized configuration settings
	port := cfg.GetWithDefault("API_PORT", "8080")

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal("[API-MAIN]: Failed to open session store: ", err)
	}
	defer store.Close()

	comps, err := buildComponents(cfg, store)
	if err != nil {
		log.Fatal("[API-MAIN]: Failed to build pipeline: ", err)
	}

	// Catch artifacts left behind by a previous crash
	if removed, err := comps.sweeper.Sweep(time.Now()); err != nil {
		log.Printf("[API-MAIN]: Warning, initial artifact sweep failed: %v", err)
	} else if removed > 0 {
		log.Printf("[API-MAIN]: Removed %d orphaned audio artifacts from %s", removed, comps.tempDir)
	}
	if err := comps.sweeper.Start(cfg.GetWithDefault("AUDIO_SWEEP_SCHEDULE", "@every 10m")); err != nil {
		log.Fatal("[API-MAIN]: Failed to schedule artifact sweeper: ", err)
	}
	defer comps.sweeper.Stop()

	engine, err := newEngine(cfg, comps)
	if err != nil {
		log.Fatal("[API-MAIN]: Failed to create engine: ", err)
	}

	// Then after performing initial setup, start the server
	if err := engine.Run(":" + port); err != nil {
		log.Fatal("[API-MAIN]: Failed to start server: ", err)
	}
}

// newEngine creates the gin engine with every module registered
func newEngine(cfg *utils.Config, comps *components) (*gin.Engine, error) {
	tokens, err := auth.ParseTokenTable(cfg.Get("API_TOKENS"))
	if err != nil {
		return nil, fmt.Errorf("API_TOKENS: %w", err)
	}
	log.Printf("[API-MAIN]: Loaded %d API tokens", tokens.Len())

	// Add app level settings/routes
	engine := gin.Default()
	engine.NoRoute(api_utils.NoRouteHandler)

	// Add trusted proxies
	engine.SetTrustedProxies(nil)

	origins := cfg.GetList("CORS_ALLOWED_ORIGINS")
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Add CORS using gin-contrib/cors (https://github.com/gin-contrib/cors for documentation)
	engine.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"OPTIONS", "GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", auth.APIKeyHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Retry-After",
			sdk.HeaderSessionID,
			sdk.HeaderTranscript,
			sdk.HeaderTurnPersisted,
			sdk.HeaderTurnError,
			sdk.HeaderRequestID,
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Base group '/api' for all API routes
	baseGroup := engine.Group("/api")

	// Adding custom modules
	health_module.RegisterRoutes(baseGroup, comps.store)

	controller := voice_module.NewController(comps.pipeline, comps.resolver, comps.loader, voice_module.Options{
		MaxAudioBytes: comps.limits.MaxBytes,
		ExposeDetails: cfg.GetBoolWithDefault("EXPOSE_ERROR_DETAILS", false),
	})
	voice_module.RegisterRoutes(baseGroup, controller, auth.Middleware(tokens))

	return engine, nil
}
