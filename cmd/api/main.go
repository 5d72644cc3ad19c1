package main

import (
	"os"

	"github.com/ethanbaker/voicechat/internal/api"
	"github.com/ethanbaker/voicechat/pkg/utils"
)

// Start the voice API server
func main() {
	// Find env file
	envFile := ".env"
	if os.Getenv("ENV_FILE") != "" {
		envFile = os.Getenv("ENV_FILE")
	}

	// Load global config
	cfg := utils.NewConfigFromEnv(envFile)

	// Start
	api.Start(cfg)
}
