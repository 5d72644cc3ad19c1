package utils

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from multiple .env files
// Returns a map of environment variables. Variables already present in the
// process environment win over file values.
func LoadEnv(files ...string) map[string]string {
	config := make(map[string]string)

	// Load each file in order
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Load(file); err != nil {
				log.Printf("[UTILS]: Warning, could not load %s: %v", file, err)
			}
		}
	}

	// Read all environment variables into map
	for _, env := range os.Environ() {
		if key, value, ok := strings.Cut(env, "="); ok && key != "" {
			config[key] = value
		}
	}

	return config
}

// GetEnvWithDefault returns an environment variable value or a default if not set
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
