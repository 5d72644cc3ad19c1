package utils

import (
	"log"
	"maps"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config provides a thread-safe view over environment-style settings with
// typed accessors and defaults
type Config struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewConfig creates a new Config instance with the provided key-value pairs
func NewConfig(values map[string]string) *Config {
	config := &Config{
		values: make(map[string]string),
	}

	maps.Copy(config.values, values)

	return config
}

// NewConfigFromEnv creates a new Config instance by loading environment variables
// from the specified .env files
func NewConfigFromEnv(files ...string) *Config {
	envMap := LoadEnv(files...)
	return NewConfig(envMap)
}

// Get retrieves a configuration value by key
// Returns empty string if key doesn't exist
func (c *Config) Get(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// GetWithDefault retrieves a configuration value by key with a fallback default
func (c *Config) GetWithDefault(key, defaultValue string) string {
	if value := c.Get(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBool retrieves a configuration value as a boolean
// Returns false if key doesn't exist or cannot be parsed as boolean
func (c *Config) GetBool(key string) bool {
	return c.GetBoolWithDefault(key, false)
}

// GetBoolWithDefault retrieves a configuration value as a boolean with a fallback default
func (c *Config) GetBoolWithDefault(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(c.Get(key)))
	if value == "" {
		return defaultValue
	}

	switch value {
	case "1", "yes", "on", "enabled":
		return true
	case "0", "no", "off", "disabled":
		return false
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// GetIntWithDefault retrieves a configuration value as an integer with a fallback default
func (c *Config) GetIntWithDefault(key string, defaultValue int) int {
	value := c.Get(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		log.Printf("[UTILS]: Warning, %s=%q is not an integer, using %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// GetInt64WithDefault retrieves a configuration value as a 64-bit integer with a fallback default
func (c *Config) GetInt64WithDefault(key string, defaultValue int64) int64 {
	value := c.Get(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		log.Printf("[UTILS]: Warning, %s=%q is not an integer, using %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// GetFloatWithDefault retrieves a configuration value as a float with a fallback default
func (c *Config) GetFloatWithDefault(key string, defaultValue float64) float64 {
	value := c.Get(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		log.Printf("[UTILS]: Warning, %s=%q is not a number, using %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// GetDurationWithDefault retrieves a Go duration string (e.g. "15s"). A bare
// integer is read as seconds.
func (c *Config) GetDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(c.Get(key))
	if value == "" {
		return defaultValue
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("[UTILS]: Warning, %s=%q is not a duration, using %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// GetList splits a comma separated value, dropping empty entries
func (c *Config) GetList(key string) []string {
	var out []string
	for part := range strings.SplitSeq(c.Get(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Set modifies a configuration value
func (c *Config) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Has checks if a configuration key exists
func (c *Config) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.values[key]
	return exists
}
