// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full set of settings shared by the binaries.
type Config struct {
	OpenAI OpenAIConfig
	Vision VisionConfig
	Ingest IngestConfig
	Tables TablesConfig
	Qdrant QdrantConfig
	Chat   ChatConfig
	Log    LogConfig
	Server ServerConfig
}

type OpenAIConfig struct {
	APIKey       string
	Organization string
	BaseURL      string
}

type VisionConfig struct {
	Model       string
	MaxTokens   int
	Timeout     time.Duration
	Concurrency int
}

type IngestConfig struct {
	WorkRoot        string
	FileConcurrency int
	PageConcurrency int
	ChunkSize       int
	ChunkOverlap    int
	Cleanup         bool
	IndexChunks     bool
}

// TablesConfig names the DynamoDB tables.
type TablesConfig struct {
	Text     string
	Likes    string
	Dislikes string
	History  string
	Usage    string
}

type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

type ChatConfig struct {
	Model          string
	Temperature    float64
	TopK           int
	MaxContextToks int
}

type LogConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	Port       string
	ServerMode bool
}

// Load reads a .env file when present and builds Config from the environment.
func Load() *Config {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	return &Config{
		OpenAI: OpenAIConfig{
			APIKey:       os.Getenv("OPENAI_API_KEY"),
			Organization: os.Getenv("OPENAI_ORGANIZATION"),
			BaseURL:      os.Getenv("OPENAI_BASE_URL"),
		},
		Vision: VisionConfig{
			Model:       getEnv("VISION_MODEL", "gpt-4o"),
			MaxTokens:   getEnvInt("VISION_MAX_TOKENS", 300),
			Timeout:     getEnvDuration("VISION_TIMEOUT", 60*time.Second),
			Concurrency: getEnvInt("VISION_CONCURRENCY", 4),
		},
		Ingest: IngestConfig{
			WorkRoot:        getEnv("WORK_ROOT", os.TempDir()),
			FileConcurrency: getEnvInt("FILE_CONCURRENCY", 2),
			PageConcurrency: getEnvInt("PAGE_CONCURRENCY", 4),
			ChunkSize:       getEnvInt("CHUNK_SIZE", 975),
			ChunkOverlap:    getEnvInt("CHUNK_OVERLAP", 100),
			Cleanup:         getEnvBool("INGEST_CLEANUP", false),
			IndexChunks:     getEnvBool("INDEX_CHUNKS", true),
		},
		Tables: TablesConfig{
			Text:     getEnv("TEXT_TABLE", "pdf-data-dump"),
			Likes:    getEnv("LIKES_TABLE", "likes"),
			Dislikes: getEnv("DISLIKES_TABLE", "dislikes"),
			History:  getEnv("HISTORY_TABLE", "kbminer-chat-history"),
			Usage:    getEnv("USAGE_TABLE", "usage"),
		},
		Qdrant: QdrantConfig{
			Host:   getEnv("QDRANT_HOST", "localhost"),
			Port:   getEnvInt("QDRANT_PORT", 6334),
			APIKey: os.Getenv("QDRANT_API_KEY"),
			UseTLS: getEnvBool("QDRANT_USE_TLS", false),
		},
		Chat: ChatConfig{
			Model:          getEnv("CHAT_MODEL", "gpt-4-1106-preview"),
			Temperature:    getEnvFloat("CHAT_TEMPERATURE", 0.2),
			TopK:           getEnvInt("CHAT_TOP_K", 4),
			MaxContextToks: getEnvInt("CHAT_MAX_CONTEXT_TOKENS", 6000),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Server: ServerConfig{
			Port:       getEnv("PORT", "8080"),
			ServerMode: getEnvBool("SERVER_MODE", false),
		},
	}
}

// RequireOpenAI reports whether the OpenAI key is set.
func (c *Config) RequireOpenAI() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
