// Package config provides application-wide configuration loaded from env vars.
// All fields have safe defaults so the binary runs locally without any env setup.
// A .env file in the working directory is honored when present (development convenience).
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for PromptForge.
type Config struct {
	// Server
	Host string // PF_HOST — default: "127.0.0.1" (loopback only; UI surfaces run on the same device)
	Port int    // PF_PORT — default: 8090

	// Storage
	DBPath    string // PF_DB_PATH — default: "promptforge.db"
	DataDir   string // PF_DATA_DIR — default: ".promptforge" (materialized model payloads)
	AssetsDir string // PF_ASSETS_DIR — default: "assets" (bundled model payloads)

	// Inference backend
	OllamaBaseURL string // OLLAMA_BASE_URL — default: "http://localhost:11434"
	Model         string // PF_MODEL — default: "gemma3:1b"
	ModelFile     string // PF_MODEL_FILE — default: "gemma-3-1b-it-q4.gguf" (bundled asset filename)

	// Logging
	AppEnv string // APP_ENV — default: "production" ("development" enables debug + console logs)

	// Auth (optional — empty secret disables the auth middleware)
	JWTSecret string // PF_JWT_SECRET — default: ""
}

const (
	envKeyHost          = "PF_HOST"
	envKeyPort          = "PF_PORT"
	envKeyDBPath        = "PF_DB_PATH"
	envKeyDataDir       = "PF_DATA_DIR"
	envKeyAssetsDir     = "PF_ASSETS_DIR"
	envKeyOllamaBaseURL = "OLLAMA_BASE_URL"
	envKeyModel         = "PF_MODEL"
	envKeyModelFile     = "PF_MODEL_FILE"
	envKeyAppEnv        = "APP_ENV"
	envKeyJWTSecret     = "PF_JWT_SECRET"
)

// Load reads configuration from environment variables, applying defaults for
// missing values. A .env file is loaded first when present; real environment
// variables always win over .env entries.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Host:          envOr(envKeyHost, "127.0.0.1"),
		Port:          envIntOr(envKeyPort, 8090),
		DBPath:        envOr(envKeyDBPath, "promptforge.db"),
		DataDir:       envOr(envKeyDataDir, ".promptforge"),
		AssetsDir:     envOr(envKeyAssetsDir, "assets"),
		OllamaBaseURL: envOr(envKeyOllamaBaseURL, "http://localhost:11434"),
		Model:         envOr(envKeyModel, "gemma3:1b"),
		ModelFile:     envOr(envKeyModelFile, "gemma-3-1b-it-q4.gguf"),
		AppEnv:        envOr(envKeyAppEnv, "production"),
		JWTSecret:     os.Getenv(envKeyJWTSecret),
	}
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envIntOr returns the integer value of the environment variable key, or
// fallback if unset or not a valid integer.
func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
