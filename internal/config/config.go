package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Port                  string
	OpenAIAPIKey          string
	OpenAIModelTranscribe string
	OpenAIModelSummary    string
	OnDemandAPIKey        string
	OnDemandAPIURL        string
	OnDemandEndpointID    string
	MongoURI              string
	MongoDatabase         string
	DataDir               string
	MaxUploadBytes        int64
	SessionTimeout        time.Duration
	QueryTimeout          time.Duration
}

func LoadConfig() (Config, error) {
	cfg := Config{}

	cfg.Port = envOrDefault("PORT", "8080")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModelTranscribe = envOrDefault("OPENAI_MODEL_TRANSCRIBE", "whisper-1")
	cfg.OpenAIModelSummary = envOrDefault("OPENAI_MODEL_SUMMARY", "gpt-4o-mini")

	cfg.OnDemandAPIKey = os.Getenv("ONDEMAND_API_KEY")
	if cfg.OnDemandAPIKey == "" {
		cfg.OnDemandAPIKey = os.Getenv("ON_DEMAND_API_KEY")
	}
	cfg.OnDemandAPIURL = envOrDefault("ONDEMAND_API_URL", "https://api.on-demand.io")
	cfg.OnDemandEndpointID = envOrDefault("ONDEMAND_ENDPOINT_ID", "predefined-openai-gpt4.1-nano")

	cfg.MongoURI = os.Getenv("MONGODB_URI")
	cfg.MongoDatabase = envOrDefault("MONGODB_DB", "NoteRex")
	cfg.DataDir = envOrDefault("DATA_DIR", "data")

	sessionTimeoutSeconds, err := parseIntEnv("SESSION_TIMEOUT_SECONDS", 30)
	if err != nil {
		return Config{}, fmt.Errorf("parse SESSION_TIMEOUT_SECONDS: %w", err)
	}
	cfg.SessionTimeout = time.Duration(sessionTimeoutSeconds) * time.Second

	queryTimeoutSeconds, err := parseIntEnv("QUERY_TIMEOUT_SECONDS", 60)
	if err != nil {
		return Config{}, fmt.Errorf("parse QUERY_TIMEOUT_SECONDS: %w", err)
	}
	cfg.QueryTimeout = time.Duration(queryTimeoutSeconds) * time.Second

	maxUploadMB, err := parseIntEnv("MAX_UPLOAD_MB", 50)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_UPLOAD_MB: %w", err)
	}
	cfg.MaxUploadBytes = maxUploadMB * 1024 * 1024

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}
