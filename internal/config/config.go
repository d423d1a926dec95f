package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port      int              `json:"port"`
	DBPath    string           `json:"db_path"`
	JWTSecret string           `json:"jwt_secret"`
	LogConfig logger.LogConfig `json:"log_config"`
	FileStore FileStoreConfig  `json:"file_store"`
	Realtime  RealtimeConfig   `json:"realtime"`
	Cleanup   CleanupConfig    `json:"cleanup"`
	UserCache UserCacheConfig  `json:"user_cache"`

	// one request per window per (ip, user, path) on share create/inspect
	RateLimitWindowMS int `json:"rate_limit_window_ms"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type RealtimeConfig struct {
	SendQueueSize  int      `json:"send_queue_size"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type CleanupConfig struct {
	Enable        bool   `json:"enable"`
	Spec          string `json:"spec"`
	RetentionDays int    `json:"retention_days"`
}

type UserCacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
		cfg.FileStore.Data = map[string]interface{}{"dir": "./data/files"}
	}
	if cfg.Realtime.SendQueueSize <= 0 {
		cfg.Realtime.SendQueueSize = 64
	}
	if cfg.Cleanup.Enable {
		if cfg.Cleanup.Spec == "" {
			cfg.Cleanup.Spec = "0 4 * * *"
		}
		if cfg.Cleanup.RetentionDays <= 0 {
			cfg.Cleanup.RetentionDays = 30
		}
	}
	if cfg.UserCache.Size <= 0 {
		cfg.UserCache.Size = 1024
	}
	if cfg.UserCache.TTLSeconds <= 0 {
		cfg.UserCache.TTLSeconds = 300
	}
	return &cfg, nil
}
