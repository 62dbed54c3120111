package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ストレージドライバ
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageDriver string
	DatabaseURL   string

	// Perk source
	PerksSourceURL  string
	PerksSourceFile string

	// Selection
	MaxPerks         int
	PageSize         int
	SelectionTimeout time.Duration
	SearchTimeout    time.Duration
	PromptGrace      time.Duration

	// Ingest
	IngestInterval time.Duration
	IngestOnStart  bool
	FetchTimeout   time.Duration
	FetchMaxSize   int64

	// Access control
	AllowedChannels []string
	AdminToken      string

	// Rate Limit
	RateLimitGeneral int

	// Logging
	LogLevel string

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.StorageDriver = strings.ToLower(getEnvString("STORAGE_DRIVER", StorageDriverPostgres))
	switch cfg.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER: %q", cfg.StorageDriver)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StorageDriver == StorageDriverPostgres {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.PerksSourceURL = os.Getenv("PERKS_SOURCE_URL")
	cfg.PerksSourceFile = os.Getenv("PERKS_SOURCE_FILE")
	if cfg.PerksSourceURL == "" && cfg.PerksSourceFile == "" {
		missing = append(missing, "PERKS_SOURCE_URL or PERKS_SOURCE_FILE")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.MaxPerks = getEnvInt("MAX_PERKS", 10)
	cfg.PageSize = getEnvInt("PAGE_SIZE", 25)
	cfg.SelectionTimeout = getEnvDuration("SELECTION_TIMEOUT", 300*time.Second)
	cfg.SearchTimeout = getEnvDuration("SEARCH_TIMEOUT", 30*time.Second)
	cfg.PromptGrace = getEnvDuration("PROMPT_GRACE", 10*time.Second)
	cfg.IngestInterval = getEnvDuration("INGEST_INTERVAL", 24*time.Hour)
	cfg.IngestOnStart = getEnvBool("INGEST_ON_START", true)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 20<<20)
	cfg.AllowedChannels = getEnvList("ALLOWED_CHANNELS")
	cfg.AdminToken = getEnvString("ADMIN_TOKEN", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	// 1ページの選択肢数はチャット側のセレクトメニューの上限に合わせる
	if cfg.PageSize <= 0 || cfg.PageSize > 25 {
		cfg.PageSize = 25
	}
	if cfg.MaxPerks <= 0 {
		cfg.MaxPerks = 10
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数を空要素を除いたスライスで返す。
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
