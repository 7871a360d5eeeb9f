// Package config loads gateway configuration from the environment and the
// tool catalog from config/tools.yaml.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full gateway configuration.
type Config struct {
	ListenAddr      string
	LogLevel        string
	LogFormat       string
	SupabaseURL     string
	SupabaseAnonKey string
	SupabaseService string
	SupabaseJWTKey  string
	RedisAddr       string
	RedisPassword   string
	AllowedOrigins  []string
	RateLimitPerSec int
	RateLimitBurst  int
	TenantCacheTTL  time.Duration
	AuditFilePath   string
	OrphanSweepSpec string
	ToolsConfigPath string
	RealtimeEnabled bool
}

// Load reads configuration from the environment. A .env file at envFile is
// loaded first when present; missing files are not an error so containerized
// deployments can rely on real environment variables.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{
		ListenAddr:      getEnv("GATEWAY_LISTEN_ADDR", ":8090"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey: os.Getenv("SUPABASE_ANON_KEY"),
		SupabaseService: os.Getenv("SUPABASE_SERVICE_KEY"),
		SupabaseJWTKey:  os.Getenv("SUPABASE_JWT_SECRET"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		AllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitPerSec: getEnvInt("RATE_LIMIT_PER_SEC", 20),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 40),
		TenantCacheTTL:  getEnvDuration("TENANT_CACHE_TTL", 5*time.Minute),
		AuditFilePath:   os.Getenv("AUDIT_FILE_PATH"),
		OrphanSweepSpec: getEnv("ORPHAN_SWEEP_CRON", "0 3 * * *"),
		ToolsConfigPath: getEnv("TOOLS_CONFIG_PATH", "config/tools.yaml"),
		RealtimeEnabled: getEnvBool("REALTIME_ENABLED", false),
	}

	if cfg.SupabaseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.SupabaseAnonKey == "" && cfg.SupabaseService == "" {
		return nil, fmt.Errorf("SUPABASE_ANON_KEY or SUPABASE_SERVICE_KEY is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
