package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8090" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.TenantCacheTTL != 5*time.Minute {
		t.Fatalf("tenant ttl = %v", cfg.TenantCacheTTL)
	}
	if cfg.OrphanSweepSpec != "0 3 * * *" {
		t.Fatalf("sweep spec = %q", cfg.OrphanSweepSpec)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadRequiresSupabaseURL(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "anon-key")
	if _, err := Load(""); err == nil {
		t.Fatal("missing SUPABASE_URL accepted")
	}
}

func TestLoadRequiresAKey(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "")
	t.Setenv("SUPABASE_SERVICE_KEY", "")
	if _, err := Load(""); err == nil {
		t.Fatal("missing keys accepted")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GATEWAY_LISTEN_ADDR", ":9999")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com")
	t.Setenv("TENANT_CACHE_TTL", "30s")
	t.Setenv("RATE_LIMIT_PER_SEC", "5")
	t.Setenv("REALTIME_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.TenantCacheTTL != 30*time.Second {
		t.Fatalf("tenant ttl = %v", cfg.TenantCacheTTL)
	}
	if cfg.RateLimitPerSec != 5 {
		t.Fatalf("rate limit = %d", cfg.RateLimitPerSec)
	}
	if !cfg.RealtimeEnabled {
		t.Fatal("realtime not enabled")
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")
	t.Setenv("SUPABASE_SERVICE_KEY", "")

	path := filepath.Join(t.TempDir(), ".env")
	content := "SUPABASE_URL=https://file.supabase.co\nSUPABASE_ANON_KEY=file-anon\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SupabaseURL != "https://file.supabase.co" {
		t.Fatalf("url = %q", cfg.SupabaseURL)
	}
}
