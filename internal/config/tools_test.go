package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultToolsConfig(t *testing.T) {
	cfg := DefaultToolsConfig()

	if !cfg.Known("crm") || !cfg.Known("projects") {
		t.Fatal("default catalog missing expected tools")
	}
	if cfg.Known("time-machine") {
		t.Fatal("unknown tool reported as known")
	}
	if got := cfg.RouteName("/crm"); got != "CRM" {
		t.Fatalf("RouteName(/crm) = %q", got)
	}
	if got := cfg.RouteName("/admin"); got != "Admin Panel" {
		t.Fatalf("RouteName(/admin) = %q", got)
	}
	if got := cfg.RouteName("/nowhere"); got != "" {
		t.Fatalf("RouteName(/nowhere) = %q, want empty", got)
	}
}

func TestLoadToolsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	content := `tools:
  - key: crm
    name: CRM
    route: /crm
route_names:
  "/": Home
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadToolsConfig(path)
	if err != nil {
		t.Fatalf("LoadToolsConfig: %v", err)
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].Key != "crm" {
		t.Fatalf("tools = %+v", cfg.Tools)
	}
}

func TestLoadToolsConfigRejectsMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	content := "tools:\n  - name: Nameless\n    route: /x\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadToolsConfig(path); err == nil {
		t.Fatal("tool without key accepted")
	}
}

func TestLoadToolsConfigOrDefaultFallsBack(t *testing.T) {
	cfg := LoadToolsConfigOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if !cfg.Known("crm") {
		t.Fatal("fallback did not return the default catalog")
	}
}
