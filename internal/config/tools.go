package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tool describes one business module an organisation can enable.
type Tool struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Route       string `yaml:"route"`
	Description string `yaml:"description,omitempty"`
}

// ToolsConfig is the catalog of tools plus display names for routes that are
// not tools themselves (profile, settings, admin panel).
type ToolsConfig struct {
	Tools      []Tool            `yaml:"tools"`
	RouteNames map[string]string `yaml:"route_names"`
}

// LoadToolsConfig reads the catalog from path.
func LoadToolsConfig(path string) (*ToolsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools config: %w", err)
	}

	var cfg ToolsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse tools config: %w", err)
	}
	for i, tool := range cfg.Tools {
		if tool.Key == "" {
			return nil, fmt.Errorf("tool %d: key is required", i)
		}
	}
	return &cfg, nil
}

// LoadToolsConfigOrDefault reads the catalog, falling back to the built-in
// default when the file is absent.
func LoadToolsConfigOrDefault(path string) *ToolsConfig {
	cfg, err := LoadToolsConfig(path)
	if err != nil {
		return DefaultToolsConfig()
	}
	return cfg
}

// Known reports whether key names a tool in the catalog.
func (c *ToolsConfig) Known(key string) bool {
	for _, tool := range c.Tools {
		if tool.Key == key {
			return true
		}
	}
	return false
}

// RouteName returns the display label for a route path, empty when the route
// has no configured name.
func (c *ToolsConfig) RouteName(path string) string {
	if name, ok := c.RouteNames[path]; ok {
		return name
	}
	for _, tool := range c.Tools {
		if tool.Route == path {
			return tool.Name
		}
	}
	return ""
}

// DefaultToolsConfig returns the catalog shipped with the application.
func DefaultToolsConfig() *ToolsConfig {
	return &ToolsConfig{
		Tools: []Tool{
			{Key: "crm", Name: "CRM", Route: "/crm"},
			{Key: "invoicing", Name: "Invoicing", Route: "/invoicing"},
			{Key: "inventory", Name: "Inventory", Route: "/inventory"},
			{Key: "attendance", Name: "Attendance", Route: "/attendance"},
			{Key: "recruitment", Name: "Recruitment", Route: "/recruitment"},
			{Key: "tickets", Name: "Tickets", Route: "/tickets"},
			{Key: "subscriptions", Name: "Subscriptions", Route: "/subscriptions"},
			{Key: "assets", Name: "Assets", Route: "/assets"},
			{Key: "depreciation", Name: "Depreciation", Route: "/depreciation"},
			{Key: "inventory-shop", Name: "Shop Income & Expense", Route: "/shop-income-expense"},
			{Key: "marketing", Name: "Marketing", Route: "/marketing"},
			{Key: "personal-expense", Name: "Personal Expense", Route: "/personal-expense"},
			{Key: "projects", Name: "Projects", Route: "/projects"},
		},
		RouteNames: map[string]string{
			"/":         "Home",
			"/admin":    "Admin Panel",
			"/profile":  "Profile",
			"/settings": "Settings",
			"/login":    "Login",
			"/contact":  "Contact",
		},
	}
}
