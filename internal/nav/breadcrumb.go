// Package nav derives breadcrumb trails from URL paths.
package nav

import (
	"strings"

	"github.com/appmaster-cloud/gateway/internal/config"
)

// Crumb is one breadcrumb entry. Path is empty for the current page, which
// is never navigable.
type Crumb struct {
	Label string `json:"label"`
	Path  string `json:"path,omitempty"`
}

// Trail builds breadcrumbs for a location path. The derivation is
// deterministic: the same path always yields the same trail, rebuilt from
// scratch on every call.
func Trail(path string, catalog *config.ToolsConfig) []Crumb {
	path = normalize(path)

	if path == "/" {
		return []Crumb{{Label: labelFor("/", "", catalog)}}
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	crumbs := make([]Crumb, 0, len(segments)+1)
	crumbs = append(crumbs, Crumb{Label: labelFor("/", "", catalog), Path: "/"})

	for i, segment := range segments {
		crumbPath := "/" + strings.Join(segments[:i+1], "/")
		crumb := Crumb{Label: labelFor(crumbPath, segment, catalog)}
		if i < len(segments)-1 {
			crumb.Path = crumbPath
		}
		crumbs = append(crumbs, crumb)
	}
	return crumbs
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

func labelFor(path, segment string, catalog *config.ToolsConfig) string {
	if catalog != nil {
		if name := catalog.RouteName(path); name != "" {
			return name
		}
	}
	if path == "/" {
		return "Home"
	}
	return titleize(segment)
}

// titleize turns a path segment into a display label: first letter upper,
// dashes to spaces.
func titleize(segment string) string {
	words := strings.Split(segment, "-")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
