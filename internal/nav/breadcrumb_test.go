package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appmaster-cloud/gateway/internal/config"
)

func TestTrailRoot(t *testing.T) {
	crumbs := Trail("/", config.DefaultToolsConfig())
	require.Len(t, crumbs, 1)
	assert.Equal(t, "Home", crumbs[0].Label)
	assert.Empty(t, crumbs[0].Path, "current page must not be navigable")
}

func TestTrailNestedPath(t *testing.T) {
	crumbs := Trail("/crm/contacts/42", config.DefaultToolsConfig())
	require.Len(t, crumbs, 4)

	assert.Equal(t, Crumb{Label: "Home", Path: "/"}, crumbs[0])
	assert.Equal(t, Crumb{Label: "CRM", Path: "/crm"}, crumbs[1])
	assert.Equal(t, Crumb{Label: "Contacts", Path: "/crm/contacts"}, crumbs[2])
	assert.Equal(t, "42", crumbs[3].Label)
	assert.Empty(t, crumbs[3].Path, "last entry must not be navigable")
}

func TestTrailUsesConfiguredRouteNames(t *testing.T) {
	crumbs := Trail("/admin", config.DefaultToolsConfig())
	require.Len(t, crumbs, 2)
	assert.Equal(t, "Admin Panel", crumbs[1].Label)
}

func TestTrailTitleizesUnknownSegments(t *testing.T) {
	crumbs := Trail("/reports/year-end-summary", config.DefaultToolsConfig())
	require.Len(t, crumbs, 3)
	assert.Equal(t, "Reports", crumbs[1].Label)
	assert.Equal(t, "Year End Summary", crumbs[2].Label)
}

func TestTrailIsDeterministic(t *testing.T) {
	catalog := config.DefaultToolsConfig()
	first := Trail("/invoicing/new", catalog)
	second := Trail("/invoicing/new", catalog)
	assert.Equal(t, first, second)
}

func TestTrailNormalizesInput(t *testing.T) {
	catalog := config.DefaultToolsConfig()
	assert.Equal(t, Trail("/crm", catalog), Trail("crm", catalog))
	assert.Equal(t, Trail("/crm", catalog), Trail("/crm/", catalog))
	require.Len(t, Trail("", catalog), 1)
}

func TestTrailCollapsesRepeatedSlashes(t *testing.T) {
	catalog := config.DefaultToolsConfig()
	assert.Equal(t, Trail("/crm/contacts", catalog), Trail("/crm//contacts", catalog))
	assert.Equal(t, Trail("/crm", catalog), Trail("///crm", catalog))
	for _, crumb := range Trail("/a//b", catalog) {
		assert.NotEmpty(t, crumb.Label)
	}
}

func TestTrailNilCatalog(t *testing.T) {
	crumbs := Trail("/anything", nil)
	require.Len(t, crumbs, 2)
	assert.Equal(t, "Home", crumbs[0].Label)
	assert.Equal(t, "Anything", crumbs[1].Label)
}
