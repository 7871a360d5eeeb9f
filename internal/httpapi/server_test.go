package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appmaster-cloud/gateway/internal/audit"
	"github.com/appmaster-cloud/gateway/internal/config"
	"github.com/appmaster-cloud/gateway/internal/events"
	"github.com/appmaster-cloud/gateway/internal/guard"
	"github.com/appmaster-cloud/gateway/internal/logging"
	"github.com/appmaster-cloud/gateway/internal/middleware"
	"github.com/appmaster-cloud/gateway/internal/prefs"
	"github.com/appmaster-cloud/gateway/internal/session"
	"github.com/appmaster-cloud/gateway/internal/tenant"
)

type staticTenantSource struct {
	org *tenant.Organisation
}

func (s *staticTenantSource) FetchOrganisation(context.Context, string) (*tenant.Organisation, error) {
	org := *s.org
	return &org, nil
}

type recordingToolUpdater struct {
	orgID string
	tools []string
}

func (u *recordingToolUpdater) UpdateTools(_ context.Context, id string, tools []string) error {
	u.orgID = id
	u.tools = tools
	return nil
}

type serverFixture struct {
	server   *Server
	router   *mux.Router
	sessions *session.Store
	hub      *events.Hub
	updater  *recordingToolUpdater
	audit    *audit.Log
}

func newFixture(t *testing.T, org *tenant.Organisation) *serverFixture {
	t.Helper()

	sessions := session.NewStore()
	hub := events.NewHub()
	t.Cleanup(hub.Close)

	source := &staticTenantSource{org: org}
	if org == nil {
		source.org = &tenant.Organisation{ID: "unused"}
	}
	tenants := tenant.NewContext(source, nil, time.Minute, logging.NewNop())
	updater := &recordingToolUpdater{}
	auditLog := audit.NewLog(50, nil)

	server := NewServer(Options{
		Logger:   logging.NewNop(),
		Hub:      hub,
		Sessions: sessions,
		Tenants:  tenants,
		Tools:    updater,
		Catalog:  config.DefaultToolsConfig(),
		Prefs:    prefs.NewMemoryStore(),
		Audit:    auditLog,
	})
	router := mux.NewRouter()
	server.Routes(router)

	return &serverFixture{
		server:   server,
		router:   router,
		sessions: sessions,
		hub:      hub,
		updater:  updater,
		audit:    auditLog,
	}
}

func (f *serverFixture) commit(t *testing.T, sess session.Session) {
	t.Helper()
	tag := f.sessions.BeginResolution(sess.UserID, sess.Email)
	if !f.sessions.Commit(tag, sess) {
		t.Fatal("session commit rejected")
	}
}

func withIdentity(r *http.Request, id *middleware.Identity) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.IdentityContextKey, id)
	return r.WithContext(ctx)
}

func TestSessionEndpointAnonymous(t *testing.T) {
	f := newFixture(t, nil)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Authenticated)
	assert.Nil(t, resp.Session)
}

func TestSessionEndpointAuthenticated(t *testing.T) {
	f := newFixture(t, nil)
	f.commit(t, session.Session{
		UserID: "u1", Email: "u1@example.com",
		Role: session.RoleAdmin, UserType: session.UserOrganization, OrganisationID: "org1",
	})

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Authenticated)
	require.NotNil(t, resp.Session)
	assert.Equal(t, session.RoleAdmin, resp.Session.Role)
}

func TestDashboardEndpointStates(t *testing.T) {
	f := newFixture(t, nil)

	// Anonymous: resolved to login.
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	var resp dashboardResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "resolved", resp.State)
	assert.Equal(t, guard.LoginPath, resp.Destination)

	// Resolution in flight: loading, no destination.
	f.sessions.BeginResolution("u1", "u1@example.com")
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	resp = dashboardResponse{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "loading", resp.State)
	assert.Empty(t, resp.Destination)

	// Committed org admin: org-admin dashboard.
	f.commit(t, session.Session{
		UserID: "u1", Email: "u1@example.com",
		Role: session.RoleAdmin, UserType: session.UserOrganization, OrganisationID: "org1",
	})
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, guard.OrgAdminDashboard, resp.Destination)
}

func TestAuthEventRequiresIdentityForSignIn(t *testing.T) {
	f := newFixture(t, nil)

	body := bytes.NewBufferString(`{"kind":"signed_in"}`)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/events", body))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), `"redirect":"/login"`)
}

func TestAuthEventPublishesVerifiedIdentity(t *testing.T) {
	f := newFixture(t, nil)

	ch, cancel := f.hub.Subscribe()
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/events",
		bytes.NewBufferString(`{"kind":"signed_in"}`))
	req = withIdentity(req, &middleware.Identity{UserID: "u1", Email: "u1@example.com"})
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	select {
	case event := <-ch:
		assert.Equal(t, events.SignedIn, event.Kind)
		assert.Equal(t, "u1", event.UserID)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestAuthEventSignOutAllowsAnonymous(t *testing.T) {
	f := newFixture(t, nil)

	ch, cancel := f.hub.Subscribe()
	defer cancel()

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/events",
		bytes.NewBufferString(`{"kind":"signed_out"}`)))

	require.Equal(t, http.StatusAccepted, rr.Code)
	select {
	case event := <-ch:
		assert.Equal(t, events.SignedOut, event.Kind)
		assert.Empty(t, event.UserID)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestAuthEventRejectsUnknownKind(t *testing.T) {
	f := newFixture(t, nil)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/events",
		bytes.NewBufferString(`{"kind":"exploded"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrgEndpointDeniesAnonymousWithRedirect(t *testing.T) {
	f := newFixture(t, nil)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/org", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), `"redirect":"/login"`)
}

func TestOrgEndpointHoldsWhileLoading(t *testing.T) {
	f := newFixture(t, nil)
	f.sessions.BeginResolution("u1", "u1@example.com")

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/org", nil))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Contains(t, rr.Body.String(), "loading")
}

func TestOrgEndpointReturnsOrganisation(t *testing.T) {
	f := newFixture(t, &tenant.Organisation{ID: "org1", Name: "Acme", ActiveTools: []string{"crm"}})
	f.commit(t, session.Session{
		UserID: "u1", Email: "u1@example.com",
		Role: session.RoleEditor, UserType: session.UserOrganization, OrganisationID: "org1",
	})

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/org", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var org tenant.Organisation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &org))
	assert.Equal(t, "Acme", org.Name)
	assert.Equal(t, "editor", org.Role)
}

func TestOrgToolsUpdateRequiresAdminRole(t *testing.T) {
	f := newFixture(t, &tenant.Organisation{ID: "org1", Name: "Acme"})
	f.commit(t, session.Session{
		UserID: "u1", Email: "u1@example.com",
		Role: session.RoleEditor, UserType: session.UserOrganization, OrganisationID: "org1",
	})

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/org/tools",
		bytes.NewBufferString(`{"active_tools":["crm"]}`)))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), guard.OrgEditorDashboard)
}

func TestOrgToolsUpdateValidatesCatalog(t *testing.T) {
	f := newFixture(t, &tenant.Organisation{ID: "org1", Name: "Acme"})
	f.commit(t, session.Session{
		UserID: "u1", Email: "u1@example.com",
		Role: session.RoleOwner, UserType: session.UserOrganization, OrganisationID: "org1",
	})

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/org/tools",
		bytes.NewBufferString(`{"active_tools":["time-machine"]}`)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, f.updater.tools)
}

func TestOrgToolsUpdatePersists(t *testing.T) {
	f := newFixture(t, &tenant.Organisation{ID: "org1", Name: "Acme", ActiveTools: []string{"crm"}})
	f.commit(t, session.Session{
		UserID: "u1", Email: "u1@example.com",
		Role: session.RoleOwner, UserType: session.UserOrganization, OrganisationID: "org1",
	})

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/org/tools",
		bytes.NewBufferString(`{"active_tools":["crm","invoicing"]}`)))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "org1", f.updater.orgID)
	assert.Equal(t, []string{"crm", "invoicing"}, f.updater.tools)
}

func TestBreadcrumbsEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/breadcrumbs?path=/crm/contacts", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Crumbs []struct {
			Label string `json:"label"`
			Path  string `json:"path"`
		} `json:"crumbs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Crumbs, 3)
	assert.Equal(t, "CRM", resp.Crumbs[1].Label)
	assert.Empty(t, resp.Crumbs[2].Path)

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/breadcrumbs", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPrefsRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	identity := &middleware.Identity{UserID: "u1", Email: "u1@example.com"}

	// Anonymous access is rejected.
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/prefs", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	put := httptest.NewRequest(http.MethodPut, "/api/prefs",
		bytes.NewBufferString(`{"sidebar_collapsed":true,"active_module":"crm"}`))
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, withIdentity(put, identity))
	require.Equal(t, http.StatusOK, rr.Code)

	get := httptest.NewRequest(http.MethodGet, "/api/prefs", nil)
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, withIdentity(get, identity))
	require.Equal(t, http.StatusOK, rr.Code)

	var p prefs.Preferences
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.True(t, p.SidebarCollapsed)
	assert.Equal(t, "crm", p.ActiveModule)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}
