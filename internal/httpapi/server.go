// Package httpapi exposes the gateway's HTTP surface: session and dashboard
// state for the client, tenant data, navigation helpers, and the admin API.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/appmaster-cloud/gateway/internal/admin"
	"github.com/appmaster-cloud/gateway/internal/audit"
	"github.com/appmaster-cloud/gateway/internal/config"
	"github.com/appmaster-cloud/gateway/internal/events"
	"github.com/appmaster-cloud/gateway/internal/logging"
	"github.com/appmaster-cloud/gateway/internal/metrics"
	"github.com/appmaster-cloud/gateway/internal/middleware"
	"github.com/appmaster-cloud/gateway/internal/prefs"
	"github.com/appmaster-cloud/gateway/internal/session"
	"github.com/appmaster-cloud/gateway/internal/tenant"
)

// ToolUpdater persists an organisation's enabled tool list.
type ToolUpdater interface {
	UpdateTools(ctx context.Context, id string, tools []string) error
}

// Server wires the gateway components behind HTTP handlers.
type Server struct {
	logger   *logging.Logger
	hub      *events.Hub
	sessions *session.Store
	tenants  *tenant.Context
	tools    ToolUpdater
	catalog  *config.ToolsConfig
	prefs    prefs.Store
	admin    *admin.Service
	audit    *audit.Log
}

// Options carries the Server dependencies.
type Options struct {
	Logger   *logging.Logger
	Hub      *events.Hub
	Sessions *session.Store
	Tenants  *tenant.Context
	Tools    ToolUpdater
	Catalog  *config.ToolsConfig
	Prefs    prefs.Store
	Admin    *admin.Service
	Audit    *audit.Log
}

// NewServer creates the HTTP API server.
func NewServer(opts Options) *Server {
	catalog := opts.Catalog
	if catalog == nil {
		catalog = config.DefaultToolsConfig()
	}
	store := opts.Prefs
	if store == nil {
		store = prefs.NewMemoryStore()
	}
	return &Server{
		logger:   opts.Logger,
		hub:      opts.Hub,
		sessions: opts.Sessions,
		tenants:  opts.Tenants,
		tools:    opts.Tools,
		catalog:  catalog,
		prefs:    store,
		admin:    opts.Admin,
		audit:    opts.Audit,
	}
}

// Routes registers all handlers on the router.
func (s *Server) Routes(r *mux.Router) {
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/auth/events", s.handleAuthEvent).Methods(http.MethodPost)
	api.HandleFunc("/breadcrumbs", s.handleBreadcrumbs).Methods(http.MethodGet)

	api.HandleFunc("/org", s.handleOrg).Methods(http.MethodGet)
	api.HandleFunc("/org/refresh", s.handleOrgRefresh).Methods(http.MethodPost)
	api.HandleFunc("/org/tools", s.handleOrgTools).Methods(http.MethodGet)
	api.HandleFunc("/org/tools", s.handleOrgToolsUpdate).Methods(http.MethodPut)

	api.Handle("/prefs", middleware.RequireIdentity(http.HandlerFunc(s.handlePrefsGet))).Methods(http.MethodGet)
	api.Handle("/prefs", middleware.RequireIdentity(http.HandlerFunc(s.handlePrefsPut))).Methods(http.MethodPut)

	adminAPI := api.PathPrefix("/admin").Subrouter()
	adminAPI.Handle("/org-users", middleware.RequireIdentity(http.HandlerFunc(s.handleCreateOrgUser))).Methods(http.MethodPost)
	adminAPI.Handle("/audit", middleware.RequireIdentity(http.HandlerFunc(s.handleAudit))).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
