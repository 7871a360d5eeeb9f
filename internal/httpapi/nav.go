package httpapi

import (
	"net/http"

	"github.com/appmaster-cloud/gateway/internal/errors"
	"github.com/appmaster-cloud/gateway/internal/httputil"
	"github.com/appmaster-cloud/gateway/internal/middleware"
	"github.com/appmaster-cloud/gateway/internal/nav"
	"github.com/appmaster-cloud/gateway/internal/prefs"
)

func (s *Server) handleBreadcrumbs(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		httputil.WriteError(w, errors.Validation("path query parameter is required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"crumbs": nav.Trail(path, s.catalog),
	})
}

func (s *Server) handlePrefsGet(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	p, err := s.prefs.Get(r.Context(), identity.UserID)
	if err != nil {
		httputil.WriteError(w, errors.Upstream("preferences load failed", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) handlePrefsPut(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var p prefs.Preferences
	if err := httputil.DecodeJSON(r.Body, &p); err != nil {
		httputil.WriteError(w, errors.Validation(err.Error()))
		return
	}
	if err := s.prefs.Set(r.Context(), identity.UserID, p); err != nil {
		httputil.WriteError(w, errors.Upstream("preferences save failed", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}
