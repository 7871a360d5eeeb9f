package httpapi

import (
	"net/http"
	"strconv"

	"github.com/appmaster-cloud/gateway/internal/admin"
	"github.com/appmaster-cloud/gateway/internal/errors"
	"github.com/appmaster-cloud/gateway/internal/httputil"
	"github.com/appmaster-cloud/gateway/internal/middleware"
)

func (s *Server) handleCreateOrgUser(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var params admin.CreateUserParams
	if err := httputil.DecodeJSON(r.Body, &params); err != nil {
		httputil.WriteError(w, errors.Validation(err.Error()))
		return
	}

	created, err := s.admin.CreateOrganizationUser(r.Context(), identity.UserID, params)
	if err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Warn("org user provisioning failed")
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    created,
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, errors.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries, err := s.admin.RecentAudit(r.Context(), identity.UserID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
