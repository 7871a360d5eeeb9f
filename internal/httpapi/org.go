package httpapi

import (
	"net/http"

	"github.com/appmaster-cloud/gateway/internal/audit"
	"github.com/appmaster-cloud/gateway/internal/errors"
	"github.com/appmaster-cloud/gateway/internal/guard"
	"github.com/appmaster-cloud/gateway/internal/httputil"
	"github.com/appmaster-cloud/gateway/internal/middleware"
	"github.com/appmaster-cloud/gateway/internal/session"
	"github.com/appmaster-cloud/gateway/internal/tenant"
)

// requireOrgSession applies a guard requirement against the current session
// and tenant. It returns the session when the request may proceed; a nil
// session means the decision has been written already.
func (s *Server) requireOrgSession(w http.ResponseWriter, req guard.Requirement) *session.Session {
	sess := s.sessions.Session()
	decision := guard.Evaluate(sess, s.tenants.Current(), req)
	switch decision.State {
	case guard.Loading:
		// Not a denial; the client should retry once resolution lands.
		httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"state": "loading"})
		return nil
	case guard.DeniedRedirect:
		err := errors.Forbidden("")
		if !sess.Authenticated() {
			err = errors.Unauthorized("")
		}
		httputil.WriteErrorRedirect(w, err, decision.Redirect)
		return nil
	}
	return sess
}

func (s *Server) handleOrg(w http.ResponseWriter, r *http.Request) {
	sess := s.requireOrgSession(w, guard.Requirement{})
	if sess == nil {
		return
	}
	if !sess.IsOrganization() || sess.OrganisationID == "" {
		httputil.WriteError(w, errors.NotFound("organisation"))
		return
	}

	org, err := s.tenants.Load(r.Context(), sess.OrganisationID)
	if err != nil {
		httputil.WriteError(w, errors.Upstream("organisation load failed", err))
		return
	}
	org.Role = string(sess.Role)
	httputil.WriteJSON(w, http.StatusOK, org)
}

func (s *Server) handleOrgRefresh(w http.ResponseWriter, r *http.Request) {
	sess := s.requireOrgSession(w, guard.Requirement{})
	if sess == nil {
		return
	}
	if !sess.IsOrganization() || sess.OrganisationID == "" {
		httputil.WriteError(w, errors.NotFound("organisation"))
		return
	}

	org, err := s.tenants.Refresh(r.Context())
	if err != nil {
		// First refresh may race the prime; load by ID instead of failing.
		org, err = s.tenants.Load(r.Context(), sess.OrganisationID)
	}
	if err != nil {
		httputil.WriteError(w, errors.Upstream("organisation refresh failed", err))
		return
	}
	org.Role = string(sess.Role)
	httputil.WriteJSON(w, http.StatusOK, org)
}

// toolsResponse is the wire shape of GET /api/org/tools.
type toolsResponse struct {
	ActiveTools []string      `json:"active_tools"`
	Catalog     []toolSummary `json:"catalog"`
}

type toolSummary struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Route string `json:"route"`
}

func (s *Server) handleOrgTools(w http.ResponseWriter, r *http.Request) {
	sess := s.requireOrgSession(w, guard.Requirement{})
	if sess == nil {
		return
	}
	if !sess.IsOrganization() || sess.OrganisationID == "" {
		httputil.WriteError(w, errors.NotFound("organisation"))
		return
	}

	org, err := s.tenants.Load(r.Context(), sess.OrganisationID)
	if err != nil {
		httputil.WriteError(w, errors.Upstream("organisation load failed", err))
		return
	}

	resp := toolsResponse{ActiveTools: org.ActiveTools}
	if resp.ActiveTools == nil {
		resp.ActiveTools = []string{}
	}
	for _, tool := range s.catalog.Tools {
		resp.Catalog = append(resp.Catalog, toolSummary{Key: tool.Key, Name: tool.Name, Route: tool.Route})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type toolsUpdateRequest struct {
	ActiveTools []string `json:"active_tools"`
}

func (s *Server) handleOrgToolsUpdate(w http.ResponseWriter, r *http.Request) {
	sess := s.requireOrgSession(w, guard.Requirement{
		Roles: []session.OrgRole{session.RoleAdmin, session.RoleOwner},
	})
	if sess == nil {
		return
	}
	if !sess.IsOrganization() || sess.OrganisationID == "" {
		httputil.WriteError(w, errors.NotFound("organisation"))
		return
	}

	var req toolsUpdateRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		httputil.WriteError(w, errors.Validation(err.Error()))
		return
	}
	for _, key := range req.ActiveTools {
		if !s.catalog.Known(key) {
			httputil.WriteError(w, errors.Validation("unknown tool: "+key))
			return
		}
	}

	if err := s.tools.UpdateTools(r.Context(), sess.OrganisationID, req.ActiveTools); err != nil {
		httputil.WriteError(w, errors.Upstream("tools update failed", err))
		return
	}

	org, err := s.tenants.Refresh(r.Context())
	if err != nil {
		org = &tenant.Organisation{ID: sess.OrganisationID, ActiveTools: req.ActiveTools}
	}
	org.Role = string(sess.Role)

	if s.audit != nil {
		actor := ""
		if identity := middleware.GetIdentity(r.Context()); identity != nil {
			actor = identity.UserID
		}
		s.audit.Record(audit.Entry{
			Action:  audit.ActionToolsUpdate,
			ActorID: actor,
			Tenant:  sess.OrganisationID,
			Outcome: "updated",
		})
	}

	httputil.WriteJSON(w, http.StatusOK, org)
}
