package httpapi

import (
	"net/http"

	"github.com/appmaster-cloud/gateway/internal/audit"
	"github.com/appmaster-cloud/gateway/internal/errors"
	"github.com/appmaster-cloud/gateway/internal/events"
	"github.com/appmaster-cloud/gateway/internal/guard"
	"github.com/appmaster-cloud/gateway/internal/httputil"
	"github.com/appmaster-cloud/gateway/internal/middleware"
	"github.com/appmaster-cloud/gateway/internal/session"
)

// sessionResponse is the wire shape of GET /api/session.
type sessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	Session       *session.Session `json:"session,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Session()
	httputil.WriteJSON(w, http.StatusOK, sessionResponse{
		Authenticated: sess.Authenticated(),
		Session:       sess,
	})
}

// dashboardResponse is the wire shape of GET /api/dashboard. State is
// "loading" while resolution is in flight; Destination is set otherwise.
type dashboardResponse struct {
	State       string `json:"state"`
	Destination string `json:"destination,omitempty"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Session()
	if sess != nil && sess.Loading {
		httputil.WriteJSON(w, http.StatusOK, dashboardResponse{State: "loading"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dashboardResponse{
		State:       "resolved",
		Destination: guard.Resolve(sess),
	})
}

// authEventRequest is the client notification of an auth state change. The
// principal is taken from the verified token, never from the body.
type authEventRequest struct {
	Kind string `json:"kind"`
}

func (s *Server) handleAuthEvent(w http.ResponseWriter, r *http.Request) {
	var req authEventRequest
	if err := httputil.DecodeJSON(r.Body, &req); err != nil {
		httputil.WriteError(w, errors.Validation(err.Error()))
		return
	}

	identity := middleware.GetIdentity(r.Context())

	var event events.AuthEvent
	switch events.Kind(req.Kind) {
	case events.SignedIn, events.TokenRefreshed:
		if identity == nil {
			httputil.WriteErrorRedirect(w, errors.Unauthorized(""), guard.LoginPath)
			return
		}
		event = events.AuthEvent{
			Kind:   events.Kind(req.Kind),
			UserID: identity.UserID,
			Email:  identity.Email,
		}
	case events.SignedOut:
		// Sign-out may arrive after the client dropped its token.
		event = events.AuthEvent{Kind: events.SignedOut}
	default:
		httputil.WriteError(w, errors.Validation("unknown event kind"))
		return
	}

	s.hub.Publish(event)
	s.recordAuthAudit(event, r)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) recordAuthAudit(event events.AuthEvent, r *http.Request) {
	if s.audit == nil {
		return
	}
	action := audit.ActionSignIn
	switch event.Kind {
	case events.TokenRefreshed:
		action = audit.ActionTokenRefresh
	case events.SignedOut:
		action = audit.ActionSignOut
	}
	s.audit.Record(audit.Entry{
		Action:     action,
		ActorID:    event.UserID,
		ActorEmail: event.Email,
		RemoteAddr: r.RemoteAddr,
	})
}
