// Package guard decides whether a session may reach a protected view. The
// guard is a pure function of the current session and tenant state; every
// evaluation starts from scratch and no decision is remembered.
package guard

import (
	"github.com/appmaster-cloud/gateway/internal/metrics"
	"github.com/appmaster-cloud/gateway/internal/session"
	"github.com/appmaster-cloud/gateway/internal/tenant"
)

// State is the guard outcome for one evaluation.
type State int

const (
	// Loading means a required lookup has not completed. It is the only
	// non-terminal state; a loading session must never be redirected.
	Loading State = iota
	// Allowed admits the request.
	Allowed
	// DeniedRedirect blocks the request and names a navigable fallback.
	DeniedRedirect
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Allowed:
		return "allowed"
	case DeniedRedirect:
		return "denied"
	default:
		return "unknown"
	}
}

// Decision is the result of one guard evaluation. Redirect is set only for
// DeniedRedirect and always names a reachable page, never a dead end.
type Decision struct {
	State    State
	Redirect string
}

// Requirement describes what a guarded route demands.
type Requirement struct {
	// SuperAdmin admits only active platform admins.
	SuperAdmin bool
	// Roles admits only sessions whose org role is listed. Empty means any
	// authenticated session.
	Roles []session.OrgRole
	// Tool admits only organisations with the tool enabled.
	Tool string
}

// Evaluate computes the guard decision for the given session and tenant
// state.
func Evaluate(sess *session.Session, org *tenant.Organisation, req Requirement) Decision {
	decision := evaluate(sess, org, req)
	metrics.RecordGuardDecision(decision.State.String())
	return decision
}

func evaluate(sess *session.Session, org *tenant.Organisation, req Requirement) Decision {
	// Role data may still be in flight; deciding now would race the
	// resolver and bounce users to the wrong dashboard.
	if sess != nil && sess.Loading {
		return Decision{State: Loading}
	}

	if !sess.Authenticated() {
		return Decision{State: DeniedRedirect, Redirect: LoginPath}
	}

	if req.SuperAdmin && !sess.IsPlatformAdmin() {
		return Decision{State: DeniedRedirect, Redirect: Resolve(sess)}
	}

	if len(req.Roles) > 0 && !hasRole(sess, req.Roles) {
		return Decision{State: DeniedRedirect, Redirect: Resolve(sess)}
	}

	if req.Tool != "" && !sess.IsPlatformAdmin() {
		if sess.IsOrganization() {
			if org == nil {
				// Tenant lookup still in flight.
				return Decision{State: Loading}
			}
			if !org.HasTool(req.Tool) {
				return Decision{State: DeniedRedirect, Redirect: Resolve(sess)}
			}
		}
		// Individual accounts are not tool-gated; their catalog is
		// managed per user, not per tenant.
	}

	return Decision{State: Allowed}
}

func hasRole(sess *session.Session, roles []session.OrgRole) bool {
	// Platform admins pass every role gate.
	if sess.IsPlatformAdmin() {
		return true
	}
	for _, role := range roles {
		if sess.Role == role {
			return true
		}
	}
	return false
}
