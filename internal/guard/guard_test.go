package guard

import (
	"testing"

	"github.com/appmaster-cloud/gateway/internal/session"
	"github.com/appmaster-cloud/gateway/internal/tenant"
)

func orgSession(role session.OrgRole) *session.Session {
	return &session.Session{
		UserID:         "u1",
		Email:          "u1@example.com",
		Role:           role,
		UserType:       session.UserOrganization,
		OrganisationID: "org1",
	}
}

func TestEvaluateLoadingNeverRedirects(t *testing.T) {
	sess := &session.Session{UserID: "u1", Loading: true}

	requirements := []Requirement{
		{},
		{SuperAdmin: true},
		{Roles: []session.OrgRole{session.RoleAdmin}},
		{Tool: "crm"},
	}
	for _, req := range requirements {
		decision := Evaluate(sess, nil, req)
		if decision.State != Loading {
			t.Fatalf("requirement %+v: state = %v, want Loading", req, decision.State)
		}
		if decision.Redirect != "" {
			t.Fatalf("requirement %+v: loading decision carries redirect %q", req, decision.Redirect)
		}
	}
}

func TestEvaluateNoSessionRedirectsToLogin(t *testing.T) {
	for _, sess := range []*session.Session{nil, {}} {
		decision := Evaluate(sess, nil, Requirement{})
		if decision.State != DeniedRedirect {
			t.Fatalf("state = %v, want DeniedRedirect", decision.State)
		}
		if decision.Redirect != LoginPath {
			t.Fatalf("redirect = %q, want %q", decision.Redirect, LoginPath)
		}
	}
}

func TestEvaluateSuperAdminGate(t *testing.T) {
	admin := &session.Session{UserID: "a1", PlatformAdminRole: "super_admin"}
	if d := Evaluate(admin, nil, Requirement{SuperAdmin: true}); d.State != Allowed {
		t.Fatalf("platform admin: state = %v, want Allowed", d.State)
	}

	regular := orgSession(session.RoleViewer)
	d := Evaluate(regular, nil, Requirement{SuperAdmin: true})
	if d.State != DeniedRedirect {
		t.Fatalf("regular user: state = %v, want DeniedRedirect", d.State)
	}
	if d.Redirect != OrgViewerDashboard {
		t.Fatalf("regular user redirect = %q, want %q", d.Redirect, OrgViewerDashboard)
	}
}

func TestEvaluateRoleGate(t *testing.T) {
	req := Requirement{Roles: []session.OrgRole{session.RoleAdmin, session.RoleOwner}}

	if d := Evaluate(orgSession(session.RoleAdmin), nil, req); d.State != Allowed {
		t.Fatalf("admin: state = %v, want Allowed", d.State)
	}
	if d := Evaluate(orgSession(session.RoleEditor), nil, req); d.State != DeniedRedirect {
		t.Fatalf("editor: state = %v, want DeniedRedirect", d.State)
	}

	// Platform admins pass every role gate.
	admin := &session.Session{UserID: "a1", PlatformAdminRole: "admin"}
	if d := Evaluate(admin, nil, req); d.State != Allowed {
		t.Fatalf("platform admin: state = %v, want Allowed", d.State)
	}
}

func TestEvaluateToolGate(t *testing.T) {
	sess := orgSession(session.RoleEditor)
	org := &tenant.Organisation{ID: "org1", ActiveTools: []string{"crm"}}

	if d := Evaluate(sess, org, Requirement{Tool: "crm"}); d.State != Allowed {
		t.Fatalf("enabled tool: state = %v, want Allowed", d.State)
	}

	d := Evaluate(sess, org, Requirement{Tool: "invoicing"})
	if d.State != DeniedRedirect {
		t.Fatalf("disabled tool: state = %v, want DeniedRedirect", d.State)
	}
	if d.Redirect != OrgEditorDashboard {
		t.Fatalf("disabled tool redirect = %q, want %q", d.Redirect, OrgEditorDashboard)
	}

	// Tenant still loading: hold, do not bounce.
	if d := Evaluate(sess, nil, Requirement{Tool: "crm"}); d.State != Loading {
		t.Fatalf("tenant pending: state = %v, want Loading", d.State)
	}
}

func TestEvaluateToolGateSkipsIndividuals(t *testing.T) {
	sess := &session.Session{UserID: "u1", UserType: session.UserIndividual}
	if d := Evaluate(sess, nil, Requirement{Tool: "crm"}); d.State != Allowed {
		t.Fatalf("individual: state = %v, want Allowed", d.State)
	}
}

func TestDecisionsAlwaysTerminateNavigably(t *testing.T) {
	sessions := []*session.Session{
		nil,
		{},
		orgSession(session.RoleViewer),
		orgSession("mystery-role"),
		{UserID: "u2", UserType: session.UserIndividual},
	}
	for _, sess := range sessions {
		d := Evaluate(sess, nil, Requirement{SuperAdmin: true})
		if d.State == DeniedRedirect && d.Redirect == "" {
			t.Fatalf("session %+v: denial without redirect target", sess)
		}
	}
}
