package guard

import "github.com/appmaster-cloud/gateway/internal/session"

// Canonical landing destinations.
const (
	LoginPath           = "/login"
	SuperAdminDashboard = "/super-admin"
	IndividualDashboard = "/dashboard/individual"
	OrgAdminDashboard   = "/dashboard/org-admin"
	OrgEditorDashboard  = "/dashboard/org-editor"
	OrgViewerDashboard  = "/dashboard/org-viewer"
)

// Resolve maps a session to its canonical dashboard. The priority order is a
// deliberate tie-break policy: platform-admin status overrides every other
// classification, and within organisations unknown roles degrade to editor,
// not viewer. Both defaults are preserved from the product's documented
// behavior; confirm with product before tightening either one.
func Resolve(sess *session.Session) string {
	if !sess.Authenticated() {
		return LoginPath
	}

	if sess.IsPlatformAdmin() {
		return SuperAdminDashboard
	}

	if sess.IsIndividual() {
		return IndividualDashboard
	}

	if sess.IsOrganization() {
		switch sess.Role {
		case session.RoleAdmin, session.RoleOwner:
			return OrgAdminDashboard
		case session.RoleManager, session.RoleEditor:
			return OrgEditorDashboard
		case session.RoleViewer, session.RoleReadOnly:
			return OrgViewerDashboard
		default:
			// Unrecognized organisation roles land on the editor
			// dashboard. A documented default, not a failure.
			return OrgEditorDashboard
		}
	}

	// No recognized classification at all.
	return IndividualDashboard
}
