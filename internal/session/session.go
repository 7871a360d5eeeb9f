// Package session owns the authenticated identity: who is logged in and what
// they can do. The Session value is immutable once published; all mutation
// goes through the Store.
package session

import "strings"

// AccountType is the billing classification of an account.
type AccountType string

const (
	AccountUnknown      AccountType = ""
	AccountPersonal     AccountType = "personal"
	AccountOrganization AccountType = "organization"
)

// ParseAccountType maps a raw string onto the closed account-type set.
// Unrecognized values map to AccountUnknown.
func ParseAccountType(raw string) AccountType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "personal":
		return AccountPersonal
	case "organization", "organisation":
		return AccountOrganization
	default:
		return AccountUnknown
	}
}

// UserType is the product classification of a user record.
type UserType string

const (
	UserUnknown       UserType = ""
	UserIndividual    UserType = "individual"
	UserOrganization  UserType = "organization"
	UserPlatformAdmin UserType = "appmaster_admin"
)

// ParseUserType maps a raw string onto the closed user-type set.
func ParseUserType(raw string) UserType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "individual":
		return UserIndividual
	case "organization", "organisation":
		return UserOrganization
	case "appmaster_admin":
		return UserPlatformAdmin
	default:
		return UserUnknown
	}
}

// OrgRole is a user's role within an organisation.
type OrgRole string

const (
	RoleNone     OrgRole = ""
	RoleOwner    OrgRole = "owner"
	RoleAdmin    OrgRole = "admin"
	RoleManager  OrgRole = "manager"
	RoleEditor   OrgRole = "editor"
	RoleViewer   OrgRole = "viewer"
	RoleReadOnly OrgRole = "read-only"
	// RoleMember is the least-privileged default applied when the role
	// lookup fails. Authentication is never held hostage to enrichment.
	RoleMember OrgRole = "member"
)

// ParseOrgRole normalizes a raw role string. Unrecognized roles are kept
// verbatim (lowercased) so the dashboard resolver can apply its documented
// unknown-role default instead of this layer guessing.
func ParseOrgRole(raw string) OrgRole {
	return OrgRole(strings.ToLower(strings.TrimSpace(raw)))
}

// Session is the resolved identity for one authenticated principal. A zero
// UserID means "no session". Loading marks a session whose role and profile
// lookups have not completed yet; guards must not redirect while it is set.
type Session struct {
	UserID            string      `json:"user_id"`
	Email             string      `json:"email"`
	DisplayName       string      `json:"display_name,omitempty"`
	Role              OrgRole     `json:"role,omitempty"`
	AccountType       AccountType `json:"account_type,omitempty"`
	UserType          UserType    `json:"user_type,omitempty"`
	OrganisationID    string      `json:"organisation_id,omitempty"`
	PlatformAdminRole string      `json:"appmaster_admin_role,omitempty"`
	Loading           bool        `json:"loading"`
}

// Authenticated reports whether the session belongs to a signed-in principal.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}

// IsPlatformAdmin reports whether any platform-admin classification applies.
// Any one signal is sufficient; this mirrors the priority rule used by the
// dashboard resolver.
func (s *Session) IsPlatformAdmin() bool {
	if s == nil {
		return false
	}
	return s.UserType == UserPlatformAdmin || s.PlatformAdminRole != ""
}

// IsOrganization reports whether the session belongs to an organisation
// account.
func (s *Session) IsOrganization() bool {
	if s == nil {
		return false
	}
	return s.UserType == UserOrganization || s.AccountType == AccountOrganization
}

// IsIndividual reports whether the session belongs to a personal account.
func (s *Session) IsIndividual() bool {
	if s == nil {
		return false
	}
	return s.UserType == UserIndividual || s.AccountType == AccountPersonal
}

// EmailLocalPart returns the part of the email before the '@', used as the
// display-name fallback when the profile lookup fails.
func EmailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
