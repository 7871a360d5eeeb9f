// Package admin implements platform-admin operations: organization user
// provisioning and cleanup of half-created accounts.
package admin

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/appmaster-cloud/gateway/internal/audit"
	"github.com/appmaster-cloud/gateway/internal/errors"
	"github.com/appmaster-cloud/gateway/internal/logging"
	supa "github.com/appmaster-cloud/gateway/supabase/client"
)

// Service performs provisioning with the Supabase service role. Every entry
// point authorizes the actor against appmaster_admins before touching data.
type Service struct {
	db     *supa.Client
	auth   *supa.AdminClient
	audit  *audit.Log
	logger *logging.Logger
}

func NewService(db *supa.Client, auditLog *audit.Log, logger *logging.Logger) *Service {
	return &Service{
		db:     db,
		auth:   db.Auth().Admin(),
		audit:  auditLog,
		logger: logger,
	}
}

// IsActiveAdmin reports whether userID holds an active platform admin role
// that may provision users (super_admin or admin).
func (s *Service) IsActiveAdmin(ctx context.Context, userID string) (bool, error) {
	resp, err := s.db.From("appmaster_admins").
		Select("admin_role").
		Eq("user_id", userID).
		Eq("is_active", true).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return false, errors.Upstream("admin check failed", err)
	}
	if err := resp.Err(); err != nil {
		return false, errors.Upstream("admin check failed", err)
	}

	rows := gjson.ParseBytes(resp.Body).Array()
	if len(rows) == 0 {
		return false, nil
	}
	role := rows[0].Get("admin_role").String()
	return role == "super_admin" || role == "admin", nil
}

// CreateUserParams describes an organization member to provision.
type CreateUserParams struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	OrganisationID string `json:"organisation_id"`
}

func (p CreateUserParams) validate() error {
	if p.Name == "" || p.Email == "" || p.Password == "" || p.Role == "" || p.OrganisationID == "" {
		return errors.Validation("missing required fields: name, email, password, role, organisation_id")
	}
	switch p.Role {
	case "admin", "editor", "viewer":
		return nil
	default:
		return errors.Validation("invalid role, must be admin, editor, or viewer")
	}
}

// CreatedUser is the provisioning result.
type CreatedUser struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	OrganisationID string `json:"organisation_id"`
	Role           string `json:"role"`
}

// CreateOrganizationUser provisions an auth identity plus its directory row.
// Orphans from previously failed attempts — a directory row whose auth
// identity is gone, or an auth identity with no directory row — are removed
// before creating, so a retry after a partial failure succeeds. If the
// directory insert fails, the freshly created auth identity is deleted to
// avoid leaving a new orphan behind.
func (s *Service) CreateOrganizationUser(ctx context.Context, actorID string, params CreateUserParams) (*CreatedUser, error) {
	ok, err := s.IsActiveAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Forbidden("not a platform admin")
	}

	if err := params.validate(); err != nil {
		return nil, err
	}

	log := s.logger.WithFields(map[string]interface{}{
		"email": params.Email,
		"org":   params.OrganisationID,
	})

	if err := s.clearStaleDirectoryRow(ctx, params, log); err != nil {
		return nil, err
	}
	if err := s.clearStaleAuthUser(ctx, params, log); err != nil {
		return nil, err
	}

	authUser, err := s.auth.CreateUser(ctx, supa.CreateUserParams{
		Email:        params.Email,
		Password:     params.Password,
		EmailConfirm: true,
		UserMetadata: map[string]interface{}{
			"name":            params.Name,
			"organisation_id": params.OrganisationID,
		},
	})
	if err != nil {
		return nil, errors.Upstream("failed to create auth user", err)
	}

	insert := map[string]interface{}{
		"auth_user_id":    authUser.ID,
		"name":            params.Name,
		"email":           params.Email,
		"organisation_id": params.OrganisationID,
		"user_type":       "organization",
		"role":            params.Role,
		"status":          "active",
	}
	resp, err := s.db.From("users").ExecuteInsert(ctx, insert)
	if err == nil {
		err = resp.Err()
	}
	if err != nil {
		// Roll back the auth identity so the email is not left half-created.
		if delErr := s.auth.DeleteUser(ctx, authUser.ID); delErr != nil {
			log.WithError(delErr).Error("rollback of auth user failed")
		}
		return nil, errors.Upstream("failed to create user record", err)
	}

	log.WithField("user_id", authUser.ID).Info("organization user provisioned")
	s.audit.Record(audit.Entry{
		Action:   audit.ActionUserProvision,
		ActorID:  actorID,
		TargetID: authUser.ID,
		Tenant:   params.OrganisationID,
		Outcome:  "created",
	})

	return &CreatedUser{
		ID:             authUser.ID,
		Email:          authUser.Email,
		Name:           params.Name,
		OrganisationID: params.OrganisationID,
		Role:           params.Role,
	}, nil
}

// clearStaleDirectoryRow handles a users row whose auth identity vanished.
// A row with a live identity is a true duplicate and aborts provisioning.
func (s *Service) clearStaleDirectoryRow(ctx context.Context, params CreateUserParams, log *logging.Logger) error {
	resp, err := s.db.From("users").
		Select("id,email,organisation_id,auth_user_id").
		ILike("email", params.Email).
		Eq("organisation_id", params.OrganisationID).
		Execute(ctx)
	if err != nil {
		return errors.Upstream("existing user check failed", err)
	}
	if err := resp.Err(); err != nil {
		return errors.Upstream("existing user check failed", err)
	}

	rows := gjson.ParseBytes(resp.Body).Array()
	if len(rows) == 0 {
		return nil
	}
	row := rows[0]
	authID := row.Get("auth_user_id").String()

	authUser, err := s.auth.GetUserByID(ctx, authID)
	if err != nil {
		return errors.Upstream("auth user lookup failed", err)
	}
	if authUser != nil {
		return errors.Conflict("a user with this email already exists in this organization")
	}

	log.WithField("user_row", row.Get("id").String()).Info("removing orphaned user record")
	delResp, err := s.db.From("users").
		Eq("id", row.Get("id").String()).
		ExecuteDelete(ctx)
	if err == nil {
		err = delResp.Err()
	}
	if err != nil {
		return errors.Upstream("orphaned user cleanup failed", err)
	}
	return nil
}

// clearStaleAuthUser handles an auth identity that has no directory row in
// this organisation. An identity with a linked row is a true duplicate.
func (s *Service) clearStaleAuthUser(ctx context.Context, params CreateUserParams, log *logging.Logger) error {
	authUser, err := s.auth.FindUserByEmail(ctx, params.Email)
	if err != nil {
		return errors.Upstream("auth user lookup failed", err)
	}
	if authUser == nil {
		return nil
	}

	resp, err := s.db.From("users").
		Select("id").
		Eq("auth_user_id", authUser.ID).
		Eq("organisation_id", params.OrganisationID).
		Execute(ctx)
	if err != nil {
		return errors.Upstream("linked user check failed", err)
	}
	if err := resp.Err(); err != nil {
		return errors.Upstream("linked user check failed", err)
	}
	if len(gjson.ParseBytes(resp.Body).Array()) > 0 {
		return errors.Conflict("a user with this email already exists in this organization")
	}

	log.WithField("auth_user", authUser.ID).Info("removing orphaned auth user")
	if err := s.auth.DeleteUser(ctx, authUser.ID); err != nil {
		return errors.Upstream("orphaned auth user cleanup failed", err)
	}
	return nil
}

// RecentAudit returns the latest audit entries for the admin API.
func (s *Service) RecentAudit(ctx context.Context, actorID string, limit int) ([]audit.Entry, error) {
	ok, err := s.IsActiveAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Forbidden("not a platform admin")
	}
	return s.audit.Recent(limit), nil
}
