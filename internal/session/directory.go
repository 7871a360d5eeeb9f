package session

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	supa "github.com/appmaster-cloud/gateway/supabase/client"
)

// SupabaseDirectory answers resolver lookups from the users, profiles and
// appmaster_admins tables.
type SupabaseDirectory struct {
	client *supa.Client
}

// NewSupabaseDirectory creates a directory backed by the given client.
func NewSupabaseDirectory(client *supa.Client) *SupabaseDirectory {
	return &SupabaseDirectory{client: client}
}

// RoleAssignment reads the users-table row keyed by the auth identity.
func (d *SupabaseDirectory) RoleAssignment(ctx context.Context, userID string) (*RoleRecord, error) {
	resp, err := d.client.From("users").
		Select("role,user_type,organisation_id").
		Eq("auth_user_id", userID).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("role assignment lookup: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	rows := gjson.ParseBytes(resp.Body).Array()
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	return &RoleRecord{
		Role:           row.Get("role").String(),
		UserType:       row.Get("user_type").String(),
		OrganisationID: row.Get("organisation_id").String(),
	}, nil
}

// ProfileAttributes reads the profiles-table row for the principal.
func (d *SupabaseDirectory) ProfileAttributes(ctx context.Context, userID string) (*Profile, error) {
	resp, err := d.client.From("profiles").
		Select("full_name,account_type").
		Eq("id", userID).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("profile lookup: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	rows := gjson.ParseBytes(resp.Body).Array()
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	return &Profile{
		DisplayName: row.Get("full_name").String(),
		AccountType: row.Get("account_type").String(),
	}, nil
}

// PlatformAdminRole returns the admin_role of an active appmaster_admins row,
// empty when the principal holds none.
func (d *SupabaseDirectory) PlatformAdminRole(ctx context.Context, userID string) (string, error) {
	resp, err := d.client.From("appmaster_admins").
		Select("admin_role").
		Eq("user_id", userID).
		Eq("is_active", true).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("platform admin lookup: %w", err)
	}
	if err := resp.Err(); err != nil {
		return "", err
	}

	rows := gjson.ParseBytes(resp.Body).Array()
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Get("admin_role").String(), nil
}
