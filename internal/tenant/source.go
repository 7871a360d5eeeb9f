package tenant

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	supa "github.com/appmaster-cloud/gateway/supabase/client"
)

// SupabaseSource fetches organisation records from the organisations table.
type SupabaseSource struct {
	client *supa.Client
}

// NewSupabaseSource creates a source backed by the given client.
func NewSupabaseSource(client *supa.Client) *SupabaseSource {
	return &SupabaseSource{client: client}
}

// FetchOrganisation reads one organisation row including its tool list.
func (s *SupabaseSource) FetchOrganisation(ctx context.Context, id string) (*Organisation, error) {
	resp, err := s.client.From("organisations").
		Select("id,name,plan,active_tools").
		Eq("id", id).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch organisation: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	rows := gjson.ParseBytes(resp.Body).Array()
	if len(rows) == 0 {
		return nil, fmt.Errorf("organisation %s not found", id)
	}
	row := rows[0]

	org := &Organisation{
		ID:   row.Get("id").String(),
		Name: row.Get("name").String(),
		Plan: row.Get("plan").String(),
	}
	for _, tool := range row.Get("active_tools").Array() {
		org.ActiveTools = append(org.ActiveTools, tool.String())
	}
	return org, nil
}

// UpdateTools replaces the organisation's enabled tool list.
func (s *SupabaseSource) UpdateTools(ctx context.Context, id string, tools []string) error {
	if tools == nil {
		tools = []string{}
	}
	resp, err := s.client.From("organisations").
		Eq("id", id).
		ExecuteUpdate(ctx, map[string]interface{}{"active_tools": tools})
	if err != nil {
		return fmt.Errorf("update tools: %w", err)
	}
	return resp.Err()
}
