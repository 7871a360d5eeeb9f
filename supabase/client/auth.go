package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Auth returns the GoTrue auth client.
func (c *Client) Auth() *AuthClient {
	return &AuthClient{client: c}
}

// AuthClient covers the GoTrue endpoints the gateway needs: token
// introspection for the logged-in user and the admin user lifecycle.
type AuthClient struct {
	client *Client
}

// User is a GoTrue user record.
type User struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	Phone            string                 `json:"phone,omitempty"`
	Role             string                 `json:"role,omitempty"`
	EmailConfirmedAt string                 `json:"email_confirmed_at,omitempty"`
	CreatedAt        string                 `json:"created_at,omitempty"`
	AppMetadata      map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata     map[string]interface{} `json:"user_metadata,omitempty"`
}

// GetUser resolves the user for an access token via /auth/v1/user.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.client.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", a.client.anonOrService())
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.client.do(req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var user User
	if err := resp.JSON(&user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &user, nil
}

// Admin returns the GoTrue admin API. Requires the service key.
func (a *AuthClient) Admin() *AdminClient {
	return &AdminClient{client: a.client}
}

// AdminClient wraps /auth/v1/admin endpoints. All calls run with the service
// role key and bypass RLS; callers are responsible for authorizing first.
type AdminClient struct {
	client *Client
}

// CreateUserParams describes a user to provision.
type CreateUserParams struct {
	Email        string                 `json:"email"`
	Password     string                 `json:"password"`
	EmailConfirm bool                   `json:"email_confirm"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// CreateUser provisions a new auth identity.
func (ac *AdminClient) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		ac.client.baseURL+"/auth/v1/admin/users", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	ac.setAdminHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ac.client.do(req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var user User
	if err := resp.JSON(&user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &user, nil
}

// GetUserByID fetches an auth identity by ID. A nil user with a nil error
// means the identity no longer exists (an orphan candidate).
func (ac *AdminClient) GetUserByID(ctx context.Context, id string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		ac.client.baseURL+"/auth/v1/admin/users/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	ac.setAdminHeaders(req)

	resp, err := ac.client.do(req)
	if err != nil {
		return nil, err
	}
	if resp.IsNotFound() {
		return nil, nil
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var user User
	if err := resp.JSON(&user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &user, nil
}

// FindUserByEmail looks up an auth identity by exact email. Returns nil when
// no identity matches.
func (ac *AdminClient) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		ac.client.baseURL+"/auth/v1/admin/users?email="+url.QueryEscape(email), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	ac.setAdminHeaders(req)

	resp, err := ac.client.do(req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var list struct {
		Users []User `json:"users"`
	}
	if err := resp.JSON(&list); err != nil {
		return nil, fmt.Errorf("unmarshal users: %w", err)
	}
	for i := range list.Users {
		if strings.EqualFold(list.Users[i].Email, email) {
			return &list.Users[i], nil
		}
	}
	return nil, nil
}

// DeleteUser removes an auth identity. Deleting an already-absent identity is
// not an error; rollback and orphan cleanup both rely on that.
func (ac *AdminClient) DeleteUser(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		ac.client.baseURL+"/auth/v1/admin/users/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	ac.setAdminHeaders(req)

	resp, err := ac.client.do(req)
	if err != nil {
		return err
	}
	if resp.IsNotFound() {
		return nil
	}
	return resp.Err()
}

func (ac *AdminClient) setAdminHeaders(req *http.Request) {
	req.Header.Set("apikey", ac.client.serviceKey)
	req.Header.Set("Authorization", "Bearer "+ac.client.serviceKey)
	req.Header.Set("Accept", "application/json")
}
