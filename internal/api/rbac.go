package api

import (
	"context"
	"net/http"
)

// CreatedUser is the server's answer to a user-provisioning request.
type CreatedUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Role     string `json:"role"`
}

// CreateUser provisions a new account with the given role (admin).
func (c *Client) CreateUser(ctx context.Context, targetRole string) (CreatedUser, error) {
	req := struct {
		TargetRole string `json:"targetRole"`
	}{targetRole}

	var res CreatedUser
	err := c.do(ctx, http.MethodPost, "/rbac/users", req, &res)
	return res, err
}

// ChangePassword resets a managed user's password (admin).
func (c *Client) ChangePassword(ctx context.Context, userID, newPassword string) error {
	req := struct {
		NewPassword string `json:"newPassword"`
	}{newPassword}
	return c.do(ctx, http.MethodPatch, "/rbac/users/"+userID+"/password", req, nil)
}

// DeleteUser removes a managed user (admin).
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/rbac/users/"+userID, nil, nil)
}
