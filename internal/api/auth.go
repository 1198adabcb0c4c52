package api

import (
	"context"
	"net/http"
)

// LoginResult carries the bearer token and the identity the server
// resolved for it.
type LoginResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	req := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{username, password}

	var res LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/login", req, &res)
	return res, err
}
