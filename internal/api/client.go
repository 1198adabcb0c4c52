// Package api is the REST boundary of the client core. Methods return
// plain (value, error) pairs; every failure is an *Error so callers
// can branch on Kind without touching HTTP details. Retry and breaker
// wrapping is the call site's choice via internal/pkg/retry.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// TokenProvider supplies the bearer token for authenticated calls. An
// empty token means the call goes out unauthenticated.
type TokenProvider interface {
	Token() string
}

// StaticToken is a TokenProvider around a fixed string.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Client is the luckbet REST client.
type Client struct {
	baseURL string
	tokens  TokenProvider
	ua      string
	http    *http.Client
}

// NewClient creates a REST client for the given base URL.
func NewClient(baseURL string, tokens TokenProvider, timeout time.Duration, ua string) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		ua:      ua,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

type wireError struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c == nil || c.http == nil {
		return &Error{Message: "client is nil"}
	}
	if strings.TrimSpace(c.baseURL) == "" {
		return &Error{Message: "base_url is empty"}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Message: fmt.Sprintf("encode request: %v", err), cause: err}
		}
		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Message: fmt.Sprintf("build request: %v", err), cause: err}
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokenValue(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyRequestError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err), cause: err}
		}
		return nil
	}

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return &Error{Status: resp.StatusCode, Message: "<failed to read body>", cause: readErr}
	}

	var we wireError
	if err := json.Unmarshal(raw, &we); err == nil && (we.Error != "" || we.Message != "") {
		return &Error{Status: resp.StatusCode, Code: we.Error, Message: we.Message}
	}
	return &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}

func (c *Client) tokenValue() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// Authenticated reports whether the client currently holds a token.
func (c *Client) Authenticated() bool {
	return c.tokenValue() != ""
}
