package api

import (
	"context"
	"net/http"
	"time"
)

// GeoIPData is coarse location derived from the caller's public IP.
type GeoIPData struct {
	IP      string  `json:"ip"`
	City    string  `json:"city,omitempty"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
}

// GPSData is a precise position the user explicitly granted.
type GPSData struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Accuracy float64 `json:"accuracy,omitempty"`
}

// HeartbeatRequest keeps a presence session alive. Both location
// fields are optional.
type HeartbeatRequest struct {
	SessionID string     `json:"sessionId"`
	DeviceID  string     `json:"deviceId"`
	IPData    *GeoIPData `json:"ipData,omitempty"`
	GPSData   *GPSData   `json:"gpsData,omitempty"`
}

// ActiveSession is one live presence record.
type ActiveSession struct {
	SessionID string     `json:"sessionId"`
	DeviceID  string     `json:"deviceId"`
	Username  string     `json:"username"`
	IPData    *GeoIPData `json:"ipData,omitempty"`
	GPSData   *GPSData   `json:"gpsData,omitempty"`
	LastSeen  time.Time  `json:"lastSeen"`
}

// Heartbeat reports the session as alive.
func (c *Client) Heartbeat(ctx context.Context, req HeartbeatRequest) error {
	return c.do(ctx, http.MethodPost, "/presence/heartbeat", req, nil)
}

// EndPresence closes the session with a reason. Best-effort by
// contract: the server times out stale sessions regardless.
func (c *Client) EndPresence(ctx context.Context, sessionID, reason string) error {
	req := struct {
		SessionID string `json:"sessionId"`
		Reason    string `json:"reason"`
	}{sessionID, reason}
	return c.do(ctx, http.MethodPost, "/presence/end", req, nil)
}

// ActiveSessions lists live sessions (admin).
func (c *Client) ActiveSessions(ctx context.Context) ([]ActiveSession, error) {
	var res []ActiveSession
	err := c.do(ctx, http.MethodGet, "/presence/active", nil, &res)
	return res, err
}
