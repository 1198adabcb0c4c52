package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/luckbet/luckbet-go/internal/api"
	"github.com/luckbet/luckbet-go/internal/pkg/cache"
)

// ErrGPSDenied is returned by a GPSProvider when the user refused the
// position request. Callers treat it as "no GPS data", not a failure.
var ErrGPSDenied = errors.New("gps permission denied")

// IPLocator resolves the caller's coarse location from its public IP.
type IPLocator interface {
	Locate(ctx context.Context) (api.GeoIPData, error)
}

// GPSProvider supplies a precise position when the user granted one.
type GPSProvider interface {
	Position(ctx context.Context) (api.GPSData, error)
}

// HTTPIPLocator queries a public ip-api style endpoint returning
// {ip, city, country, lat, lon} as JSON.
type HTTPIPLocator struct {
	url  string
	http *http.Client
}

func NewHTTPIPLocator(url string, timeout time.Duration) *HTTPIPLocator {
	return &HTTPIPLocator{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

func (l *HTTPIPLocator) Locate(ctx context.Context) (api.GeoIPData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return api.GeoIPData{}, err
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return api.GeoIPData{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return api.GeoIPData{}, fmt.Errorf("geoip lookup: status %d", resp.StatusCode)
	}

	var data api.GeoIPData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return api.GeoIPData{}, fmt.Errorf("geoip lookup: %w", err)
	}
	return data, nil
}

// CachedIPLocator memoizes lookups so the heartbeat loop does not hit
// the geo endpoint on every tick. Public IPs change rarely; a short
// TTL keeps the data honest across network switches.
type CachedIPLocator struct {
	inner IPLocator
	cache *cache.TTL[string, api.GeoIPData]
}

func NewCachedIPLocator(inner IPLocator, ttl time.Duration) *CachedIPLocator {
	return &CachedIPLocator{
		inner: inner,
		cache: cache.NewTTL[string, api.GeoIPData](1, ttl, 0),
	}
}

func (l *CachedIPLocator) Locate(ctx context.Context) (api.GeoIPData, error) {
	if data, ok := l.cache.Get("self"); ok {
		return data, nil
	}
	data, err := l.inner.Locate(ctx)
	if err != nil {
		return api.GeoIPData{}, err
	}
	l.cache.Set("self", data)
	return data, nil
}
