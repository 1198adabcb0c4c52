package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/luckbet/luckbet-go/internal/api"
	"github.com/luckbet/luckbet-go/internal/pkg/retry"
)

// End reasons reported to the server.
const (
	ReasonLogout   = "logout"
	ReasonShutdown = "shutdown"
)

// Config wires a presence session.
type Config struct {
	DeviceID   string
	Interval   time.Duration
	GeoTimeout time.Duration
	IPLocator  IPLocator   // optional
	GPS        GPSProvider // optional
}

// Session keeps one live presence record on the server via periodic
// heartbeats. Location lookups are best-effort: a slow or denied
// provider degrades the heartbeat to ids only, never blocks or fails
// it.
type Session struct {
	client     *api.Client
	deviceID   string
	sessionID  string
	interval   time.Duration
	geoTimeout time.Duration
	ip         IPLocator
	gps        GPSProvider

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewSession(client *api.Client, cfg Config) *Session {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	geoTimeout := cfg.GeoTimeout
	if geoTimeout <= 0 {
		geoTimeout = 5 * time.Second
	}
	return &Session{
		client:     client,
		deviceID:   cfg.DeviceID,
		sessionID:  NewSessionID(),
		interval:   interval,
		geoTimeout: geoTimeout,
		ip:         cfg.IPLocator,
		gps:        cfg.GPS,
	}
}

func (s *Session) SessionID() string { return s.sessionID }

func (s *Session) DeviceID() string { return s.deviceID }

// Start sends an immediate heartbeat and then one per interval until
// End or ctx cancellation. Starting twice is a no-op.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)

	s.beat(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.beat(ctx)
		}
	}
}

func (s *Session) beat(ctx context.Context) {
	req := api.HeartbeatRequest{
		SessionID: s.sessionID,
		DeviceID:  s.deviceID,
		IPData:    s.lookupIP(ctx),
		GPSData:   s.lookupGPS(ctx),
	}

	err := retry.DoErr(ctx, "presence/heartbeat", retry.APIConfig(), func(ctx context.Context) error {
		return s.client.Heartbeat(ctx, req)
	})
	if err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Str("session_id", s.sessionID).Msg("presence heartbeat failed")
	}
}

func (s *Session) lookupIP(ctx context.Context) *api.GeoIPData {
	if s.ip == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.geoTimeout)
	defer cancel()

	data, err := s.ip.Locate(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("geoip lookup unavailable")
		return nil
	}
	return &data
}

func (s *Session) lookupGPS(ctx context.Context) *api.GPSData {
	if s.gps == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.geoTimeout)
	defer cancel()

	pos, err := s.gps.Position(ctx)
	if err != nil {
		if !errors.Is(err, ErrGPSDenied) {
			log.Debug().Err(err).Msg("gps lookup unavailable")
		}
		return nil
	}
	return &pos
}

// End stops the heartbeat loop and reports the session closed. The
// report is best-effort: the server expires silent sessions on its
// own, so a failed close is only logged.
func (s *Session) End(ctx context.Context, reason string) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	if err := s.client.EndPresence(ctx, s.sessionID, reason); err != nil {
		log.Warn().Err(err).Str("reason", reason).Msg("presence end report failed")
	}
}
