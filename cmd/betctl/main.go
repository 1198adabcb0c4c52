package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/luckbet/luckbet-go/internal/api"
	"github.com/luckbet/luckbet-go/internal/config"
	"github.com/luckbet/luckbet-go/internal/domain/betslip"
	"github.com/luckbet/luckbet-go/internal/domain/presence"
	"github.com/luckbet/luckbet-go/internal/domain/wallet"
	"github.com/luckbet/luckbet-go/internal/gateway"
	"github.com/luckbet/luckbet-go/internal/pkg/cache"
	"github.com/luckbet/luckbet-go/internal/pkg/logger"
)

// betctl logs in against the sandbox (or a real backend), streams
// wallet pushes and places one demo accumulator. It exists to exercise
// the whole client stack from the command line.
func main() {
	username := flag.String("user", "alice", "login username")
	pass := flag.String("pass", "alice123", "login password")
	stake := flag.Float64("stake", 10, "demo accumulator stake")
	watch := flag.Bool("watch", false, "stay connected and stream pushes until interrupted")
	flag.Parse()

	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := api.NewSession()
	client := api.NewClient(cfg.APIURL, session, cfg.HTTPTimeout, "betctl/1.0")

	loginRes, err := client.Login(ctx, *username, *pass)
	if err != nil {
		log.Fatal().Err(err).Msg("login failed")
	}
	session.SetToken(loginRes.Token)
	log.Info().Str("username", session.Username()).Str("role", session.Role()).Msg("logged in")

	gw := gateway.New(gateway.Config{URL: cfg.WSURL, ReconnectDelay: cfg.ReconnectDelay})
	gw.Connect(loginRes.Token)
	defer gw.Disconnect()

	store := wallet.NewStore(client)
	defer store.Close()
	unbind := store.BindGateway(gw)
	defer unbind()

	unsub := store.Subscribe(func(snap wallet.Snapshot) {
		if snap.Loading {
			return
		}
		if snap.Err != nil {
			log.Warn().Err(snap.Err).Float64("stale_balance", snap.Balance).Msg("balance refresh degraded")
			return
		}
		log.Info().Float64("balance", snap.Balance).Msg("wallet updated")
	})
	defer unsub()

	if err := store.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial balance fetch failed")
	}
	if _, err := store.LoadTransactions(ctx, 1, cfg.TransactionPageSize); err != nil {
		log.Warn().Err(err).Msg("ledger fetch failed")
	}
	for _, tx := range store.Transactions() {
		log.Info().Str("id", tx.ID).Str("type", string(tx.Type)).Float64("amount", tx.Amount).Msg("ledger entry")
	}

	startPresence(ctx, cfg, client)

	legs := []betslip.Selection{
		{MatchID: "demo-1", MatchType: betslip.Prematch, MarketKey: "1x2", BetType: "home", Odds: 1.85, HomeTeam: "Astana", AwayTeam: "Kairat"},
		{MatchID: "demo-2", MatchType: betslip.Live, MarketKey: "total", BetType: "over", Odds: 2.1, HomeTeam: "Aktobe", AwayTeam: "Tobol"},
	}
	printMatchups(legs)

	slip := betslip.New(client, store, store)
	for _, leg := range legs {
		if err := slip.Add(leg); err != nil {
			log.Fatal().Err(err).Str("match", leg.MatchID).Msg("bad demo selection")
		}
	}
	slip.SetStake(*stake)
	log.Info().
		Float64("stake", slip.Stake()).
		Float64("odds", slip.AccumulatorOdds()).
		Float64("potential_win", slip.PotentialWin()).
		Msg("slip ready")

	if err := slip.PlaceBet(ctx); err != nil {
		log.Error().Err(err).Str("kind", string(api.KindOf(err))).Msg("placement failed, slip kept for retry")
	} else {
		log.Info().Float64("balance", store.Balance()).Msg("bet placed")
	}

	if !*watch {
		return
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("interrupted")
}

// startPresence begins the heartbeat loop when a stable device id can
// be established. Presence is optional for a CLI run.
func startPresence(ctx context.Context, cfg *config.Config, client *api.Client) {
	deviceID, err := presence.DeviceID(cfg.StateDir)
	if err != nil {
		log.Warn().Err(err).Msg("device id unavailable, presence disabled")
		return
	}

	var locator presence.IPLocator
	if cfg.GeoIPURL != "" {
		locator = presence.NewCachedIPLocator(presence.NewHTTPIPLocator(cfg.GeoIPURL, cfg.GeoTimeout), 10*time.Minute)
	}

	sess := presence.NewSession(client, presence.Config{
		DeviceID:   deviceID,
		Interval:   cfg.HeartbeatInterval,
		GeoTimeout: cfg.GeoTimeout,
		IPLocator:  locator,
	})
	sess.Start(ctx)
	log.Info().Str("session_id", sess.SessionID()).Str("device_id", deviceID).Msg("presence started")
}

// printMatchups renders the demo fixtures, memoizing crest URLs so
// repeated teams cost one lookup.
func printMatchups(legs []betslip.Selection) {
	logos := cache.NewLRU[string, string](32)
	for _, leg := range legs {
		fmt.Printf("  %s [%s]  vs  %s [%s]  @%.2f\n",
			leg.HomeTeam, logoURL(logos, leg.HomeTeam),
			leg.AwayTeam, logoURL(logos, leg.AwayTeam),
			leg.Odds)
	}
}

func logoURL(logos *cache.LRU[string, string], team string) string {
	if cached, ok := logos.Get(team); ok {
		return cached
	}
	built := "https://cdn.luckbet.example/logos/" + url.PathEscape(team) + ".png"
	logos.Set(team, built)
	return built
}
