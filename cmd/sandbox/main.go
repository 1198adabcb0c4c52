package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/luckbet/luckbet-go/internal/config"
	"github.com/luckbet/luckbet-go/internal/pkg/logger"
	"github.com/luckbet/luckbet-go/internal/sandbox"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	srv, err := sandbox.NewServer(cfg.JWTSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("sandbox init failed")
	}

	httpServer := &http.Server{
		Addr:    cfg.SandboxAddr,
		Handler: srv.Router(cfg.AllowedOrigins),
	}

	go func() {
		log.Info().Str("addr", cfg.SandboxAddr).Msg("sandbox listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("sandbox server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
