package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/app"
	"github.com/snappy-loop/skynet/internal/auth"
	"github.com/snappy-loop/skynet/internal/config"
	"github.com/snappy-loop/skynet/internal/handlers"
	"github.com/snappy-loop/skynet/internal/mcpserver"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to load .env")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadWithFile(os.Getenv("SKYNET_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting Skynet desk")

	links := &handlers.NarrationLinks{}
	startCtx, startCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	a, err := app.New(startCtx, cfg, app.Options{OnNarrationURL: links.Set})
	startCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	var health handlers.HealthChecker
	if a.DB != nil {
		health = a.DB
	}
	h := handlers.NewHandler(a.Balancer, a.Chat, a.Narrator, links, health, cfg.RequestTimeout)
	// MCP clients get their own view so tool calls never clobber the desk.
	h.MountMCP(mcpserver.NewServer(a.NewBalancer()).Handler())
	deskAuth := auth.NewDeskAuth(cfg.DeskAPIKeyHash)

	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     h.Router(deskAuth.Middleware),
		ReadTimeout: 15 * time.Second,
		// Balancing waits on the model; WebSockets manage their own deadlines.
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Bool("auth", deskAuth.Enabled()).Msg("Desk listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down desk...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Desk exited")
}
