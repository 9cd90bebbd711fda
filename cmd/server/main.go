package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/huddle/internal/adapters/http"
	"github.com/dkeye/huddle/internal/adapters/rtc"
	wsignal "github.com/dkeye/huddle/internal/adapters/signal"
	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Logger first so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		log.Warn().Err(err).Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
	} else {
		zerolog.SetGlobalLevel(lvl)
	}

	rooms, err := app.NewRoomManager(cfg.DefaultRooms)
	if err != nil {
		log.Fatal().Err(err).Msg("room pool")
	}
	engine, err := rtc.NewEngine(ctx, rtc.Config{
		ICEServers:      cfg.RTC.ICEServers,
		UDPPortMin:      cfg.RTC.UDPPortMin,
		UDPPortMax:      cfg.RTC.UDPPortMax,
		AnnouncedIPs:    cfg.RTC.AnnouncedIPs,
		IncludeLoopback: cfg.RTC.IncludeLoopback,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("media engine")
	}

	hub := wsignal.NewHub()
	o := &orch.Orchestrator{
		Sessions:    app.NewRegistry(),
		Rooms:       rooms,
		Engine:      engine,
		Broadcaster: hub,
		Policy:      app.SimplePolicy{},
	}
	ctl := wsignal.NewController(o, hub, wsignal.Options{
		ReadLimit:          cfg.ReadLimit,
		PingPeriod:         cfg.PingPeriod,
		Buffer:             cfg.SignalBuffer,
		NegotiationTimeout: cfg.NegotiationTimeout,
		MessageRate:        cfg.MessageRate,
		MessageBurst:       cfg.MessageBurst,
	})

	r := router.SetupRouter(ctx, cfg, o, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Int("rooms", rooms.Len()).Msg("Huddle server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
