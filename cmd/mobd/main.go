package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mobdhq/mobd/internal/bus"
	"github.com/mobdhq/mobd/internal/config"
	"github.com/mobdhq/mobd/internal/gateway"
	"github.com/mobdhq/mobd/internal/timer"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	events, err := setupBus(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up event bus")
	}
	defer events.Close()

	clock := clockwork.NewRealClock()
	store := timer.NewStore(clock, cfg.TimerTTL)
	engine := timer.NewEngine(store, events, clock)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go engine.Run(ctx)
	go store.RunSweeper(ctx, cfg.SweepInterval, func(id string) {
		events.Publish(bus.Event{Kind: bus.KindExpired, TimerID: id})
	})

	svc := gateway.NewService(gateway.ServiceConfig{
		Host:        cfg.Host,
		Port:        cfg.Port,
		SingleTimer: cfg.SingleTimer,
		Conn:        gateway.DefaultConnConfig(),
	}, store, engine, events, gateway.UUIDTokenSource{})

	go func() {
		if err := svc.Start(); err != nil {
			log.Error().Err(err).Msg("gateway failed")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("gateway shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}

func setupBus(cfg config.Config) (bus.Bus, error) {
	switch cfg.Bus {
	case "nats":
		natsCfg := bus.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		return bus.NewNATS(natsCfg)
	default:
		return bus.NewMemory(), nil
	}
}
