package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/framelink"
	"github.com/danmuck/framelink/internal/config"
	"github.com/danmuck/framelink/internal/events"
	"github.com/danmuck/framelink/internal/host"
	"github.com/danmuck/framelink/internal/observability"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	logger := observability.InitLogger("framehost")
	configPath := flag.String("config", "", "host config path (defaults when empty)")
	flag.Parse()

	cfg := config.DefaultHostConfig()
	if *configPath != "" {
		loaded, err := config.LoadHostConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load host config")
		}
		cfg = loaded
		log.Info().Str("path", *configPath).Msg("loaded host config")
	}

	inbound := events.NewEmitter()
	facade, err := framelink.New(facadeConfig(cfg), framelink.WithInbound(inbound), framelink.WithLogger(logger))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build host context")
	}
	defer facade.Close()
	registerDemoEndpoints(facade, logger)

	server, err := host.NewServer(serverConfig(cfg), inbound, facade.Dispatcher(), cfg.WhitelistSet())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build host server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("host stopped")
		os.Exit(1)
	}
}

func facadeConfig(cfg config.HostConfig) framelink.Config {
	self := cfg.Origin
	if self == "" {
		self = "http://localhost"
	}
	return framelink.Config{
		Role:      framelink.RoleHost,
		Origin:    self,
		Whitelist: cfg.WhitelistSet(),
	}
}

func serverConfig(cfg config.HostConfig) host.ServerConfig {
	return host.ServerConfig{
		ID:           cfg.Name,
		Addr:         cfg.Addr,
		CORSOrigins:  cfg.CorsOrigins,
		ChannelPath:  cfg.ChannelPath,
		ReceiverPath: cfg.ReceiverPath,
		Version:      framelink.Version,
		CertFile:     cfg.CertFile,
		KeyFile:      cfg.KeyFile,
	}
}

// registerDemoEndpoints exposes a log namespace so embedded contexts have
// something to call.
func registerDemoEndpoints(f *framelink.Facade, logger zerolog.Logger) {
	f.Register("log", map[string]func(framelink.Payload){
		"info": func(p framelink.Payload) {
			logger.Info().Fields(p).Msg("embedded log")
		},
		"warn": func(p framelink.Payload) {
			logger.Warn().Fields(p).Msg("embedded log")
		},
		"error": func(p framelink.Payload) {
			logger.Error().Fields(p).Msg("embedded log")
		},
	})
}
