package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/framelink"
	"github.com/danmuck/framelink/internal/config"
	"github.com/danmuck/framelink/internal/events"
	"github.com/danmuck/framelink/internal/observability"
	"github.com/danmuck/framelink/internal/transport"
	"github.com/danmuck/framelink/internal/transport/channel"
	"github.com/danmuck/framelink/internal/transport/legacy"
	"github.com/rs/zerolog/log"
)

var ErrNotEstablished = errors.New("framectl: handshake did not complete")

func main() {
	logger := observability.InitLogger("framectl")
	configPath := flag.String("config", "cmd/framectl/config.toml", "embedded config path")
	target := flag.String("target", "log.info", "endpoint to call")
	payload := flag.String("payload", "{}", "JSON object payload")
	useLegacy := flag.Bool("legacy", false, "deliver through legacy frames instead of the channel")
	flag.Parse()

	cfg, err := config.LoadEmbeddedConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load embedded config")
	}
	p, err := parsePayload(*payload)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid payload")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	inbound := events.NewEmitter()
	opts := []framelink.Option{framelink.WithInbound(inbound), framelink.WithLogger(logger)}
	if *useLegacy || strings.TrimSpace(cfg.HostURL) == "" {
		opts = append(opts, framelink.WithFrames(legacy.HTTPFrames(nil, cfg.Origin)))
	} else {
		port, err := channel.Dial(ctx, cfg.HostURL, cfg.Origin, inbound)
		if err != nil {
			log.Fatal().Err(err).Str("host_url", cfg.HostURL).Msg("dial host failed")
		}
		defer port.Close()
		opts = append(opts, framelink.WithPort(port))
	}

	f, err := framelink.New(facadeConfig(cfg), opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build embedded context")
	}
	defer f.Close()

	if err := f.Send(*target, p); err != nil {
		fmt.Fprintf(os.Stderr, "framectl: %v\n", err)
		os.Exit(1)
	}
	if f.Transport() != transport.KindChannel {
		log.Info().Str("transport", f.Transport().String()).Str("target", *target).Msg("call sent")
		return
	}
	if err := waitDelivered(ctx, f, cfg.SessionConfig().Timeout()+time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "framectl: %v\n", err)
		os.Exit(1)
	}
	log.Info().Str("remote_origin", f.RemoteOrigin()).Str("target", *target).Msg("call delivered")
}

func parsePayload(raw string) (framelink.Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return framelink.Payload{}, nil
	}
	var p framelink.Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if p == nil {
		p = framelink.Payload{}
	}
	return p, nil
}

func facadeConfig(cfg config.EmbeddedConfig) framelink.Config {
	return framelink.Config{
		Role:      framelink.RoleEmbedded,
		Origin:    cfg.Origin,
		Whitelist: cfg.WhitelistSet(),
		Handshake: cfg.SessionConfig(),
		Legacy: framelink.LegacyConfig{
			Candidates:   cfg.Legacy.Candidates,
			ReceiverPath: cfg.Legacy.ReceiverPath,
		},
	}
}

type replayer interface {
	Replayed() <-chan struct{}
}

// waitDelivered blocks until the queued call has been posted to the host,
// ctx ends or timeout passes.
func waitDelivered(ctx context.Context, r replayer, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case <-r.Replayed():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-deadline.C:
		return ErrNotEstablished
	}
}
