package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/danmuck/framelink/internal/origin"
	"github.com/danmuck/framelink/internal/protocol/session"
	"github.com/danmuck/framelink/internal/transport/legacy"
)

var (
	ErrMissingAddr     = errors.New("config: addr is required")
	ErrMissingOrigin   = errors.New("config: origin is required")
	ErrInvalidOrigin   = errors.New("config: invalid origin")
	ErrInvalidHash     = errors.New("config: whitelist entries must be hex sha1 digests")
	ErrNoHostTransport = errors.New("config: host_url or legacy candidates required")
	ErrHalfTLS         = errors.New("config: cert_file and key_file must be set together")
)

// HostConfig configures cmd/framehost.
type HostConfig struct {
	Name         string   `toml:"name"`
	Addr         string   `toml:"addr"`
	Origin       string   `toml:"origin"`
	CorsOrigins  []string `toml:"cors_origins"`
	Whitelist    []string `toml:"whitelist"`
	Origins      []string `toml:"origins"`
	OpenOrigins  bool     `toml:"open_origins"`
	ChannelPath  string   `toml:"channel_path"`
	ReceiverPath string   `toml:"receiver_path"`
	CertFile     string   `toml:"cert_file"`
	KeyFile      string   `toml:"key_file"`
}

// EmbeddedConfig configures cmd/framectl.
type EmbeddedConfig struct {
	Origin    string          `toml:"origin"`
	HostURL   string          `toml:"host_url"`
	Whitelist []string        `toml:"whitelist"`
	Origins   []string        `toml:"origins"`
	Legacy    LegacyConfig    `toml:"legacy"`
	Handshake HandshakeConfig `toml:"handshake"`
}

type LegacyConfig struct {
	Candidates   []string `toml:"candidates"`
	ReceiverPath string   `toml:"receiver_path"`
}

type HandshakeConfig struct {
	IntervalMS  int64   `toml:"interval_ms"`
	MaxAttempts int     `toml:"max_attempts"`
	Multiplier  float64 `toml:"multiplier"`
	MaxDelayMS  int64   `toml:"max_delay_ms"`
}

func DefaultHostConfig() HostConfig {
	return HostConfig{
		Name:         "framehost",
		Addr:         ":9000",
		CorsOrigins:  []string{"http://localhost:3000"},
		ChannelPath:  "/framelink/channel",
		ReceiverPath: legacy.DefaultReceiverPath,
	}
}

// LoadHostConfig reads path over DefaultHostConfig. Only keys present in the
// file override defaults.
func LoadHostConfig(path string) (HostConfig, error) {
	cfg := DefaultHostConfig()
	var raw HostConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return HostConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("origin") {
		cfg.Origin = strings.TrimSpace(raw.Origin)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("whitelist") {
		cfg.Whitelist = normalizeList(raw.Whitelist)
	}
	if meta.IsDefined("origins") {
		cfg.Origins = normalizeList(raw.Origins)
	}
	if meta.IsDefined("open_origins") {
		cfg.OpenOrigins = raw.OpenOrigins
	}
	if meta.IsDefined("channel_path") {
		cfg.ChannelPath = strings.TrimSpace(raw.ChannelPath)
	}
	if meta.IsDefined("receiver_path") {
		cfg.ReceiverPath = strings.TrimSpace(raw.ReceiverPath)
	}
	if meta.IsDefined("cert_file") {
		cfg.CertFile = strings.TrimSpace(raw.CertFile)
	}
	if meta.IsDefined("key_file") {
		cfg.KeyFile = strings.TrimSpace(raw.KeyFile)
	}
	if err := ValidateHostConfig(cfg); err != nil {
		return HostConfig{}, err
	}
	return cfg, nil
}

func LoadEmbeddedConfig(path string) (EmbeddedConfig, error) {
	var cfg EmbeddedConfig
	if err := loadToml(path, &cfg); err != nil {
		return EmbeddedConfig{}, err
	}
	if cfg.Legacy.ReceiverPath == "" {
		cfg.Legacy.ReceiverPath = legacy.DefaultReceiverPath
	}
	if err := ValidateEmbeddedConfig(cfg); err != nil {
		return EmbeddedConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := gotoml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateHostConfig(cfg HostConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return ErrMissingAddr
	}
	if cfg.Origin != "" {
		if _, ok := origin.Normalize(cfg.Origin); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidOrigin, cfg.Origin)
		}
	}
	if err := validateWhitelist(cfg.Whitelist, cfg.Origins); err != nil {
		return err
	}
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return ErrHalfTLS
	}
	return nil
}

func ValidateEmbeddedConfig(cfg EmbeddedConfig) error {
	if strings.TrimSpace(cfg.Origin) == "" {
		return ErrMissingOrigin
	}
	if _, ok := origin.Normalize(cfg.Origin); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidOrigin, cfg.Origin)
	}
	if strings.TrimSpace(cfg.HostURL) == "" && len(cfg.Legacy.Candidates) == 0 {
		return ErrNoHostTransport
	}
	for i, candidate := range cfg.Legacy.Candidates {
		if err := legacy.ValidateAddress(candidate + cfg.Legacy.ReceiverPath); err != nil {
			return fmt.Errorf("legacy.candidates[%d] invalid: %w", i, err)
		}
	}
	if cfg.Handshake.MaxAttempts < 0 || cfg.Handshake.IntervalMS < 0 {
		return fmt.Errorf("config: handshake values must not be negative")
	}
	return validateWhitelist(cfg.Whitelist, cfg.Origins)
}

func validateWhitelist(hashes, origins []string) error {
	for i, h := range hashes {
		if !isSHA1Hex(strings.TrimSpace(h)) {
			return fmt.Errorf("%w: whitelist[%d]=%q", ErrInvalidHash, i, h)
		}
	}
	for i, o := range origins {
		if _, ok := origin.Normalize(o); !ok {
			return fmt.Errorf("%w: origins[%d]=%q", ErrInvalidOrigin, i, o)
		}
	}
	return nil
}

// WhitelistSet merges precomputed hashes with plain origins. OpenOrigins
// accepts every well-formed origin.
func (c HostConfig) WhitelistSet() *origin.Whitelist {
	if c.OpenOrigins {
		return origin.OpenWhitelist()
	}
	return buildWhitelist(c.Whitelist, c.Origins)
}

func (c EmbeddedConfig) WhitelistSet() *origin.Whitelist {
	if len(c.Whitelist) == 0 && len(c.Origins) == 0 {
		return nil
	}
	return buildWhitelist(c.Whitelist, c.Origins)
}

// SessionConfig maps the handshake table onto session settings; unset
// values keep session defaults.
func (c EmbeddedConfig) SessionConfig() session.Config {
	cfg := session.Config{
		MaxAttempts: c.Handshake.MaxAttempts,
		Backoff: session.BackoffConfig{
			InitialDelay: time.Duration(c.Handshake.IntervalMS) * time.Millisecond,
			Multiplier:   c.Handshake.Multiplier,
			MaxDelay:     time.Duration(c.Handshake.MaxDelayMS) * time.Millisecond,
		},
	}
	return cfg.WithDefaults()
}

func buildWhitelist(hashes, origins []string) *origin.Whitelist {
	all := append([]string(nil), hashes...)
	for _, o := range origins {
		if h := origin.Hash(o); h != "" {
			all = append(all, h)
		}
	}
	return origin.NewWhitelist(all...)
}

func isSHA1Hex(s string) bool {
	if len(s) != 40 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
