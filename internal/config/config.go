package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/vrc20/internal/protocol/codec"
	"github.com/danmuck/vrc20/internal/protocol/prefix"
	"github.com/danmuck/vrc20/internal/transport"
)

// Allocation is one genesis mint.
type Allocation struct {
	To     codec.Address
	Amount codec.U256
}

// TokenConfig describes the token served by the daemon.
type TokenConfig struct {
	Name     string
	Symbol   string
	Decimals uint8
	Genesis  []Allocation
}

// DaemonConfig is the resolved vrc20d configuration.
type DaemonConfig struct {
	Token          TokenConfig
	ListenAddr     string
	GatewayEnabled bool
	GatewayAddr    string
	LogLevel       string
	Transport      transport.Config
}

// ClientConfig is the resolved vrc20ctl configuration.
type ClientConfig struct {
	Addr      string
	Caller    codec.Address
	Timeout   time.Duration
	Transport transport.Config
}

func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		Token: TokenConfig{
			Name:     "Vara Token",
			Symbol:   "VARA",
			Decimals: 12,
		},
		ListenAddr:     "127.0.0.1:7020",
		GatewayEnabled: true,
		GatewayAddr:    "127.0.0.1:7021",
		LogLevel:       "info",
		Transport:      transport.DefaultConfig(),
	}
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Addr:      "127.0.0.1:7020",
		Timeout:   10 * time.Second,
		Transport: transport.DefaultConfig(),
	}
}

type allocationFile struct {
	To     string `toml:"to"`
	Amount string `toml:"amount"`
}

type tokenFile struct {
	Name     string           `toml:"name"`
	Symbol   string           `toml:"symbol"`
	Decimals int              `toml:"decimals"`
	Genesis  []allocationFile `toml:"genesis"`
}

type serverFile struct {
	Listen          string `toml:"listen"`
	IdleTimeout     string `toml:"idle_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	MaxPayloadBytes int64  `toml:"max_payload_bytes"`
}

type gatewayFile struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

type logFile struct {
	Level string `toml:"level"`
}

type daemonFile struct {
	Token   tokenFile   `toml:"token"`
	Server  serverFile  `toml:"server"`
	Gateway gatewayFile `toml:"gateway"`
	Log     logFile     `toml:"log"`
}

type clientFile struct {
	Addr               string `toml:"addr"`
	Caller             string `toml:"caller"`
	Timeout            string `toml:"timeout"`
	ConnectTimeout     string `toml:"connect_timeout"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
}

// LoadDaemonConfig reads path over DefaultDaemonConfig. Keys absent from
// the file keep their defaults.
func LoadDaemonConfig(path string) (DaemonConfig, error) {
	var raw daemonFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return DaemonConfig{}, fmt.Errorf("load daemon config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return DaemonConfig{}, fmt.Errorf("daemon config (%s): unknown key %q", path, undecoded[0].String())
	}
	cfg, err := resolveDaemon(raw, meta)
	if err != nil {
		return DaemonConfig{}, fmt.Errorf("daemon config (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return DaemonConfig{}, fmt.Errorf("daemon config (%s): %w", path, err)
	}
	return cfg, nil
}

func resolveDaemon(raw daemonFile, meta toml.MetaData) (DaemonConfig, error) {
	cfg := DefaultDaemonConfig()

	if meta.IsDefined("token", "name") {
		cfg.Token.Name = strings.TrimSpace(raw.Token.Name)
	}
	if meta.IsDefined("token", "symbol") {
		cfg.Token.Symbol = strings.TrimSpace(raw.Token.Symbol)
	}
	if meta.IsDefined("token", "decimals") {
		if raw.Token.Decimals < 0 || raw.Token.Decimals > 255 {
			return DaemonConfig{}, fmt.Errorf("token.decimals out of range: %d", raw.Token.Decimals)
		}
		cfg.Token.Decimals = uint8(raw.Token.Decimals)
	}
	for i, entry := range raw.Token.Genesis {
		to, err := codec.ParseAddress(strings.TrimSpace(entry.To))
		if err != nil {
			return DaemonConfig{}, fmt.Errorf("token.genesis[%d].to: %w", i, err)
		}
		amount, err := codec.ParseU256(entry.Amount)
		if err != nil {
			return DaemonConfig{}, fmt.Errorf("token.genesis[%d].amount: %w", i, err)
		}
		cfg.Token.Genesis = append(cfg.Token.Genesis, Allocation{To: to, Amount: amount})
	}

	if meta.IsDefined("server", "listen") {
		cfg.ListenAddr = strings.TrimSpace(raw.Server.Listen)
	}
	if meta.IsDefined("server", "idle_timeout") {
		d, err := parseDuration("server.idle_timeout", raw.Server.IdleTimeout)
		if err != nil {
			return DaemonConfig{}, err
		}
		cfg.Transport.IdleTimeout = d
	}
	if meta.IsDefined("server", "write_timeout") {
		d, err := parseDuration("server.write_timeout", raw.Server.WriteTimeout)
		if err != nil {
			return DaemonConfig{}, err
		}
		cfg.Transport.WriteTimeout = d
	}
	if meta.IsDefined("server", "max_payload_bytes") {
		if raw.Server.MaxPayloadBytes <= 0 {
			return DaemonConfig{}, fmt.Errorf("server.max_payload_bytes must be positive")
		}
		cfg.Transport.Limits.MaxPayloadBytes = uint64(raw.Server.MaxPayloadBytes)
	}

	if meta.IsDefined("gateway", "enabled") {
		cfg.GatewayEnabled = raw.Gateway.Enabled
	}
	if meta.IsDefined("gateway", "listen") {
		cfg.GatewayAddr = strings.TrimSpace(raw.Gateway.Listen)
	}
	if meta.IsDefined("log", "level") {
		cfg.LogLevel = strings.TrimSpace(raw.Log.Level)
	}
	return cfg, nil
}

// LoadClientConfig reads path over DefaultClientConfig.
func LoadClientConfig(path string) (ClientConfig, error) {
	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config (%s): %w", path, err)
	}
	cfg := DefaultClientConfig()
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("caller") {
		caller, err := codec.ParseAddress(strings.TrimSpace(raw.Caller))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("client config (%s): caller: %w", path, err)
		}
		cfg.Caller = caller
	}
	if meta.IsDefined("timeout") {
		d, err := parseDuration("timeout", raw.Timeout)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("client config (%s): %w", path, err)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("connect_timeout") {
		d, err := parseDuration("connect_timeout", raw.ConnectTimeout)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("client config (%s): %w", path, err)
		}
		cfg.Transport.ConnectTimeout = d
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.Transport.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, fmt.Errorf("client config (%s): %w", path, err)
	}
	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func (c DaemonConfig) Validate() error {
	if c.Token.Name == "" {
		return fmt.Errorf("token.name is required")
	}
	if c.Token.Symbol == "" {
		return fmt.Errorf("token.symbol is required")
	}
	limit := c.Transport.Limits.MaxPayloadBytes
	if n := stringResponseLen(c.Token.Name); !codec.FitsString(c.Token.Name) || n > limit {
		return fmt.Errorf("token.name response needs %d bytes, server.max_payload_bytes is %d", n, limit)
	}
	if n := stringResponseLen(c.Token.Symbol); !codec.FitsString(c.Token.Symbol) || n > limit {
		return fmt.Errorf("token.symbol response needs %d bytes, server.max_payload_bytes is %d", n, limit)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.GatewayEnabled && c.GatewayAddr == "" {
		return fmt.Errorf("gateway.listen is required when the gateway is enabled")
	}
	if c.GatewayEnabled && c.GatewayAddr == c.ListenAddr {
		return fmt.Errorf("gateway.listen must differ from server.listen")
	}
	return nil
}

// stringResponseLen is the encoded size of a name or symbol response.
func stringResponseLen(s string) uint64 {
	return uint64(prefix.PayloadOffset + codec.StringHeaderLen + len(s))
}

func (c ClientConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Transport.MaxConnectAttempts < 1 {
		return fmt.Errorf("max_connect_attempts must be at least 1")
	}
	return nil
}
