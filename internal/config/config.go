// Package config loads the rvwatch configuration from an optional TOML file and RVWATCH_ environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/nshafer/rvlink"
	"github.com/nshafer/rvlink/internal/logging"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "RVWATCH_"

// Config holds everything rvwatch needs to follow a vehicle server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Reconnect ReconnectConfig `koanf:"reconnect"`
	Transport TransportConfig `koanf:"transport"`
	Logging   LoggingConfig   `koanf:"logging"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

type ServerConfig struct {
	// URL is the HTTP(S) base URL of the vehicle server, or its ws(s) event endpoint
	URL    string `koanf:"url"`
	APIKey string `koanf:"api_key"`
}

type ReconnectConfig struct {
	MaxAttempts  int           `koanf:"max_attempts"`
	InitialDelay time.Duration `koanf:"initial_delay"`
	MaxDelay     time.Duration `koanf:"max_delay"`
}

type TransportConfig struct {
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	PingInterval     time.Duration `koanf:"ping_interval"`
	PongWait         time.Duration `koanf:"pong_wait"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, console or plain
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// Load reads the file at configPath, if configPath is not empty, then applies environment variables and
// finally overrides (keyed like "server.url") on top of the defaults and validates the result.
func Load(configPath string, overrides map[string]any) (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	fromEnv := koanf.New(".")
	if err := fromEnv.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	for _, key := range fromEnv.Keys() {
		if !slices.Contains(settings, key) {
			return nil, fmt.Errorf("unknown setting %q from a %s environment variable", key, EnvPrefix)
		}
	}
	if err := k.Merge(fromEnv); err != nil {
		return nil, fmt.Errorf("failed to apply environment variables: %w", err)
	}

	for key, value := range overrides {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", key, err)
		}
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// settings holds the key of every setting in Config, like "reconnect.max_attempts".
var settings = settingKeys(reflect.TypeOf(Config{}), "")

func settingKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := prefix + field.Tag.Get("koanf")
		if field.Type.Kind() == reflect.Struct {
			keys = append(keys, settingKeys(field.Type, key+".")...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// envKey maps RVWATCH_SERVER_URL to server.url and RVWATCH_RECONNECT_MAX_ATTEMPTS to reconnect.max_attempts.
// Names that match no setting fall back to a double underscore standing for a literal one, so
// RVWATCH_RECONNECT_MAX__ATTEMPTS is reconnect.max_attempts as well.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))

	if s == "api_key" {
		return "server.api_key"
	}
	for _, key := range settings {
		if strings.ReplaceAll(key, ".", "_") == s {
			return key
		}
	}

	s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
	s = strings.ReplaceAll(s, "_", ".")
	s = strings.ReplaceAll(s, "%UNDERSCORE%", "_")
	return s
}

func defaultConfig() *Config {
	return &Config{
		Reconnect: ReconnectConfig{
			MaxAttempts:  rvlink.MaxReconnectAttempts,
			InitialDelay: rvlink.InitialReconnectDelay,
			MaxDelay:     rvlink.MaxReconnectDelay,
		},
		Transport: TransportConfig{
			HandshakeTimeout: 10 * time.Second,
			PingInterval:     15 * time.Second,
			PongWait:         35 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9091",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.max_attempts must be >= 0, got %d", c.Reconnect.MaxAttempts)
	}
	if c.Reconnect.InitialDelay <= 0 {
		return fmt.Errorf("reconnect.initial_delay must be positive, got %s", c.Reconnect.InitialDelay)
	}
	if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		return fmt.Errorf("reconnect.max_delay (%s) must not be below reconnect.initial_delay (%s)",
			c.Reconnect.MaxDelay, c.Reconnect.InitialDelay)
	}

	if c.Transport.HandshakeTimeout <= 0 {
		return fmt.Errorf("transport.handshake_timeout must be positive, got %s", c.Transport.HandshakeTimeout)
	}
	if c.Transport.PingInterval < 0 || c.Transport.PongWait < 0 {
		return errors.New("transport.ping_interval and transport.pong_wait must not be negative")
	}
	if c.Transport.PingInterval > 0 && c.Transport.PongWait > 0 && c.Transport.PongWait <= c.Transport.PingInterval {
		return fmt.Errorf("transport.pong_wait (%s) must be longer than transport.ping_interval (%s)",
			c.Transport.PongWait, c.Transport.PingInterval)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "plain":
	default:
		return fmt.Errorf("logging.format must be json, console or plain, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.URL == "" {
		return errors.New("server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url is invalid: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("server.url must use http, https, ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server.url %q has no host", c.Server.URL)
	}
	return nil
}

// EndPoint is the websocket URL of the event stream.
func (c *Config) EndPoint() string {
	return rvlink.WebSocketURL(c.Server.URL)
}
