package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration, loaded once at startup from
// file + environment. Env keys follow GUILDVIEW_SECTION_FIELD.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Store     StoreConfig     `mapstructure:"store"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Export    ExportConfig    `mapstructure:"export"`
	Announce  AnnounceConfig  `mapstructure:"announce"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`

	v *viper.Viper
}

type ServiceConfig struct {
	Env string `mapstructure:"env"` // "dev" | "prod"
}

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// AssetsDir, when set, is served at / for the panel's static frontend.
	AssetsDir string `mapstructure:"assets_dir"`
}

type DiscordConfig struct {
	// Token is the bot token. Empty disables the upstream listener entirely:
	// the panel still serves whatever the mirror/archive already hold.
	Token string `mapstructure:"token"`
	// Backfill allows deep-history reads to call the platform REST API.
	Backfill bool `mapstructure:"backfill"`
}

type RelayConfig struct {
	SessionQueue     int           `mapstructure:"session_queue"`
	DrainTimeout     time.Duration `mapstructure:"drain_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	ControlRate      float64       `mapstructure:"control_rate"`
	ControlBurst     int           `mapstructure:"control_burst"`
	LongPollTimeout  time.Duration `mapstructure:"long_poll_timeout"`
	LongPollBatch    int           `mapstructure:"long_poll_batch"`
}

type AuthConfig struct {
	AllowAnonymous bool        `mapstructure:"allow_anonymous"`
	Tokens         []TokenRule `mapstructure:"tokens"`
}

// TokenRule provisions one access token and the visibility behind it.
type TokenRule struct {
	Token    string   `mapstructure:"token"`
	User     string   `mapstructure:"user"`
	Name     string   `mapstructure:"name"`
	Admin    bool     `mapstructure:"admin"`
	Guilds   []string `mapstructure:"guilds"`
	Channels []string `mapstructure:"channels"`
}

type StoreConfig struct {
	// MessageWindow caps the in-memory timeline kept per channel.
	MessageWindow int `mapstructure:"message_window"`
}

type ArchiveConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DSN           string        `mapstructure:"dsn"`
	FlushSize     int           `mapstructure:"flush_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type ExportConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type AnnounceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Queue   string `mapstructure:"queue"`
}

type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // json | text
	// File switches output from stdout to a rotated file.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type MonitorConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Refresh time.Duration `mapstructure:"refresh"`
}

// LoadConfig reads configuration in ascending precedence: defaults, config
// file, environment. The --config_file flag is side-parsed with pflag so it
// works no matter which subcommand carries it.
func LoadConfig() (*Config, error) {
	v := viper.New()

	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {} // the CLI layer owns help output
	cfgFile := fs.String("config_file", "", "path to the configuration file")
	_ = fs.Parse(os.Args[1:])

	if *cfgFile != "" {
		v.SetConfigFile(*cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./conf")
		v.AddConfigPath("/etc/guildview")
	}

	v.SetEnvPrefix("GUILDVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file on the search path is fine (env-only deployments);
		// an explicitly named file must exist.
		var notFound viper.ConfigFileNotFoundError
		if *cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.env", "dev")

	v.SetDefault("http.addr", ":8181")
	v.SetDefault("http.read_timeout", "15s")
	// Must stay above relay.long_poll_timeout or polls die mid-wait.
	v.SetDefault("http.write_timeout", "60s")
	v.SetDefault("http.idle_timeout", "120s")

	v.SetDefault("discord.backfill", true)

	v.SetDefault("relay.session_queue", 256)
	v.SetDefault("relay.drain_timeout", "5s")
	v.SetDefault("relay.handshake_timeout", "10s")
	v.SetDefault("relay.sweep_interval", "30s")
	v.SetDefault("relay.ping_interval", "45s")
	v.SetDefault("relay.write_timeout", "10s")
	v.SetDefault("relay.control_rate", 5.0)
	v.SetDefault("relay.control_burst", 10)
	v.SetDefault("relay.long_poll_timeout", "30s")
	v.SetDefault("relay.long_poll_batch", 15)

	v.SetDefault("auth.allow_anonymous", false)

	v.SetDefault("store.message_window", 512)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.flush_size", 64)
	v.SetDefault("archive.flush_interval", "3s")

	v.SetDefault("export.enabled", false)
	v.SetDefault("export.exchange", "guildview.events")

	v.SetDefault("announce.enabled", false)
	v.SetDefault("announce.queue", "guildview.announce")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 14)

	v.SetDefault("monitor.url", "http://localhost:8181")
	v.SetDefault("monitor.refresh", "2s")
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr must not be empty")
	}
	if c.Relay.SessionQueue <= 0 {
		return fmt.Errorf("relay.session_queue must be positive, got %d", c.Relay.SessionQueue)
	}
	if c.Store.MessageWindow <= 0 {
		return fmt.Errorf("store.message_window must be positive, got %d", c.Store.MessageWindow)
	}
	if c.Archive.Enabled && c.Archive.DSN == "" {
		return fmt.Errorf("archive.dsn is required when the archive is enabled")
	}
	if c.Export.Enabled && c.Export.URL == "" {
		return fmt.Errorf("export.url is required when the export feed is enabled")
	}
	if c.Announce.Enabled && c.Announce.URL == "" {
		return fmt.Errorf("announce.url is required when announcements are enabled")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	if !c.Auth.AllowAnonymous && len(c.Auth.Tokens) == 0 {
		return fmt.Errorf("auth: no tokens provisioned and anonymous access disabled; nobody could connect")
	}
	for i, rule := range c.Auth.Tokens {
		if rule.Token == "" {
			return fmt.Errorf("auth.tokens[%d]: empty token", i)
		}
	}
	return nil
}

// Watch re-reads and re-validates the file on every change and hands the
// fresh snapshot to the callback. Invalid edits are dropped, keeping the
// last good configuration in effect.
func (c *Config) Watch(onChange func(*Config)) {
	c.v.OnConfigChange(func(fsnotify.Event) {
		fresh := &Config{v: c.v}
		if err := c.v.Unmarshal(fresh); err != nil {
			return
		}
		if err := fresh.Validate(); err != nil {
			return
		}
		onChange(fresh)
	})
	c.v.WatchConfig()
}
