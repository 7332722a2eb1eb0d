// Package config loads daemon configuration from an optional YAML file,
// COIN_ACCEPTOR_* environment variables, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/sweeney/coin-acceptor/internal/anim"
	"github.com/sweeney/coin-acceptor/internal/coin"
	"github.com/sweeney/coin-acceptor/internal/gpio"
)

// Config is the full daemon configuration.
type Config struct {
	Task      TaskConfig     `mapstructure:"task"`
	Watchdog  WatchdogConfig `mapstructure:"watchdog"`
	GPIO      GPIOConfig     `mapstructure:"gpio"`
	Coins     map[string]int `mapstructure:"coins"`
	Report    ReportConfig   `mapstructure:"report"`
	Display   DisplayConfig  `mapstructure:"display"`
	MQTT      MQTTConfig     `mapstructure:"mqtt"`
	HTTP      HTTPConfig     `mapstructure:"http"`
	Heartbeat time.Duration  `mapstructure:"heartbeat"`
	Log       LogConfig      `mapstructure:"log"`
}

// TaskConfig holds the orchestration timing.
type TaskConfig struct {
	Period       time.Duration `mapstructure:"period"`
	ReportPeriod time.Duration `mapstructure:"report_period"`
	FramePeriod  time.Duration `mapstructure:"frame_period"`
}

// WatchdogConfig selects the watchdog. An empty Device selects the
// software watchdog.
type WatchdogConfig struct {
	Deadline time.Duration `mapstructure:"deadline"`
	Device   string        `mapstructure:"device"`
}

// GPIOConfig maps input numbers and LEDs to line offsets.
type GPIOConfig struct {
	Chip      string `mapstructure:"chip"`
	Inputs    []int  `mapstructure:"inputs"` // index i = input number i+1
	LEDs      []int  `mapstructure:"leds"`
	ActiveLow bool   `mapstructure:"active_low"`
}

// ReportConfig names the two gating channels, which are also the channels
// reported to the dashboard.
type ReportConfig struct {
	Channels []string `mapstructure:"channels"`
}

// DisplayConfig is the identity written to the dashboard display.
type DisplayConfig struct {
	Customer string `mapstructure:"customer"`
	Serial   string `mapstructure:"serial"`
}

// MQTTConfig configures the telemetry session.
type MQTTConfig struct {
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	BufferSize     int           `mapstructure:"buffer_size"`
}

// HTTPConfig configures the local status page. Empty Addr disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string        `mapstructure:"level"`  // debug, info, warn, error
	Format string        `mapstructure:"format"` // console, json
	Output string        `mapstructure:"output"` // stdout, file, both
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures rotated file output.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxAge     int    `mapstructure:"max_age"`  // days
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Source reads configuration through viper.
type Source struct {
	v *viper.Viper
}

// Open prepares a Source. With an empty path, coin-acceptor.yaml is searched
// for in the working directory and /etc/coin-acceptor; a missing file then
// means defaults. An explicit path must exist.
func Open(path string) *Source {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("coin-acceptor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/coin-acceptor")
	}

	v.SetEnvPrefix("COIN_ACCEPTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return &Source{v: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("task.period", 50*time.Millisecond)
	v.SetDefault("task.report_period", 2000*time.Millisecond)
	v.SetDefault("task.frame_period", 50*time.Millisecond)

	v.SetDefault("watchdog.deadline", 15000*time.Millisecond)
	v.SetDefault("watchdog.device", "/dev/watchdog")

	v.SetDefault("gpio.chip", gpio.DefaultChip)
	v.SetDefault("gpio.inputs", gpio.DefaultInputs)
	v.SetDefault("gpio.leds", gpio.DefaultLEDs)
	v.SetDefault("gpio.active_low", false)

	for d, in := range coin.DefaultInputs() {
		v.SetDefault("coins."+string(d), in)
	}
	v.SetDefault("report.channels", []string{string(coin.Coin50Cent), string(coin.Coin1Eur)})

	v.SetDefault("display.customer", "")
	v.SetDefault("display.serial", "")

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "coin-acceptor")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "coin-acceptor")
	v.SetDefault("mqtt.publish_timeout", 40*time.Millisecond)
	v.SetDefault("mqtt.buffer_size", 64)

	v.SetDefault("http.addr", ":80")
	v.SetDefault("heartbeat", 15*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.path", "/var/log/coin-acceptor")
	v.SetDefault("log.file.filename", "coin-acceptor.log")
	v.SetDefault("log.file.max_size", 10)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.compress", true)
}

// Set overrides a key, taking precedence over file and environment.
// Used for command-line flags.
func (s *Source) Set(key string, value any) {
	s.v.Set(key, value)
}

// Load reads the file (if any), applies environment overrides, and
// validates the result.
func (s *Source) Load() (*Config, error) {
	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := s.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// File returns the config file in use, or "" when running on defaults.
func (s *Source) File() string {
	return s.v.ConfigFileUsed()
}

// Watch reloads the configuration whenever the file changes and passes the
// result to fn. It does nothing when no file is in use.
func (s *Source) Watch(fn func(*Config, error)) {
	if s.v.ConfigFileUsed() == "" {
		return
	}
	s.v.OnConfigChange(func(fsnotify.Event) {
		fn(s.Load())
	})
	s.v.WatchConfig()
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Task.Period <= 0 || c.Task.ReportPeriod <= 0 || c.Task.FramePeriod <= 0 {
		return errors.New("task periods must be positive")
	}
	if c.Watchdog.Deadline <= c.Task.Period {
		return fmt.Errorf("watchdog deadline %v must exceed task period %v", c.Watchdog.Deadline, c.Task.Period)
	}
	if len(c.GPIO.Inputs) != coin.NumInputs {
		return fmt.Errorf("gpio.inputs: need %d lines, got %d", coin.NumInputs, len(c.GPIO.Inputs))
	}
	if len(c.GPIO.LEDs) != anim.NumLEDs {
		return fmt.Errorf("gpio.leds: need %d lines, got %d", anim.NumLEDs, len(c.GPIO.LEDs))
	}
	if _, err := coin.NewBank(c.Inputs()); err != nil {
		return fmt.Errorf("coins: %w", err)
	}
	if _, err := c.ReportChannels(); err != nil {
		return err
	}
	return nil
}

// Inputs returns the denomination to input-number wiring.
func (c *Config) Inputs() map[coin.Denomination]int {
	m := make(map[coin.Denomination]int, len(c.Coins))
	for k, v := range c.Coins {
		m[coin.Denomination(k)] = v
	}
	return m
}

// ReportChannels returns the two gating channels.
func (c *Config) ReportChannels() ([2]coin.Denomination, error) {
	var out [2]coin.Denomination
	if len(c.Report.Channels) != 2 {
		return out, fmt.Errorf("report.channels: need exactly 2, got %d", len(c.Report.Channels))
	}
	for i, name := range c.Report.Channels {
		d := coin.Denomination(name)
		if !d.Valid() {
			return out, fmt.Errorf("report.channels: unknown channel %q", name)
		}
		if d.UnitValue() == 0 {
			return out, fmt.Errorf("report.channels: %s carries no monetary value", name)
		}
		out[i] = d
	}
	if out[0] == out[1] {
		return out, fmt.Errorf("report.channels: %s listed twice", out[0])
	}
	return out, nil
}
