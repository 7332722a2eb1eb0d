package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/coin-acceptor/internal/coin"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "coin-acceptor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// chdir moves into dir so the default search path finds no config file.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Open("").Load()
	require.NoError(t, err)

	assert.Equal(t, 50*time.Millisecond, cfg.Task.Period)
	assert.Equal(t, 2000*time.Millisecond, cfg.Task.ReportPeriod)
	assert.Equal(t, 50*time.Millisecond, cfg.Task.FramePeriod)
	assert.Equal(t, 15000*time.Millisecond, cfg.Watchdog.Deadline)
	assert.Equal(t, "/dev/watchdog", cfg.Watchdog.Device)
	assert.Equal(t, []int{17, 27, 22, 5, 6, 13, 19}, cfg.GPIO.Inputs)
	assert.Equal(t, []int{12, 16, 20, 21}, cfg.GPIO.LEDs)
	assert.Equal(t, coin.DefaultInputs(), cfg.Inputs())
	assert.Equal(t, "coin-acceptor", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 40*time.Millisecond, cfg.MQTT.PublishTimeout)
	assert.Equal(t, 64, cfg.MQTT.BufferSize)
	assert.Equal(t, ":80", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Minute, cfg.Heartbeat)
	assert.Equal(t, "info", cfg.Log.Level)

	gating, err := cfg.ReportChannels()
	require.NoError(t, err)
	assert.Equal(t, [2]coin.Denomination{coin.Coin50Cent, coin.Coin1Eur}, gating)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
task:
  report_period: 1s
display:
  customer: ACME Laundry
  serial: CA-0042
report:
  channels: [coin_1_eur, coin_2_eur]
coins:
  coin_1_eur: 5
  coin_2_eur: 4
watchdog:
  device: ""
mqtt:
  broker: tcp://broker.local:1883
`)

	src := Open(path)
	cfg, err := src.Load()
	require.NoError(t, err)

	assert.Equal(t, path, src.File())
	assert.Equal(t, time.Second, cfg.Task.ReportPeriod)
	assert.Equal(t, 50*time.Millisecond, cfg.Task.Period)
	assert.Equal(t, "ACME Laundry", cfg.Display.Customer)
	assert.Equal(t, "CA-0042", cfg.Display.Serial)
	assert.Empty(t, cfg.Watchdog.Device)
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.Broker)

	inputs := cfg.Inputs()
	assert.Equal(t, 5, inputs[coin.Coin1Eur])
	assert.Equal(t, 4, inputs[coin.Coin2Eur])
	assert.Equal(t, 1, inputs[coin.Coin10Cent])

	gating, err := cfg.ReportChannels()
	require.NoError(t, err)
	assert.Equal(t, [2]coin.Denomination{coin.Coin1Eur, coin.Coin2Eur}, gating)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("COIN_ACCEPTOR_DISPLAY_CUSTOMER", "Env Customer")
	t.Setenv("COIN_ACCEPTOR_MQTT_PUBLISH_TIMEOUT", "25ms")

	cfg, err := Open("").Load()
	require.NoError(t, err)
	assert.Equal(t, "Env Customer", cfg.Display.Customer)
	assert.Equal(t, 25*time.Millisecond, cfg.MQTT.PublishTimeout)
}

func TestLoad_SetOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "http:\n  addr: \":8080\"\n")

	src := Open(path)
	src.Set("http.addr", ":9090")
	cfg, err := src.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero period", "task:\n  period: 0s\n"},
		{"deadline below period", "watchdog:\n  deadline: 10ms\n"},
		{"short inputs", "gpio:\n  inputs: [1, 2, 3]\n"},
		{"short leds", "gpio:\n  leds: [1]\n"},
		{"input out of range", "coins:\n  coin_2_eur: 9\n"},
		{"duplicate input", "coins:\n  coin_2_eur: 1\n"},
		{"one report channel", "report:\n  channels: [coin_1_eur]\n"},
		{"unknown report channel", "report:\n  channels: [coin_1_eur, coin_5_eur]\n"},
		{"valueless report channel", "report:\n  channels: [coin_1_eur, alarm]\n"},
		{"repeated report channel", "report:\n  channels: [coin_1_eur, coin_1_eur]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.body)
			_, err := Open(path).Load()
			assert.Error(t, err)
		})
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "display:\n  customer: Before\n")

	src := Open(path)
	cfg, err := src.Load()
	require.NoError(t, err)
	require.Equal(t, "Before", cfg.Display.Customer)

	var mu sync.Mutex
	var seen []string
	src.Watch(func(c *Config, err error) {
		if err != nil {
			return
		}
		mu.Lock()
		seen = append(seen, c.Display.Customer)
		mu.Unlock()
	})

	require.NoError(t, os.WriteFile(path, []byte("display:\n  customer: After\n"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range seen {
			if s == "After" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatch_NoFileIsNoop(t *testing.T) {
	chdir(t, t.TempDir())
	src := Open("")
	_, err := src.Load()
	require.NoError(t, err)

	assert.Empty(t, src.File())
	src.Watch(func(*Config, error) { t.Error("unexpected reload") })
}
