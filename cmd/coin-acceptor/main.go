// Command coin-acceptor counts validator pulses, animates the feedback LEDs
// and reports coin totals to the remote dashboard over MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/coin-acceptor/internal/anim"
	"github.com/sweeney/coin-acceptor/internal/coin"
	"github.com/sweeney/coin-acceptor/internal/config"
	"github.com/sweeney/coin-acceptor/internal/controller"
	"github.com/sweeney/coin-acceptor/internal/gpio"
	"github.com/sweeney/coin-acceptor/internal/logger"
	"github.com/sweeney/coin-acceptor/internal/status"
	"github.com/sweeney/coin-acceptor/internal/telemetry"
	"github.com/sweeney/coin-acceptor/internal/watchdog"
	"github.com/sweeney/coin-acceptor/internal/web"
)

func main() {
	configPath := flag.String("config", "", "Config file (default: ./coin-acceptor.yaml or /etc/coin-acceptor/coin-acceptor.yaml)")
	broker := flag.String("broker", "", "MQTT broker address (overrides mqtt.broker)")
	httpAddr := flag.String("http", "", "HTTP status address (overrides http.addr; empty disables)")
	printState := flag.Bool("print-state", false, "Print channel wiring and line levels, then exit")

	flag.Parse()

	src := config.Open(*configPath)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "broker":
			src.Set("mqtt.broker", *broker)
		case "http":
			src.Set("http.addr", *httpAddr)
		}
	})

	cfg, err := src.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, src, log, *printState); err != nil {
		log.Error("fatal", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg *config.Config, src *config.Source, log *zap.Logger, printState bool) error {
	bank, err := coin.NewBank(cfg.Inputs())
	if err != nil {
		return fmt.Errorf("wire channels: %w", err)
	}
	names, err := cfg.ReportChannels()
	if err != nil {
		return err
	}
	gating := [2]*coin.Channel{bank.Channel(names[0]), bank.Channel(names[1])}

	inputs, err := gpio.NewRealInputs(cfg.GPIO.Chip, cfg.GPIO.Inputs, edgeHandlers(bank))
	if err != nil {
		return fmt.Errorf("init inputs: %w", err)
	}
	defer closeLogged(log, "inputs", inputs)

	leds, err := gpio.NewRealLEDs(cfg.GPIO.Chip, cfg.GPIO.LEDs, cfg.GPIO.ActiveLow, log.Named("gpio"))
	if err != nil {
		return fmt.Errorf("init leds: %w", err)
	}
	defer closeLogged(log, "leds", leds)

	if printState {
		return printWiring(os.Stdout, bank, cfg, inputs, leds)
	}

	sessionID := uuid.NewString()
	wd, wdName, err := openWatchdog(cfg.Watchdog, log)
	if err != nil {
		return err
	}
	defer closeLogged(log, "watchdog", wd)

	sink := telemetry.NewMQTTSink(telemetry.Options{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientID + "-" + sessionID[:8],
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		TopicPrefix:    cfg.MQTT.TopicPrefix,
		PublishTimeout: cfg.MQTT.PublishTimeout,
		BufferSize:     cfg.MQTT.BufferSize,
	}, log.Named("telemetry"))
	defer closeLogged(log, "telemetry", sink)

	engine := anim.NewEngine(leds, cfg.Task.FramePeriod)
	task := controller.New(
		controller.Config{Period: cfg.Task.Period, ReportPeriod: cfg.Task.ReportPeriod},
		wd, engine, sink, gating,
		controller.Identity{Customer: cfg.Display.Customer, Serial: cfg.Display.Serial},
	)

	src.Watch(func(c *config.Config, err error) {
		if err != nil {
			log.Warn("config reload rejected", zap.Error(err))
			return
		}
		task.SetIdentity(controller.Identity{Customer: c.Display.Customer, Serial: c.Display.Serial})
		log.Info("display identity reloaded", zap.String("customer", c.Display.Customer), zap.String("serial", c.Display.Serial))
	})

	tracker := status.NewTracker(time.Now(), sessionID, status.Config{
		PeriodMs:       cfg.Task.Period.Milliseconds(),
		ReportPeriodMs: cfg.Task.ReportPeriod.Milliseconds(),
		WatchdogMs:     cfg.Watchdog.Deadline.Milliseconds(),
		Watchdog:       wdName,
		HeartbeatMs:    cfg.Heartbeat.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
	})
	tracker.Refresh(bank, task)
	tracker.SetMQTTConnected(sink.IsConnected())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	d := deps{task: task, bank: bank, session: sink, tracker: tracker, log: log, now: time.Now}
	d.publishStatus("STARTUP", "", true)

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	log.Info("started",
		zap.String("session", sessionID),
		zap.Duration("period", cfg.Task.Period),
		zap.Duration("report_period", cfg.Task.ReportPeriod),
		zap.Strings("report_channels", []string{string(names[0]), string(names[1])}),
		zap.String("watchdog", wdName),
		zap.String("broker", cfg.MQTT.Broker),
		zap.Duration("heartbeat", cfg.Heartbeat),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		hb := time.NewTicker(cfg.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	// Start the deadline from here rather than from when the device was
	// opened; connecting may have taken most of it.
	wd.Feed()
	ticker := time.NewTicker(cfg.Task.Period)
	defer ticker.Stop()

	return runLoop(ctx, d, ticker.C, heartbeat, sigCh)
}

// deps are the components the host loop drives.
type deps struct {
	task    *controller.Task
	bank    *coin.Bank
	session telemetry.Session
	tracker *status.Tracker
	log     *zap.Logger
	now     func() time.Time
}

func runLoop(ctx context.Context, d deps, tick, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			reason := signalName(s)
			d.log.Info("shutting down", zap.String("signal", reason))
			d.publishStatus("SHUTDOWN", reason, true)
			return nil

		case <-heartbeat:
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			snap := d.tracker.Snapshot()
			d.log.Info("heartbeat",
				zap.Duration("uptime", snap.Uptime()),
				zap.String("balance", snap.Balance),
				zap.Uint64("timed_reports", snap.Stats.TimedReports),
				zap.Uint64("change_reports", snap.Stats.ChangeReports),
			)
			d.publishStatus("HEARTBEAT", "", false)

		case <-tick:
			err := d.task.Run()
			d.tracker.Refresh(d.bank, d.task)
			d.tracker.SetMQTTConnected(d.session.IsConnected())
			if err == nil {
				continue
			}

			if errors.Is(err, telemetry.ErrFatal) {
				d.log.Error("telemetry fault", zap.Error(err))
				return fmt.Errorf("report: %w", err)
			}
			d.log.Warn("report failed", zap.Error(err))

			if d.session.IsConnected() {
				continue
			}
			d.log.Warn("telemetry session down, waiting for reconnect")
			if err := d.session.Reconnect(ctx); err != nil {
				if ctx.Err() != nil {
					// Shutting down; the signal is picked up next iteration.
					continue
				}
				return fmt.Errorf("reconnect: %w", err)
			}
			d.tracker.SetMQTTConnected(true)
			d.log.Info("telemetry session restored")
		}
	}
}

// publishStatus sends a lifecycle event carrying the current status snapshot.
// Failures are logged only.
func (d deps) publishStatus(event, reason string, retained bool) {
	d.tracker.SetMQTTConnected(d.session.IsConnected())
	snap := d.tracker.Snapshot()
	err := d.session.PublishSystem(telemetry.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		d.log.Warn("publish system event", zap.String("event", event), zap.Error(err))
		return
	}
	d.log.Debug("published system event", zap.String("event", event))
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// edgeHandlers binds every channel's edge counter to its input number.
func edgeHandlers(bank *coin.Bank) map[int]gpio.EdgeHandler {
	handlers := make(map[int]gpio.EdgeHandler, coin.NumInputs)
	for _, c := range bank.Channels() {
		handlers[bank.Input(c.Denomination())] = c.OnEdge
	}
	return handlers
}

// openWatchdog opens the hardware watchdog, or a software one when no
// device is configured. The software watchdog ends the process on expiry
// so the supervisor restarts it.
func openWatchdog(cfg config.WatchdogConfig, log *zap.Logger) (watchdog.Watchdog, string, error) {
	if cfg.Device == "" {
		wd := watchdog.NewSoft(cfg.Deadline, func() {
			log.Fatal("watchdog expired", zap.Duration("deadline", cfg.Deadline))
		})
		return wd, "soft", nil
	}
	wd, err := watchdog.OpenDevice(cfg.Device, cfg.Deadline, log.Named("watchdog"))
	if err != nil {
		return nil, "", fmt.Errorf("init watchdog: %w", err)
	}
	return wd, cfg.Device, nil
}

// printWiring writes the channel to line mapping and current line levels.
func printWiring(w io.Writer, bank *coin.Bank, cfg *config.Config, inputs gpio.Inputs, leds gpio.LEDs) error {
	in, err := inputs.Levels()
	if err != nil {
		return fmt.Errorf("read inputs: %w", err)
	}
	out, err := leds.Levels()
	if err != nil {
		return fmt.Errorf("read leds: %w", err)
	}

	for _, c := range bank.Channels() {
		n := bank.Input(c.Denomination())
		fmt.Fprintf(w, "input %d (line %d): %-13s level=%d\n", n, cfg.GPIO.Inputs[n-1], c.Denomination(), in[n-1])
	}
	for i, v := range out {
		state := "off"
		if v != 0 {
			state = "on"
		}
		fmt.Fprintf(w, "led %d (line %d): %s\n", i+1, cfg.GPIO.LEDs[i], state)
	}
	return nil
}

func closeLogged(log *zap.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn("close", zap.String("component", what), zap.Error(err))
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
