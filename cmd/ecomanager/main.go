// cmd/ecomanager/main.go
package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/ecomanager-rx/internal/clock"
	"github.com/tamzrod/ecomanager-rx/internal/config"
	"github.com/tamzrod/ecomanager-rx/internal/console"
	"github.com/tamzrod/ecomanager-rx/internal/frame"
	"github.com/tamzrod/ecomanager-rx/internal/mirror"
	"github.com/tamzrod/ecomanager-rx/internal/publish"
	"github.com/tamzrod/ecomanager-rx/internal/radio"
	"github.com/tamzrod/ecomanager-rx/internal/report"
	"github.com/tamzrod/ecomanager-rx/internal/scheduler"
	"github.com/tamzrod/ecomanager-rx/internal/sensor"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: ecomanager <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	level := setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// --------------------
	// Radio bridge
	// --------------------

	clk := clock.NewSystem()

	port, err := openPort(cfg.Radio)
	if err != nil {
		log.Fatalf("radio open failed: %v", err)
	}

	queue := radio.NewQueue(cfg.Radio.QueueCapacity)
	link, err := radio.NewLink(port, radio.NewReceiver(clk, queue), clk, radio.LinkConfig{
		Checksum: cfg.Radio.ChecksumCommands,
	})
	if err != nil {
		log.Fatalf("radio link failed: %v", err)
	}
	defer link.Close()

	// --------------------
	// Report sinks
	// --------------------

	sinks := report.Multi{report.NewPrinter(os.Stdout)}

	var pub *publish.Publisher
	if m := cfg.MQTT; m != nil {
		pub, err = publish.New(publish.Config{
			Broker:      m.Broker,
			ClientID:    m.ClientID,
			Username:    m.Username,
			Password:    m.Password,
			TopicPrefix: m.TopicPrefix,
			QoS:         m.QoS,
			Encoding:    publish.Encoding(m.Encoding),
			Commands:    m.Commands,
		})
		if err != nil {
			log.Fatalf("mqtt setup failed: %v", err)
		}
		if err := pub.Connect(ctx); err != nil {
			log.Fatalf("mqtt connect failed: %v", err)
		}
		defer pub.Close()

		async := report.NewAsync(pub, m.BufferSize)
		sinks = append(sinks, async)
		g.Go(func() error { return async.Run(ctx) })
	}

	if m := cfg.Mirror; m != nil {
		cli, err := mirror.NewClient(m.Transport, m.Endpoint, time.Duration(m.TimeoutMs)*time.Millisecond)
		if err != nil {
			log.Fatalf("mirror client failed: %v", err)
		}

		sensors := make([]mirror.Sensor, 0, len(m.Sensors))
		for _, s := range m.Sensors {
			sensors = append(sensors, mirror.Sensor{
				Kind: kindOf(s.Kind),
				ID:   s.ID,
				Slot: s.Slot,
				Name: s.Name,
			})
		}

		mir, err := mirror.New(mirror.Config{UnitID: m.UnitID, Sensors: sensors}, cli)
		if err != nil {
			log.Fatalf("mirror setup failed: %v", err)
		}
		defer mir.Close()

		async := report.NewAsync(mir, m.BufferSize)
		sinks = append(sinks, async)
		g.Go(func() error { return async.Run(ctx) })
		g.Go(func() error { return mir.Run(ctx) })
	}

	// --------------------
	// Scheduler
	// --------------------

	sched, err := buildScheduler(cfg, level, clk, queue, link, sinks)
	if err != nil {
		log.Fatalf("scheduler setup failed: %v", err)
	}

	if pub != nil && cfg.MQTT.Commands {
		if err := pub.ServeCommands(ctx, sched); err != nil {
			log.Fatalf("mqtt commands failed: %v", err)
		}
	}

	g.Go(func() error { return link.Run(ctx) })
	g.Go(func() error { return sched.Run(ctx) })

	// --------------------
	// Operator console
	// --------------------

	if *cfg.Console.Enabled {
		sh, err := console.New(sched, os.Stdout, console.Config{
			Prompt:  cfg.Console.Prompt,
			History: cfg.Console.History,
		})
		if err != nil {
			log.Fatalf("console setup failed: %v", err)
		}

		g.Go(func() error {
			if cfg.Console.Interactive {
				// Ctrl-D or Ctrl-C at the prompt ends the process.
				defer stop()
				return sh.Interactive(ctx)
			}
			return sh.Serve(ctx, os.Stdin)
		})
	}

	slog.Info("ecomanager running", "radio", cfg.Radio.Transport, "config", cfgPath)

	if err := g.Wait(); err != nil {
		slog.Error("ecomanager stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("ecomanager stopped")
}

func setupLogging(c config.LogConfig) *slog.LevelVar {
	level := new(slog.LevelVar)
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		log.Fatalf("log level: %v", err)
	}

	// stdout carries readings; logs go to stderr
	var out io.Writer = os.Stderr
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if c.Format == "json" {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(h))
	return level
}

func openPort(c config.RadioConfig) (io.ReadWriteCloser, error) {
	if c.Transport == "tcp" {
		return radio.DialTCP(radio.TCPConfig{
			Endpoint: c.TCP.Endpoint,
			Timeout:  time.Duration(c.TCP.TimeoutMs) * time.Millisecond,
		})
	}
	return radio.OpenSerial(radio.SerialConfig{
		Address:  c.Serial.Address,
		BaudRate: c.Serial.BaudRate,
		Timeout:  time.Duration(c.Serial.TimeoutMs) * time.Millisecond,
	})
}

func buildScheduler(
	cfg *config.Config,
	level *slog.LevelVar,
	clk clock.Clock,
	src scheduler.Source,
	tx scheduler.Transmitter,
	rep report.Reporter,
) (*scheduler.Scheduler, error) {
	s := cfg.Scheduler

	mode, err := scheduler.ParsePairingMode(s.Pairing)
	if err != nil {
		return nil, err
	}
	verbosity, err := scheduler.ParseVerbosity(s.Verbosity)
	if err != nil {
		return nil, err
	}

	sched, err := scheduler.New(scheduler.Config{
		TxWindow:     time.Duration(s.TxWindowMs) * time.Millisecond,
		TrxTimeout:   time.Duration(s.TrxTimeoutMs) * time.Millisecond,
		MaxRetries:   *s.MaxRetries,
		SamplePeriod: time.Duration(s.SamplePeriodMs) * time.Millisecond,
		LearnPeriod:  time.Duration(*s.LearnPeriodMs) * time.Millisecond,
		Strategy:     sensor.Strategy(s.Estimator),
		TxCapacity:   s.TxCapacity,
		TrxCapacity:  s.TrxCapacity,
		Mode:         mode,
		Verbosity:    verbosity,
		LogLevel:     level,
	}, clk, src, tx, rep)
	if err != nil {
		return nil, err
	}

	for _, id := range cfg.Sensors.TX {
		if err := sched.Add(frame.TransmitOnly, id); err != nil {
			return nil, err
		}
	}
	for _, id := range cfg.Sensors.TRX {
		if err := sched.Add(frame.Transceiver, id); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func kindOf(s string) frame.Kind {
	if s == "trx" {
		return frame.Transceiver
	}
	return frame.TransmitOnly
}
