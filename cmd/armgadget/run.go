package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/gwillem/armgadget/pkg/gadget"
	"github.com/gwillem/armgadget/pkg/monitor"
	"github.com/gwillem/armgadget/pkg/robot"
	"github.com/gwillem/armgadget/pkg/transport/httpapi"
	"github.com/gwillem/armgadget/pkg/transport/mqtt"
)

type RunCommand struct {
	Simulate  bool   `long:"simulate" env:"ARMGADGET_SIMULATE" description:"Drive simulated motors instead of the servo bus"`
	Dashboard bool   `long:"dashboard" description:"Show the live joint dashboard"`
	Broker    string `long:"broker" env:"ARMGADGET_BROKER" description:"MQTT broker URL (overrides config)"`
	Topic     string `long:"topic" env:"ARMGADGET_TOPIC" description:"MQTT directive topic (overrides config)"`
	Listen    string `long:"listen" env:"ARMGADGET_LISTEN" description:"HTTP listen address (overrides config)"`
	Hz        int    `long:"hz" default:"20" description:"Dashboard sampling rate"`
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Broker != "" {
		cfg.Broker.URL = c.Broker
	}
	if c.Topic != "" {
		cfg.Broker.Topic = c.Topic
	}
	if c.Listen != "" {
		cfg.Listen = c.Listen
	}
	if cfg.Broker.URL == "" && cfg.Listen == "" {
		return errors.New("nothing to receive directives on: set --broker or --listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	motors, release, err := openMotors(ctx, cfg, c.Simulate)
	if err != nil {
		return err
	}

	// Log lines go to the dashboard instead of the terminal while it runs.
	var mon *monitor.Monitor
	var out io.Writer = os.Stderr
	if c.Dashboard {
		mon = monitor.New(monitor.Config{Motors: motors, Hz: c.Hz})
		out = mon
	}
	logger := newLogger(out)

	defer func() {
		if err := release(); err != nil {
			logger.Error("Failed to release motors", "err", err)
		}
	}()
	if err := resetMotors(ctx, motors, robot.Shoulder); err != nil {
		return err
	}

	arm, err := gadget.ArmFromMotors(motors)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	indicators := gadget.Indicators{&gadget.LogIndicator{Logger: logger}}
	if mon != nil {
		indicators = append(indicators, statusIndicator{mon: mon})
	}
	handler := gadget.NewHandler(gadget.HandlerConfig{
		Name:      cfg.Name,
		Activator: gadget.NewSequencer(arm, gadget.WithLogger(logger)),
		Indicator: indicators,
		Metrics:   gadget.NewMetrics(reg),
		Logger:    logger,
	})

	indicators.SetColor(gadget.Green)
	defer indicators.SetColor(gadget.Black)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Broker.URL != "" {
		recv, err := mqtt.NewReceiver(mqtt.Config{
			BrokerURL: cfg.Broker.URL,
			ClientID:  cfg.Broker.ClientID,
			Username:  cfg.Broker.Username,
			Password:  cfg.Broker.Password,
			Topic:     cfg.Broker.Topic,
		}, handler, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return recv.Run(gctx) })
	}
	if cfg.Listen != "" {
		srv := httpapi.NewServer(cfg.Listen, handler, reg, logger)
		g.Go(func() error { return srv.Run(gctx) })
	}

	logger.Info("Running", "name", cfg.Name, "simulate", c.Simulate, "broker", cfg.Broker.URL, "listen", cfg.Listen)

	if mon != nil {
		g.Go(func() error { return mon.Run(gctx) })
		g.Go(func() error {
			return runDashboard(gctx, mon, stop)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run: %w", err)
	}
	logger.Info("Stopped")
	return nil
}

// runDashboard shows the dashboard until the user quits or ctx is done.
// Quitting cancels the whole run.
func runDashboard(ctx context.Context, mon *monitor.Monitor, quit context.CancelFunc) error {
	p := tea.NewProgram(newDashboardModel(mon), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	quit()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
