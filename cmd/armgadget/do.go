package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/gwillem/armgadget/pkg/gadget"
	"github.com/gwillem/armgadget/pkg/robot"
)

type DoCommand struct {
	Simulate bool `long:"simulate" env:"ARMGADGET_SIMULATE" description:"Drive simulated motors instead of the servo bus"`
	Reset    bool `long:"reset" description:"Zero the shoulder before running"`

	Args struct {
		Token string `positional-arg-name:"token" required:"yes" description:"Command token (right, left, straight, go, ready)"`
	} `positional-args:"yes"`
}

func (c *DoCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := newLogger(os.Stderr)

	motors, release, err := openMotors(ctx, cfg, c.Simulate)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			logger.Error("Failed to release motors", "err", err)
		}
	}()
	if c.Reset {
		if err := resetMotors(ctx, motors, robot.Shoulder); err != nil {
			return err
		}
	}

	arm, err := gadget.ArmFromMotors(motors)
	if err != nil {
		return err
	}

	token := strings.TrimSpace(c.Args.Token)
	if len(gadget.Resolve(token)) == 0 {
		logger.Warn("Unknown command, nothing to do", "token", token, "known", gadget.Tokens())
		return nil
	}

	handler := gadget.NewHandler(gadget.HandlerConfig{
		Name:      cfg.Name,
		Activator: gadget.NewSequencer(arm, gadget.WithLogger(logger)),
		Logger:    logger,
	})
	return handler.Dispatch(ctx, gadget.Directive{Type: gadget.TypeCommand, Command: token})
}
