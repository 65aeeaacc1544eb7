package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/jessevdk/go-flags"
	"k8s.io/utils/clock"

	"github.com/gwillem/armgadget/pkg/robot"
)

type Options struct {
	Config   string `long:"config" short:"c" env:"ARMGADGET_CONFIG" default:"armgadget.json" description:"Configuration file"`
	LogLevel string `long:"log-level" env:"ARMGADGET_LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`

	Setup SetupCommand `command:"setup" description:"Find the arm and record its home pose"`
	Run   RunCommand   `command:"run" description:"Receive directives and drive the arm"`
	Do    DoCommand    `command:"do" description:"Run a single command token"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "ArmGadget - voice controlled toy arm"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	level, err := log.ParseLevel(opts.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// loadConfig reads the config file, falling back to defaults when none
// exists yet.
func loadConfig() (*robot.Config, error) {
	if !robot.ConfigExists(opts.Config) {
		return robot.DefaultConfig(), nil
	}
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", opts.Config, err)
	}
	return cfg, nil
}

// openMotors returns the joint motors and a function releasing them.
func openMotors(ctx context.Context, cfg *robot.Config, simulate bool) (map[robot.Joint]robot.Motor, func() error, error) {
	if simulate {
		motors := robot.NewSimMotors(clock.RealClock{}, true)
		return motors, func() error { return stopAll(motors) }, nil
	}
	if cfg.Arm.Port == "" {
		return nil, nil, fmt.Errorf("no arm port configured in %s, run 'armgadget setup' or use --simulate", opts.Config)
	}

	cal := cfg.Arm.Calibration
	if !cfg.Arm.IsCalibrated() {
		cal = robot.DefaultCalibration()
	}
	arm, err := robot.NewArm(ctx, cfg.Arm.Port, cal)
	if err != nil {
		return nil, nil, err
	}
	return arm.Motors(), arm.Close, nil
}

// resetMotors zeroes the position counters of the motors that support it.
func resetMotors(ctx context.Context, motors map[robot.Joint]robot.Motor, joints ...robot.Joint) error {
	for _, j := range joints {
		r, ok := motors[j].(robot.Resetter)
		if !ok {
			continue
		}
		if err := r.Reset(ctx); err != nil {
			return fmt.Errorf("reset %s: %w", j, err)
		}
	}
	return nil
}

func stopAll(motors map[robot.Joint]robot.Motor) error {
	var errs []error
	for _, j := range robot.AllJoints() {
		if m, ok := motors[j]; ok {
			errs = append(errs, m.Stop(context.Background()))
		}
	}
	return errors.Join(errs...)
}
