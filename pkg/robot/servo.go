package robot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"k8s.io/utils/clock"
)

const (
	// positionTolerance is how close (in raw steps) a joint must get to its
	// target for a move to count as complete.
	positionTolerance = 12
	pollInterval      = 20 * time.Millisecond
	settleTimeout     = time.Second
	jogInterval       = 50 * time.Millisecond
)

// servoDriver is the subset of *feetech.Servo the motor uses.
type servoDriver interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Position(ctx context.Context) (int, error)
	SetPositionWithTime(ctx context.Context, position, timeMs int) error
}

// ServoMotor drives one joint through a Feetech STS servo in position mode.
type ServoMotor struct {
	joint       Joint
	servo       servoDriver
	clock       clock.WithTicker
	defaultStop StopAction

	mu  sync.Mutex
	cal JointCalibration
	jog context.CancelFunc
	// jogDone is closed when the jog goroutine has exited.
	jogDone chan struct{}
}

var _ Motor = (*ServoMotor)(nil)
var _ Resetter = (*ServoMotor)(nil)

func newServoMotor(joint Joint, servo servoDriver, cal JointCalibration, clk clock.WithTicker) *ServoMotor {
	stop, err := ParseStopAction(string(cal.StopAction))
	if err != nil {
		stop = Coast
	}
	return &ServoMotor{
		joint:       joint,
		servo:       servo,
		clock:       clk,
		defaultStop: stop,
		cal:         cal,
	}
}

// Joint returns the joint this motor drives.
func (m *ServoMotor) Joint() Joint {
	return m.joint
}

func (m *ServoMotor) calibration() JointCalibration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cal
}

// Position returns the current position in degrees.
func (m *ServoMotor) Position(ctx context.Context) (int, error) {
	raw, err := m.servo.Position(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: read position: %w", m.joint, err)
	}
	return m.calibration().ToDegrees(raw), nil
}

// Reset makes the current position the joint's zero reference.
func (m *ServoMotor) Reset(ctx context.Context) error {
	m.halt()
	raw, err := m.servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("%s: read position: %w", m.joint, err)
	}
	m.mu.Lock()
	m.cal.HomingOffset = raw
	m.mu.Unlock()
	return nil
}

// RunToAbsPos moves to an absolute position and blocks until it is reached.
func (m *ServoMotor) RunToAbsPos(ctx context.Context, position, speed int, stop StopAction) error {
	m.halt()
	cal := m.calibration()
	current, err := m.servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("%s: read position: %w", m.joint, err)
	}
	if stop == DefaultStop {
		stop = m.defaultStop
	}
	return m.moveTo(ctx, current, cal.ToRaw(position), speed, stop)
}

// RunToRelPos moves by an offset from the current position and blocks
// until it is reached.
func (m *ServoMotor) RunToRelPos(ctx context.Context, position, speed int) error {
	m.halt()
	cal := m.calibration()
	current, err := m.servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("%s: read position: %w", m.joint, err)
	}
	target := cal.ToRaw(cal.ToDegrees(current) + position)
	return m.moveTo(ctx, current, target, speed, m.defaultStop)
}

func (m *ServoMotor) moveTo(ctx context.Context, from, target, speed int, stop StopAction) error {
	if err := m.servo.Enable(ctx); err != nil {
		return fmt.Errorf("%s: enable torque: %w", m.joint, err)
	}

	moveTime := travelTime(from, target, speed)
	if err := m.servo.SetPositionWithTime(ctx, target, int(moveTime/time.Millisecond)); err != nil {
		return fmt.Errorf("%s: set position: %w", m.joint, err)
	}

	deadline := m.clock.Now().Add(moveTime + settleTimeout)
	for {
		pos, err := m.servo.Position(ctx)
		if err != nil {
			return fmt.Errorf("%s: read position: %w", m.joint, err)
		}
		if abs(pos-target) <= positionTolerance {
			break
		}
		if !m.clock.Now().Before(deadline) {
			return fmt.Errorf("%s: at %d, target %d: %w", m.joint, pos, target, ErrMoveTimeout)
		}
		m.clock.Sleep(pollInterval)
	}

	return m.finish(ctx, stop)
}

// RunForever starts turning the joint at the given speed and returns
// immediately. Position mode has no continuous rotation, so a jog goroutine
// keeps moving the target ahead until Stop.
func (m *ServoMotor) RunForever(ctx context.Context, speed int) error {
	m.halt()
	if err := m.servo.Enable(ctx); err != nil {
		return fmt.Errorf("%s: enable torque: %w", m.joint, err)
	}
	start, err := m.servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("%s: read position: %w", m.joint, err)
	}

	jogCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	m.mu.Lock()
	m.jog = cancel
	m.jogDone = done
	cal := m.cal
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := m.clock.NewTicker(jogInterval)
		defer ticker.Stop()

		stepPerTick := float64(speed) * StepsPerRevolution / 360 * jogInterval.Seconds()
		target := float64(start)
		for {
			select {
			case <-jogCtx.Done():
				return
			case <-ticker.C():
				target += stepPerTick
				raw := cal.Clamp(int(target))
				if err := m.servo.SetPositionWithTime(jogCtx, raw, int(jogInterval/time.Millisecond)); err != nil {
					return
				}
				if raw != int(target) {
					// Hit the end of the joint's range.
					return
				}
			}
		}
	}()
	return nil
}

// Stop halts a running joint and applies the default stop action.
func (m *ServoMotor) Stop(ctx context.Context) error {
	if m.halt() {
		pos, err := m.servo.Position(ctx)
		if err != nil {
			return fmt.Errorf("%s: read position: %w", m.joint, err)
		}
		if err := m.servo.SetPositionWithTime(ctx, pos, 0); err != nil {
			return fmt.Errorf("%s: set position: %w", m.joint, err)
		}
	}
	return m.finish(ctx, m.defaultStop)
}

// halt cancels the jog goroutine, if any, and waits for it to exit.
// It reports whether the joint was running.
func (m *ServoMotor) halt() bool {
	m.mu.Lock()
	cancel, done := m.jog, m.jogDone
	m.jog, m.jogDone = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (m *ServoMotor) finish(ctx context.Context, stop StopAction) error {
	if stop != Coast {
		return nil
	}
	if err := m.servo.Disable(ctx); err != nil {
		return fmt.Errorf("%s: disable torque: %w", m.joint, err)
	}
	return nil
}

// travelTime is how long a move of from->to raw steps takes at speed
// degrees per second.
func travelTime(from, to, speed int) time.Duration {
	if speed == 0 {
		return 0
	}
	degrees := float64(abs(to-from)) * 360 / StepsPerRevolution
	return time.Duration(degrees / float64(abs(speed)) * float64(time.Second))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

var _ servoDriver = (*feetech.Servo)(nil)
