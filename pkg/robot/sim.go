package robot

import (
	"context"
	"math"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// SimMotor is an in-memory motor for running without hardware. Its default
// stop action is Coast.
type SimMotor struct {
	joint    Joint
	clock    clock.Clock
	realtime bool

	mu       sync.Mutex
	position float64
	speed    int
	since    time.Time
	running  bool
	torque   bool
}

var _ Motor = (*SimMotor)(nil)
var _ Resetter = (*SimMotor)(nil)

// NewSimMotor creates a simulated motor at position zero. With realtime set,
// blocking moves take distance/speed on the clock.
func NewSimMotor(joint Joint, clk clock.Clock, realtime bool) *SimMotor {
	return &SimMotor{
		joint:    joint,
		clock:    clk,
		realtime: realtime,
	}
}

// NewSimMotors creates one simulated motor per joint sharing a clock.
func NewSimMotors(clk clock.Clock, realtime bool) map[Joint]Motor {
	motors := make(map[Joint]Motor, 3)
	for _, joint := range AllJoints() {
		motors[joint] = NewSimMotor(joint, clk, realtime)
	}
	return motors
}

// Joint returns the simulated joint.
func (m *SimMotor) Joint() Joint {
	return m.joint
}

// Position returns the current position, including progress of a run.
func (m *SimMotor) Position(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(math.Round(m.current())), nil
}

// Holding reports whether the joint ended its last move with torque on.
func (m *SimMotor) Holding() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.torque
}

// Running reports whether the joint is turning continuously.
func (m *SimMotor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Reset makes the current position the zero reference.
func (m *SimMotor) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.position = 0
	return nil
}

func (m *SimMotor) RunToAbsPos(ctx context.Context, position, speed int, stop StopAction) error {
	m.mu.Lock()
	from := m.settle()
	m.mu.Unlock()
	return m.travel(ctx, from, float64(position), speed, stop)
}

func (m *SimMotor) RunToRelPos(ctx context.Context, position, speed int) error {
	m.mu.Lock()
	from := m.settle()
	m.mu.Unlock()
	return m.travel(ctx, from, from+float64(position), speed, Coast)
}

func (m *SimMotor) RunForever(ctx context.Context, speed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settle()
	m.running = true
	m.torque = true
	m.speed = speed
	m.since = m.clock.Now()
	return nil
}

func (m *SimMotor) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settle()
	m.torque = false
	return nil
}

func (m *SimMotor) travel(ctx context.Context, from, to float64, speed int, stop StopAction) error {
	if m.realtime && speed != 0 {
		d := to - from
		if d < 0 {
			d = -d
		}
		m.clock.Sleep(time.Duration(math.Round(d / float64(abs(speed)) * float64(time.Second))))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = to
	m.torque = stop != Coast && stop != DefaultStop
	return ctx.Err()
}

// settle folds a continuous run into the stored position. Callers hold mu.
func (m *SimMotor) settle() float64 {
	m.position = m.current()
	m.running = false
	return m.position
}

// current returns the position including a continuous run. Callers hold mu.
func (m *SimMotor) current() float64 {
	if !m.running {
		return m.position
	}
	elapsed := m.clock.Since(m.since).Seconds()
	return m.position + float64(m.speed)*elapsed
}
