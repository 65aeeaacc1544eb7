package gadget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"k8s.io/utils/clock"

	"github.com/gwillem/armgadget/pkg/robot"
)

// DefaultSpeed is the speed passed with voice commands. The presets use
// their own fixed speeds.
const DefaultSpeed = 50

const (
	turnSpeed = 200

	readyPosition  = -255
	readyWait      = 4 * time.Second
	readyWristDrop = -80
	readyWristSpd  = 400

	defaultPollInterval = 5 * time.Millisecond
)

// Arm holds the three joints the sequences drive.
type Arm struct {
	Shoulder robot.Motor
	Elbow    robot.Motor
	Wrist    robot.Motor
}

// ArmFromMotors picks the joints out of a motor map.
func ArmFromMotors(motors map[robot.Joint]robot.Motor) (Arm, error) {
	arm := Arm{
		Shoulder: motors[robot.Shoulder],
		Elbow:    motors[robot.Elbow],
		Wrist:    motors[robot.Wrist],
	}
	for _, joint := range robot.AllJoints() {
		if motors[joint] == nil {
			return Arm{}, fmt.Errorf("no motor for %s", joint)
		}
	}
	return arm, nil
}

// Sequencer runs the preset motion for each command. Only one sequence
// runs at a time; concurrent calls wait their turn.
type Sequencer struct {
	arm          Arm
	clock        clock.Clock
	logger       *log.Logger
	pollInterval time.Duration

	mu sync.Mutex
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithClock sets the clock used for waits and the go timing loop.
func WithClock(c clock.Clock) Option {
	return func(s *Sequencer) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Sequencer) { s.logger = l }
}

// WithPollInterval sets how often the go timing loop checks the clock.
func WithPollInterval(d time.Duration) Option {
	return func(s *Sequencer) { s.pollInterval = d }
}

// NewSequencer creates a sequencer driving arm.
func NewSequencer(arm Arm, opts ...Option) *Sequencer {
	s := &Sequencer{
		arm:          arm,
		clock:        clock.RealClock{},
		logger:       log.Default(),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate runs the sequence of every command token resolves to. Unknown
// tokens do nothing. speed is accepted for the voice model's sake and
// logged; the presets ignore it. A motor error aborts the remaining steps.
// Cancelling ctx does not interrupt a sequence once started.
func (s *Sequencer) Activate(ctx context.Context, token string, speed int) error {
	s.logger.Info("Activate command", "command", token, "speed", speed)

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	for _, cmd := range Resolve(token) {
		if err := s.run(ctx, cmd); err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
	}
	return nil
}

func (s *Sequencer) run(ctx context.Context, cmd Command) error {
	switch cmd {
	case Right:
		return s.arm.Shoulder.RunToAbsPos(ctx, -60, turnSpeed, robot.Hold)
	case Left:
		return s.arm.Shoulder.RunToAbsPos(ctx, 60, turnSpeed, robot.Hold)
	case Straight:
		return s.arm.Shoulder.RunToAbsPos(ctx, 0, turnSpeed, robot.Hold)
	case Go:
		return s.shoot(ctx)
	case Ready:
		return s.pickUp(ctx)
	}
	return nil
}

// pickUp lowers the arm, lets the ball settle, then closes the wrist on it.
func (s *Sequencer) pickUp(ctx context.Context) error {
	if err := s.arm.Shoulder.RunToAbsPos(ctx, readyPosition, turnSpeed, robot.Hold); err != nil {
		return err
	}
	s.clock.Sleep(readyWait)
	return s.arm.Wrist.RunToRelPos(ctx, readyWristDrop, readyWristSpd)
}
