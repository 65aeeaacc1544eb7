package robot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"k8s.io/utils/clock"
)

// Arm represents the gadget arm: one servo per joint on a shared bus.
type Arm struct {
	bus    *feetech.Bus
	group  *feetech.ServoGroup
	motors map[Joint]*ServoMotor
}

// NewArm creates and initializes an arm connection. Every joint's servo
// must answer a scan of the bus.
func NewArm(ctx context.Context, port string, cal Calibration) (*Arm, error) {
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calibration: %w", err)
	}

	// Open serial bus
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	ids := cal.JointIDs()
	found, err := bus.Scan(ctx, slices.Min(ids), slices.Max(ids))
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("scan bus: %w", err)
	}

	clk := clock.RealClock{}
	motors := make(map[Joint]*ServoMotor, len(cal))
	for _, s := range found {
		joint, jc, ok := cal.ByID(s.ID)
		if !ok {
			continue
		}
		motors[joint] = newServoMotor(joint, feetech.NewServo(bus, s.ID, s.Model), jc, clk)
	}
	for _, joint := range AllJoints() {
		if _, ok := motors[joint]; !ok {
			bus.Close()
			return nil, fmt.Errorf("%s servo (ID %d) not found on %s", joint, cal[joint].ID, port)
		}
	}

	return &Arm{
		bus:    bus,
		group:  feetech.NewServoGroupByIDs(bus, ids...),
		motors: motors,
	}, nil
}

// Close disables torque and closes the arm's bus connection.
func (a *Arm) Close() error {
	for _, m := range a.motors {
		m.halt()
	}
	disableErr := a.group.DisableAll(context.Background())
	return errors.Join(disableErr, a.bus.Close())
}

// Motor returns the motor driving the given joint.
func (a *Arm) Motor(joint Joint) *ServoMotor {
	return a.motors[joint]
}

// Motors returns the motors keyed by joint.
func (a *Arm) Motors() map[Joint]Motor {
	out := make(map[Joint]Motor, len(a.motors))
	for joint, m := range a.motors {
		out[joint] = m
	}
	return out
}

// Enable enables torque on all servos.
func (a *Arm) Enable(ctx context.Context) error {
	return a.group.EnableAll(ctx)
}

// Disable disables torque on all servos.
func (a *Arm) Disable(ctx context.Context) error {
	return a.group.DisableAll(ctx)
}

// ReadPositions reads current positions from all joints in degrees.
func (a *Arm) ReadPositions(ctx context.Context) (map[Joint]int, error) {
	// Read raw positions using sync read
	rawPositions, err := a.group.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	positions := make(map[Joint]int, len(rawPositions))
	for id, raw := range rawPositions {
		for joint, m := range a.motors {
			cal := m.calibration()
			if cal.ID == id {
				positions[joint] = cal.ToDegrees(raw)
			}
		}
	}

	return positions, nil
}
