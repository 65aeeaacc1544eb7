// Package robot provides abstractions for controlling the gadget arm.
package robot

import (
	"context"
	"errors"
	"fmt"
)

// Joint identifies a motor in the arm.
type Joint string

// Joint names for the three-axis gadget arm.
const (
	Shoulder Joint = "shoulder"
	Elbow    Joint = "elbow"
	Wrist    Joint = "wrist"
)

// AllJoints returns all joint names in order (matching servo IDs 1-3).
func AllJoints() []Joint {
	return []Joint{
		Shoulder,
		Elbow,
		Wrist,
	}
}

// StopAction is what a motor does once a move ends or it is stopped.
type StopAction string

const (
	// DefaultStop asks for the motor's configured stop action.
	DefaultStop StopAction = ""
	// Coast removes power and lets the joint spin down freely.
	Coast StopAction = "coast"
	// Brake removes power but resists motion passively.
	Brake StopAction = "brake"
	// Hold actively keeps the joint at its final position.
	Hold StopAction = "hold"
)

// ParseStopAction converts a config value into a StopAction.
// An empty string means Coast.
func ParseStopAction(s string) (StopAction, error) {
	switch StopAction(s) {
	case DefaultStop, Coast:
		return Coast, nil
	case Brake:
		return Brake, nil
	case Hold:
		return Hold, nil
	}
	return "", fmt.Errorf("unknown stop action %q", s)
}

// ErrMoveTimeout is returned when a joint does not reach its target in time.
var ErrMoveTimeout = errors.New("move timed out")

// Motor is a single actuator. Positions are in degrees relative to the
// joint's zero reference, speeds in degrees per second.
//
// RunToAbsPos and RunToRelPos block until the move completes. RunForever
// returns immediately and keeps the motor turning until Stop is called.
type Motor interface {
	// RunToAbsPos moves to position and ends with stop, or with the motor's
	// default stop action when stop is DefaultStop.
	RunToAbsPos(ctx context.Context, position, speed int, stop StopAction) error
	// RunToRelPos moves by an offset and ends with the motor's default stop action.
	RunToRelPos(ctx context.Context, position, speed int) error
	RunForever(ctx context.Context, speed int) error
	// Stop halts the motor using its default stop action. Stopping an idle
	// motor is not an error.
	Stop(ctx context.Context) error
	Position(ctx context.Context) (int, error)
}

// Resetter is implemented by motors whose zero reference can be moved to
// the current position.
type Resetter interface {
	Reset(ctx context.Context) error
}
