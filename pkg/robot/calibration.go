package robot

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// StepsPerRevolution is the encoder resolution of an STS series servo.
const StepsPerRevolution = 4096

// JointCalibration holds calibration data for a single joint.
type JointCalibration struct {
	ID           int        `json:"id"`
	DriveMode    int        `json:"drive_mode"`
	HomingOffset int        `json:"homing_offset"`
	RangeMin     int        `json:"range_min"`
	RangeMax     int        `json:"range_max"`
	StopAction   StopAction `json:"stop_action,omitempty"`
}

// Calibration holds calibration data for all joints, keyed by joint name.
type Calibration map[Joint]JointCalibration

// DefaultCalibration returns an uncalibrated mapping with servo IDs 1-3,
// zero at the middle of the encoder and no range limit.
func DefaultCalibration() Calibration {
	cal := make(Calibration, 3)
	for i, joint := range AllJoints() {
		cal[joint] = JointCalibration{
			ID:           i + 1,
			HomingOffset: StepsPerRevolution / 2,
		}
	}
	return cal
}

// LoadCalibration loads calibration data from a JSON file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	// Parse into a map with string keys first
	var raw map[string]JointCalibration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse calibration JSON: %w", err)
	}

	cal := make(Calibration, len(raw))
	for name, jc := range raw {
		cal[Joint(name)] = jc
	}

	return cal, nil
}

// ToRaw converts a position in degrees to a raw servo step, clamped to the
// recorded range when one exists.
func (c JointCalibration) ToRaw(degrees int) int {
	if c.DriveMode == 1 {
		degrees = -degrees
	}
	raw := c.HomingOffset + int(math.Round(float64(degrees)*StepsPerRevolution/360))
	return c.Clamp(raw)
}

// ToDegrees converts a raw servo step to a position in degrees.
func (c JointCalibration) ToDegrees(raw int) int {
	deg := int(math.Round(float64(raw-c.HomingOffset) * 360 / StepsPerRevolution))
	if c.DriveMode == 1 {
		deg = -deg
	}
	return deg
}

// Clamp limits a raw step to [RangeMin, RangeMax]. An empty range disables clamping.
func (c JointCalibration) Clamp(raw int) int {
	if c.RangeMax <= c.RangeMin {
		return raw
	}
	return max(c.RangeMin, min(raw, c.RangeMax))
}

// JointIDs returns the servo IDs for all joints in the calibration.
func (c Calibration) JointIDs() []int {
	ids := make([]int, 0, len(c))
	// Use AllJoints() to ensure consistent ordering
	for _, name := range AllJoints() {
		if jc, ok := c[name]; ok {
			ids = append(ids, jc.ID)
		}
	}
	return ids
}

// ByID returns joint name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (Joint, JointCalibration, bool) {
	for name, jc := range c {
		if jc.ID == id {
			return name, jc, true
		}
	}
	return "", JointCalibration{}, false
}

// Validate checks that every joint is present and IDs are unique.
func (c Calibration) Validate() error {
	seen := make(map[int]Joint, len(c))
	for _, name := range AllJoints() {
		jc, ok := c[name]
		if !ok {
			return fmt.Errorf("calibration missing joint %s", name)
		}
		if other, dup := seen[jc.ID]; dup {
			return fmt.Errorf("servo ID %d used by both %s and %s", jc.ID, other, name)
		}
		seen[jc.ID] = name
		if _, err := ParseStopAction(string(jc.StopAction)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
