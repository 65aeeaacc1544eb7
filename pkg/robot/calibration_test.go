package robot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJointCalibration_ToRaw(t *testing.T) {
	cal := JointCalibration{HomingOffset: 2048}

	tests := []struct {
		degrees  int
		expected int
	}{
		{0, 2048},   // zero -> homing offset
		{90, 3072},  // quarter turn
		{-90, 1024}, // quarter turn back
		{180, 4096}, // half turn
		{-60, 1365}, // right
		{60, 2731},  // left
	}

	for _, tt := range tests {
		got := cal.ToRaw(tt.degrees)
		if got != tt.expected {
			t.Errorf("ToRaw(%d) = %d, want %d", tt.degrees, got, tt.expected)
		}
	}
}

func TestJointCalibration_DriveModeInverts(t *testing.T) {
	cal := JointCalibration{HomingOffset: 2048, DriveMode: 1}

	assert.Equal(t, 1024, cal.ToRaw(90))
	assert.Equal(t, 90, cal.ToDegrees(1024))
}

func TestJointCalibration_Clamp(t *testing.T) {
	cal := JointCalibration{HomingOffset: 2048, RangeMin: 1500, RangeMax: 2500}

	assert.Equal(t, 1500, cal.ToRaw(-180))
	assert.Equal(t, 2500, cal.ToRaw(180))
	assert.Equal(t, 2048, cal.ToRaw(0))

	unbounded := JointCalibration{}
	assert.Equal(t, -50, unbounded.Clamp(-50))
}

func TestJointCalibration_RoundTrip(t *testing.T) {
	cal := JointCalibration{HomingOffset: 1900}

	// Test round-trip: degrees -> raw -> degrees
	for deg := -255; deg <= 255; deg += 15 {
		raw := cal.ToRaw(deg)
		back := cal.ToDegrees(raw)
		if back != deg {
			t.Errorf("Round-trip failed: %d -> %d -> %d", deg, raw, back)
		}
	}
}

func TestCalibration_JointIDs(t *testing.T) {
	cal := Calibration{
		Shoulder: JointCalibration{ID: 1},
		Elbow:    JointCalibration{ID: 2},
		Wrist:    JointCalibration{ID: 3},
	}

	require.Equal(t, []int{1, 2, 3}, cal.JointIDs())
}

func TestCalibration_ByID(t *testing.T) {
	cal := Calibration{
		Shoulder: JointCalibration{ID: 1, RangeMin: 100, RangeMax: 200},
		Wrist:    JointCalibration{ID: 3, RangeMin: 300, RangeMax: 400},
	}

	name, jc, ok := cal.ByID(1)
	require.True(t, ok)
	assert.Equal(t, Shoulder, name)
	assert.Equal(t, 100, jc.RangeMin)

	_, _, ok = cal.ByID(99)
	assert.False(t, ok, "ByID(99) should return false")
}

func TestCalibration_Validate(t *testing.T) {
	require.NoError(t, DefaultCalibration().Validate())

	missing := Calibration{Shoulder: {ID: 1}, Elbow: {ID: 2}}
	assert.ErrorContains(t, missing.Validate(), "missing joint wrist")

	dup := Calibration{Shoulder: {ID: 1}, Elbow: {ID: 1}, Wrist: {ID: 3}}
	assert.ErrorContains(t, dup.Validate(), "servo ID 1")

	bad := DefaultCalibration()
	wrist := bad[Wrist]
	wrist.StopAction = "float"
	bad[Wrist] = wrist
	assert.ErrorContains(t, bad.Validate(), "unknown stop action")
}

func TestLoadCalibration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.json")
	data := `{"shoulder":{"id":1,"homing_offset":2000,"stop_action":"hold"},"elbow":{"id":2},"wrist":{"id":3}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cal, err := LoadCalibration(path)
	require.NoError(t, err)
	assert.Equal(t, 2000, cal[Shoulder].HomingOffset)
	assert.Equal(t, Hold, cal[Shoulder].StopAction)
	assert.Equal(t, 3, cal[Wrist].ID)

	_, err = LoadCalibration(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
