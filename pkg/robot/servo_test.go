package robot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

// fakeServo reaches every target instantly unless stuck.
type fakeServo struct {
	mu      sync.Mutex
	pos     int
	enabled bool
	stuck   bool
	writes  []int
}

func (s *fakeServo) Enable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
	return nil
}

func (s *fakeServo) Disable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	return nil
}

func (s *fakeServo) Position(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, nil
}

func (s *fakeServo) SetPositionWithTime(ctx context.Context, position, timeMs int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, position)
	if !s.stuck {
		s.pos = position
	}
	return nil
}

func newTestServoMotor(servo *fakeServo, cal JointCalibration) (*ServoMotor, *testingclock.FakeClock) {
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	return newServoMotor(Shoulder, servo, cal, clk), clk
}

func TestServoMotor_RunToAbsPos(t *testing.T) {
	ctx := context.Background()
	servo := &fakeServo{pos: 2048}
	m, _ := newTestServoMotor(servo, JointCalibration{ID: 1, HomingOffset: 2048})

	require.NoError(t, m.RunToAbsPos(ctx, -60, 200, Hold))
	assert.Equal(t, []int{1365}, servo.writes)
	assert.True(t, servo.enabled, "hold keeps torque on")

	pos, err := m.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, -60, pos)
}

func TestServoMotor_RelativeMoveCoastsByDefault(t *testing.T) {
	ctx := context.Background()
	servo := &fakeServo{pos: 2048}
	m, _ := newTestServoMotor(servo, JointCalibration{ID: 3, HomingOffset: 2048})

	require.NoError(t, m.RunToRelPos(ctx, 90, 400))
	assert.Equal(t, 3072, servo.pos)
	assert.False(t, servo.enabled)
}

func TestServoMotor_ConfiguredStopAction(t *testing.T) {
	ctx := context.Background()
	servo := &fakeServo{pos: 2048}
	m, _ := newTestServoMotor(servo, JointCalibration{ID: 2, HomingOffset: 2048, StopAction: Hold})

	require.NoError(t, m.RunToRelPos(ctx, 180, 100))
	assert.True(t, servo.enabled)
}

func TestServoMotor_AbsoluteMoveDefaultStop(t *testing.T) {
	tests := []struct {
		name       string
		configured StopAction
		wantTorque bool
	}{
		{"unconfigured coasts", "", false},
		{"configured hold", Hold, true},
		{"configured brake", Brake, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			servo := &fakeServo{pos: 2048}
			m, _ := newTestServoMotor(servo, JointCalibration{ID: 2, HomingOffset: 2048, StopAction: tt.configured})

			require.NoError(t, m.RunToAbsPos(context.Background(), 0, 100, DefaultStop))
			assert.Equal(t, tt.wantTorque, servo.enabled)
		})
	}
}

func TestServoMotor_MoveTimeout(t *testing.T) {
	ctx := context.Background()
	servo := &fakeServo{pos: 2048, stuck: true}
	m, clk := newTestServoMotor(servo, JointCalibration{ID: 1, HomingOffset: 2048})

	err := m.RunToAbsPos(ctx, 90, 900, Hold)
	require.ErrorIs(t, err, ErrMoveTimeout)
	// 90 degrees at 900 deg/s plus the settle window
	assert.GreaterOrEqual(t, clk.Since(time.Unix(0, 0)), 100*time.Millisecond+settleTimeout)
}

func TestServoMotor_RunForeverThenStop(t *testing.T) {
	ctx := context.Background()
	servo := &fakeServo{pos: 2048}
	m, _ := newTestServoMotor(servo, JointCalibration{ID: 2, HomingOffset: 2048})

	require.NoError(t, m.RunForever(ctx, -1000))
	assert.True(t, servo.enabled)

	require.NoError(t, m.Stop(ctx))
	assert.False(t, servo.enabled, "default stop action coasts")

	// Stopping again is harmless.
	require.NoError(t, m.Stop(ctx))
}

func TestServoMotor_Reset(t *testing.T) {
	ctx := context.Background()
	servo := &fakeServo{pos: 1500}
	m, _ := newTestServoMotor(servo, JointCalibration{ID: 1, HomingOffset: 2048})

	require.NoError(t, m.Reset(ctx))
	pos, err := m.Position(ctx)
	require.NoError(t, err)
	assert.Zero(t, pos)
}

func TestTravelTime(t *testing.T) {
	assert.Equal(t, time.Duration(0), travelTime(0, 4096, 0))
	// One full turn at 360 deg/s
	assert.Equal(t, time.Second, travelTime(0, 4096, 360))
	assert.Equal(t, time.Second, travelTime(4096, 0, -360))
}
