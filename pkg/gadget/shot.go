package gadget

import (
	"context"
	"errors"
	"time"

	"github.com/looplab/fsm"

	"github.com/gwillem/armgadget/pkg/robot"
)

const (
	shotTimeout      = 5 * time.Second
	shotRelease      = 450 * time.Millisecond
	shotSettle       = 100 * time.Millisecond
	shotWindSpeed    = -1000
	shotWristOpen    = 80
	shotWristSpeed   = 300
	shotRecoil       = 180
	shotRecoverSpeed = 100
)

// Shot states and events.
const (
	shotIdle     = "idle"
	shotWinding  = "winding"
	shotReleased = "released"
	shotExpired  = "expired"

	eventWind    = "wind"
	eventRelease = "release"
	eventExpire  = "expire"
)

// shot is the state machine behind the go command: the elbow winds up,
// the wrist lets go of the ball once the swing has built up, and the elbow
// stops. Motor errors raised inside callbacks are kept in err.
type shot struct {
	seq *Sequencer
	fsm *fsm.FSM
	err error
}

func newShot(s *Sequencer) *shot {
	sh := &shot{seq: s}
	sh.fsm = fsm.NewFSM(
		shotIdle,
		fsm.Events{
			{Name: eventWind, Src: []string{shotIdle}, Dst: shotWinding},
			{Name: eventRelease, Src: []string{shotWinding}, Dst: shotReleased},
			{Name: eventExpire, Src: []string{shotWinding}, Dst: shotExpired},
		},
		fsm.Callbacks{
			"enter_" + shotWinding: func(ctx context.Context, e *fsm.Event) {
				sh.err = s.arm.Elbow.RunForever(ctx, shotWindSpeed)
			},
			"enter_" + shotReleased: func(ctx context.Context, e *fsm.Event) {
				if sh.err = s.arm.Wrist.RunToRelPos(ctx, shotWristOpen, shotWristSpeed); sh.err != nil {
					return
				}
				s.clock.Sleep(shotSettle)
				sh.err = s.arm.Elbow.Stop(ctx)
			},
			"enter_" + shotExpired: func(ctx context.Context, e *fsm.Event) {
				s.logger.Warn("Release point never reached, stopping elbow", "timeout", shotTimeout)
				sh.err = s.arm.Elbow.Stop(ctx)
			},
		},
	)
	return sh
}

func (sh *shot) fire(ctx context.Context, event string) error {
	if err := sh.fsm.Event(ctx, event); err != nil {
		return err
	}
	return sh.err
}

// shoot swings the elbow, releases the ball after shotRelease and brings
// the elbow back to zero. If shotTimeout passes without the release point
// being seen, the elbow is stopped before recovering.
func (s *Sequencer) shoot(ctx context.Context) error {
	sh := newShot(s)

	start := s.clock.Now()
	if err := sh.fire(ctx, eventWind); err != nil {
		return err
	}
	for s.clock.Since(start) < shotTimeout {
		if s.clock.Since(start) > shotRelease {
			if err := sh.fire(ctx, eventRelease); err != nil {
				return s.abortShot(ctx, err)
			}
			break
		}
		s.clock.Sleep(s.pollInterval)
	}
	if sh.fsm.Is(shotWinding) {
		if err := sh.fire(ctx, eventExpire); err != nil {
			return s.abortShot(ctx, err)
		}
	}

	if err := s.arm.Elbow.RunToRelPos(ctx, shotRecoil, shotRecoverSpeed); err != nil {
		return err
	}
	return s.arm.Elbow.RunToAbsPos(ctx, 0, shotRecoverSpeed, robot.DefaultStop)
}

// abortShot stops the elbow after a failed swing so it does not keep
// winding, and returns err together with any stop failure.
func (s *Sequencer) abortShot(ctx context.Context, err error) error {
	s.logger.Error("Swing failed, stopping elbow", "err", err)
	return errors.Join(err, s.arm.Elbow.Stop(ctx))
}
