package gadget

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/armgadget/pkg/robot"
)

type fakeActivator struct {
	tokens []string
	err    error
}

func (f *fakeActivator) Activate(ctx context.Context, token string, speed int) error {
	f.tokens = append(f.tokens, token)
	return f.err
}

func newTestHandler(act Activator) (*Handler, *Metrics, *LogIndicator) {
	m := NewMetrics(prometheus.NewRegistry())
	ind := &LogIndicator{Logger: log.New(io.Discard)}
	h := NewHandler(HandlerConfig{
		Name:      "Gadget",
		Activator: act,
		Indicator: ind,
		Metrics:   m,
		Logger:    log.New(io.Discard),
	})
	return h, m, ind
}

func TestHandle_DispatchesCommand(t *testing.T) {
	act := &fakeActivator{}
	h, m, _ := newTestHandler(act)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"type":"command","command":"left"}`)))

	assert.Equal(t, []string{"left"}, act.tokens)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Directives.WithLabelValues(OutcomeDispatched)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CommandDuration))
}

func TestHandle_MalformedIsDropped(t *testing.T) {
	payloads := []string{
		`{"command":"go"}`,
		`{"type":"command"}`,
		`not json`,
	}

	act := &fakeActivator{}
	h, m, _ := newTestHandler(act)
	for _, p := range payloads {
		assert.NoError(t, h.Handle(context.Background(), []byte(p)), p)
	}

	assert.Empty(t, act.tokens)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Directives.WithLabelValues(OutcomeMalformed)))
}

func TestReceive_ReportsMalformed(t *testing.T) {
	act := &fakeActivator{}
	h, m, _ := newTestHandler(act)

	err := h.Receive(context.Background(), []byte(`{"type":"command"}`))
	require.ErrorIs(t, err, ErrMalformedDirective)
	assert.Empty(t, act.tokens)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Directives.WithLabelValues(OutcomeMalformed)))

	require.NoError(t, h.Receive(context.Background(), []byte(`{"type":"command","command":"right"}`)))
	assert.Equal(t, []string{"right"}, act.tokens)
}

func TestHandle_OtherTypesIgnored(t *testing.T) {
	act := &fakeActivator{}
	h, m, _ := newTestHandler(act)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"type":"event","command":"go"}`)))

	assert.Empty(t, act.tokens)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Directives.WithLabelValues(OutcomeIgnored)))
}

func TestHandle_UnknownToken(t *testing.T) {
	act := &fakeActivator{}
	h, m, _ := newTestHandler(act)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"type":"command","command":"dance"}`)))

	assert.Equal(t, []string{"dance"}, act.tokens)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Directives.WithLabelValues(OutcomeUnknown)))
}

func TestHandle_MotorFailureReturned(t *testing.T) {
	stall := errors.New("stall")
	act := &fakeActivator{err: stall}
	h, m, _ := newTestHandler(act)

	err := h.Handle(context.Background(), []byte(`{"type":"command","command":"go"}`))
	require.ErrorIs(t, err, stall)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Directives.WithLabelValues(OutcomeFailed)))
}

func TestHandler_ConnectionFeedback(t *testing.T) {
	var buf bytes.Buffer
	m := NewMetrics(prometheus.NewRegistry())
	ind := &LogIndicator{}
	h := NewHandler(HandlerConfig{
		Name:      "Gadget",
		Activator: &fakeActivator{},
		Indicator: ind,
		Metrics:   m,
		Logger:    log.New(&buf),
	})

	h.Connected("tcp://broker:1883")
	assert.Equal(t, Green, ind.Color())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connected))
	assert.Contains(t, buf.String(), "Gadget connected")

	h.Connecting("tcp://broker:1883")
	assert.Equal(t, Amber, ind.Color())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Connected))

	h.Disconnected("tcp://broker:1883")
	assert.Equal(t, Black, ind.Color())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Connected))
	assert.Contains(t, buf.String(), "Gadget disconnected")
}

func TestIndicators_FanOut(t *testing.T) {
	a, b := &LogIndicator{}, &LogIndicator{}
	Indicators{a, b}.SetColor(Amber)
	assert.Equal(t, Amber, a.Color())
	assert.Equal(t, Amber, b.Color())
}

// End to end: payload in, shoulder move out.
func TestHandle_LeftMovesShoulder(t *testing.T) {
	r := newRig()
	h, _, _ := newTestHandler(r.seq)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"type":"command","command":"left"}`)))
	assert.Equal(t, []call{
		{joint: robot.Shoulder, op: "abs", pos: 60, speed: 200, stop: robot.Hold},
	}, r.journal.all())

	require.NoError(t, h.Handle(context.Background(), []byte(`{"type":"command"}`)))
	assert.Len(t, r.journal.all(), 1)
}
