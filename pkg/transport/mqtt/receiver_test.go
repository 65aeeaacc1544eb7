package mqtt

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	mu       sync.Mutex
	payloads []string
	links    []string
	handled  chan struct{}
}

func (f *fakeHandler) Handle(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	f.payloads = append(f.payloads, string(payload))
	f.mu.Unlock()
	f.handled <- struct{}{}
	return nil
}

func (f *fakeHandler) Connecting(addr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, "connecting "+addr)
}

func (f *fakeHandler) Connected(addr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, "up "+addr)
}

func (f *fakeHandler) Disconnected(addr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, "down "+addr)
}

func newTestReceiver(t *testing.T, h DirectiveHandler) *Receiver {
	t.Helper()
	r, err := NewReceiver(Config{
		BrokerURL: "mqtt://localhost:1883",
		Topic:     "armgadget/directives",
	}, h, log.New(io.Discard))
	require.NoError(t, err)
	return r
}

func publish(topic, payload string) paho.PublishReceived {
	return paho.PublishReceived{
		Packet: &paho.Publish{Topic: topic, Payload: []byte(payload)},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"ok", Config{BrokerURL: "mqtt://b:1883", Topic: "t"}, ""},
		{"no broker", Config{Topic: "t"}, "broker url is required"},
		{"no topic", Config{BrokerURL: "mqtt://b:1883"}, "topic is required"},
		{"bad url", Config{BrokerURL: "://", Topic: "t"}, "broker url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewReceiverDefaults(t *testing.T) {
	r := newTestReceiver(t, &fakeHandler{})
	assert.Equal(t, "armgadget", r.cfg.ClientID)
	assert.Equal(t, byte(1), r.cfg.QoS)
	assert.Equal(t, uint16(30), r.cfg.KeepAlive)
	assert.Equal(t, 5*time.Second, r.cfg.ConnectTimeout)
}

func TestRouteDispatchesInOrder(t *testing.T) {
	h := &fakeHandler{handled: make(chan struct{}, 4)}
	r := newTestReceiver(t, h)

	ok, err := r.route(publish("armgadget/directives", `{"type":"command","command":"ready"}`))
	require.NoError(t, err)
	assert.True(t, ok)
	r.route(publish("other/topic", `{"type":"command","command":"left"}`))
	r.route(publish("armgadget/directives", `{"type":"command","command":"go"}`))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.work(ctx)
		close(done)
	}()
	<-h.handled
	<-h.handled
	cancel()
	<-done

	assert.Equal(t, []string{
		`{"type":"command","command":"ready"}`,
		`{"type":"command","command":"go"}`,
	}, h.payloads)
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	r := newTestReceiver(t, &fakeHandler{})
	for i := 0; i < inboxSize; i++ {
		require.True(t, r.enqueue([]byte("x")))
	}
	assert.False(t, r.enqueue([]byte("overflow")))
}

func TestLinkCallbacks(t *testing.T) {
	h := &fakeHandler{}
	r := newTestReceiver(t, h)

	r.onConnectError(assert.AnError)
	r.onServerDisconnect(&paho.Disconnect{})
	r.onClientError(assert.AnError)

	assert.Equal(t, []string{
		"connecting mqtt://localhost:1883",
		"down mqtt://localhost:1883",
		"down mqtt://localhost:1883",
	}, h.links)
}
