// Package monitor samples joint positions for the live dashboard.
package monitor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/gwillem/armgadget/pkg/robot"
)

// State is one sample of the arm.
type State struct {
	Positions map[robot.Joint]int
	// Status is the last link status set with SetStatus.
	Status    string
	Timestamp time.Time
	Error     error
}

// Config holds configuration for the monitor.
type Config struct {
	Motors map[robot.Joint]robot.Motor
	// Hz is the sampling rate. Default is 20.
	Hz    int
	Clock clock.WithTicker
}

// Monitor polls joint positions and collects log lines for display.
// It implements io.Writer so a logger can write into it.
type Monitor struct {
	motors map[robot.Joint]robot.Motor
	hz     int
	clock  clock.WithTicker

	mu      sync.Mutex
	running bool
	partial []byte
	status  string

	stateCh chan State
	logCh   chan string
}

// New creates a monitor.
func New(cfg Config) *Monitor {
	if cfg.Hz <= 0 {
		cfg.Hz = 20
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	return &Monitor{
		motors:  cfg.Motors,
		hz:      cfg.Hz,
		clock:   cfg.Clock,
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 64),
	}
}

// States returns a channel that receives the latest sample.
func (m *Monitor) States() <-chan State {
	return m.stateCh
}

// Logs returns a channel that receives log lines.
func (m *Monitor) Logs() <-chan string {
	return m.logCh
}

// Hz returns the sampling rate.
func (m *Monitor) Hz() int {
	return m.hz
}

// SetStatus records the link status reported with every sample.
func (m *Monitor) SetStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

func (m *Monitor) currentStatus() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Write splits p into lines and forwards each to Logs. Lines are dropped
// when nobody reads them.
func (m *Monitor) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.partial = append(m.partial, p...)
	for {
		i := bytes.IndexByte(m.partial, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(m.partial[:i]), "\r")
		m.partial = m.partial[i+1:]
		if line == "" {
			continue
		}
		select {
		case m.logCh <- line:
		default:
		}
	}
	return len(p), nil
}

// Run samples until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("already running")
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	ticker := m.clock.NewTicker(time.Second / time.Duration(m.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			m.Sample(ctx)
		}
	}
}

// Sample reads every joint once and publishes the result.
func (m *Monitor) Sample(ctx context.Context) State {
	s := State{
		Positions: make(map[robot.Joint]int, len(m.motors)),
		Status:    m.currentStatus(),
		Timestamp: m.clock.Now(),
	}
	for _, j := range robot.AllJoints() {
		mot, ok := m.motors[j]
		if !ok {
			continue
		}
		pos, err := mot.Position(ctx)
		if err != nil {
			s.Error = fmt.Errorf("read %s: %w", j, err)
			break
		}
		s.Positions[j] = pos
	}
	m.publish(s)
	return s
}

// publish replaces any unread sample with s.
func (m *Monitor) publish(s State) {
	select {
	case m.stateCh <- s:
	default:
		select {
		case <-m.stateCh:
		default:
		}
		select {
		case m.stateCh <- s:
		default:
		}
	}
}
