package gadget

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Color is the state shown on the gadget's status lights.
type Color string

const (
	Green Color = "green"
	Amber Color = "amber"
	Black Color = "black"
)

// Indicator shows connection feedback to the user.
type Indicator interface {
	SetColor(c Color)
}

// LogIndicator reports color changes in the log.
type LogIndicator struct {
	Logger *log.Logger

	mu    sync.Mutex
	color Color
}

func (l *LogIndicator) SetColor(c Color) {
	l.mu.Lock()
	changed := l.color != c
	l.color = c
	l.mu.Unlock()

	if !changed {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Debug("Indicator", "color", c)
}

// Color returns the last color set.
func (l *LogIndicator) Color() Color {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

// Indicators fans a color change out to several indicators.
type Indicators []Indicator

func (is Indicators) SetColor(c Color) {
	for _, i := range is {
		i.SetColor(c)
	}
}
