package gadget

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

// Activator runs command tokens on the arm.
type Activator interface {
	Activate(ctx context.Context, token string, speed int) error
}

// HandlerConfig holds the collaborators of a Handler.
type HandlerConfig struct {
	// Name is the gadget's friendly name used in connection messages.
	Name      string
	Activator Activator
	Indicator Indicator
	Metrics   *Metrics
	Logger    *log.Logger
}

// Handler sits between a directive transport and the sequencer: it
// validates payloads, dispatches commands and reacts to link changes.
type Handler struct {
	name      string
	activator Activator
	indicator Indicator
	metrics   *Metrics
	logger    *log.Logger
}

// NewHandler creates a handler. Indicator and Logger are optional.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		name:      cfg.Name,
		activator: cfg.Activator,
		indicator: cfg.Indicator,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	if h.indicator == nil {
		h.indicator = &LogIndicator{Logger: cfg.Logger}
	}
	if h.logger == nil {
		h.logger = log.Default()
	}
	return h
}

// Handle processes one raw control payload. Malformed payloads are logged
// and dropped without an error; only motor failures are returned.
func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	if err := h.Receive(ctx, payload); !errors.Is(err, ErrMalformedDirective) {
		return err
	}
	return nil
}

// Receive is Handle for transports that answer the sender: a malformed
// payload is counted and reported as ErrMalformedDirective.
func (h *Handler) Receive(ctx context.Context, payload []byte) error {
	d, err := ParseDirective(payload)
	if err != nil {
		h.logger.Warn("Missing expected parameters", "payload", string(payload), "err", err)
		h.count(OutcomeMalformed)
		return err
	}
	h.logger.Info("Control payload", "type", d.Type, "command", d.Command)
	return h.Dispatch(ctx, d)
}

// Dispatch runs a parsed directive. Directive types other than "command"
// are accepted and ignored.
func (h *Handler) Dispatch(ctx context.Context, d Directive) error {
	if d.Type != TypeCommand {
		h.logger.Debug("Ignoring directive", "type", d.Type)
		h.count(OutcomeIgnored)
		return nil
	}

	start := time.Now()
	err := h.activator.Activate(ctx, d.Command, DefaultSpeed)
	switch {
	case err != nil:
		h.logger.Error("Command failed", "command", d.Command, "err", err)
		h.count(OutcomeFailed)
	case len(Resolve(d.Command)) == 0:
		h.count(OutcomeUnknown)
	default:
		h.count(OutcomeDispatched)
		if h.metrics != nil {
			h.metrics.CommandDuration.WithLabelValues(d.Command).Observe(time.Since(start).Seconds())
		}
	}
	return err
}

// Connected is called when the link to the voice assistant comes up.
func (h *Handler) Connected(addr string) {
	h.indicator.SetColor(Green)
	if h.metrics != nil {
		h.metrics.Connected.Set(1)
	}
	h.logger.Info(h.name+" connected", "device", addr)
}

// Connecting is called while the link to the voice assistant is being
// (re)established.
func (h *Handler) Connecting(addr string) {
	h.indicator.SetColor(Amber)
	if h.metrics != nil {
		h.metrics.Connected.Set(0)
	}
	h.logger.Debug(h.name+" connecting", "device", addr)
}

// Disconnected is called when the link to the voice assistant drops.
func (h *Handler) Disconnected(addr string) {
	h.indicator.SetColor(Black)
	if h.metrics != nil {
		h.metrics.Connected.Set(0)
	}
	h.logger.Info(h.name+" disconnected", "device", addr)
}

func (h *Handler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.Directives.WithLabelValues(outcome).Inc()
	}
}
