// Package armgadget drives a three-joint toy arm from voice assistant
// directives.
//
// Directives are small JSON payloads such as
// {"type":"command","command":"go"} that arrive over MQTT or HTTP. Each
// command token maps to a fixed motion: turn the shoulder left, right or
// straight, pick up a ball, or wind up the elbow and throw.
//
// # Installation
//
//	go install github.com/gwillem/armgadget/cmd/armgadget@latest
//
// # Usage
//
// First, find the arm and record its home pose:
//
//	armgadget setup
//
// Then listen for directives:
//
//	armgadget run --broker mqtt://localhost:1883 --listen :8080
//
// Try a single command without any hardware:
//
//	armgadget do go --simulate
//
// # Packages
//
//   - cmd/armgadget: CLI with setup, run and do commands
//   - pkg/robot: Motors, calibration, configuration and a simulated arm
//   - pkg/gadget: Command tokens, directive handling and motion sequences
//   - pkg/transport/mqtt: Directive receiver for an MQTT broker
//   - pkg/transport/httpapi: HTTP directive endpoint, health and metrics
//   - pkg/monitor: Joint sampling for the live dashboard
package armgadget
