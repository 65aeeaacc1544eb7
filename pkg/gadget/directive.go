package gadget

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TypeCommand is the only directive type that moves the arm.
const TypeCommand = "command"

// ErrMalformedDirective is returned for payloads that are not JSON or lack
// a required key.
var ErrMalformedDirective = errors.New("malformed directive")

// Directive is a control payload from the voice assistant.
type Directive struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// ParseDirective decodes a control payload. Both "type" and "command"
// must be present.
func ParseDirective(payload []byte) (Directive, error) {
	var raw struct {
		Type    *string `json:"type"`
		Command *string `json:"command"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Directive{}, fmt.Errorf("%w: %v", ErrMalformedDirective, err)
	}
	if raw.Type == nil {
		return Directive{}, fmt.Errorf("%w: missing type", ErrMalformedDirective)
	}
	if raw.Command == nil {
		return Directive{}, fmt.Errorf("%w: missing command", ErrMalformedDirective)
	}
	return Directive{Type: *raw.Type, Command: *raw.Command}, nil
}
