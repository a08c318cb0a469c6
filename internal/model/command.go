package model

import (
	"errors"
	"fmt"
)

// CommandKind is the closed set of command types a device runtime accepts.
// Decoding an unknown kind is a typed error at the bus boundary, not a
// silent no-op inside the runtime.
type CommandKind string

const (
	// CommandRunning starts or stops the whole device.
	CommandRunning CommandKind = "running"
	// CommandAction switches the actuator.
	CommandAction CommandKind = "action"
	// CommandOpt switches the actuator; emitted by the rule engine and the
	// lighting controller.
	CommandOpt CommandKind = "opt"
)

var ErrUnknownCommandKind = errors.New("model: unknown command kind")

// Command is a decoded device command.
type Command struct {
	Kind   CommandKind
	Status bool
	// DurationSeconds is informational: the watering controller publishes the
	// planned ON window alongside the command so collaborators can display it.
	// The device does not schedule its own OFF from it.
	DurationSeconds float64
}

// DecodeCommand parses a command payload ({type, status[, duration_s]}).
func DecodeCommand(payload []byte) (Command, error) {
	m, err := DecodeMessage(payload)
	if err != nil {
		return Command{}, err
	}
	kindRaw, ok := m.Fields["type"].(string)
	if !ok {
		return Command{}, fmt.Errorf("%w: missing type field", ErrUnknownCommandKind)
	}
	kind := CommandKind(kindRaw)
	switch kind {
	case CommandRunning, CommandAction, CommandOpt:
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommandKind, kindRaw)
	}

	status, err := decodeStatus(m.Fields["status"])
	if err != nil {
		return Command{}, err
	}

	cmd := Command{Kind: kind, Status: status}
	if d, ok := m.Fields["duration_s"]; ok {
		if f, err := ToFloat(d); err == nil {
			cmd.DurationSeconds = f
		}
	}
	return cmd, nil
}

func decodeStatus(v interface{}) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64: // JSON numbers arrive as float64
		return t != 0, nil
	case nil:
		return false, errors.New("model: command missing status field")
	default:
		return false, fmt.Errorf("model: bad command status %v", v)
	}
}

// Message renders the command back to the wire shape, with tags identifying
// the publisher.
func (c Command) Message(area, device string) Message {
	m := NewMessage(area, device)
	m.Fields["type"] = string(c.Kind)
	m.Fields["status"] = c.Status
	if c.DurationSeconds > 0 {
		m.Fields["duration_s"] = c.DurationSeconds
	}
	return m
}
