package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Message is the wire shape of every bus payload: tags identify the origin
// (always at least area and device), fields carry the measured or commanded
// scalars.
type Message struct {
	Tags   map[string]string      `json:"tags"`
	Fields map[string]interface{} `json:"fields"`
}

const (
	TagArea   = "area"
	TagDevice = "device"
)

func NewMessage(area, device string) Message {
	return Message{
		Tags:   map[string]string{TagArea: area, TagDevice: device},
		Fields: map[string]interface{}{},
	}
}

// DecodeMessage parses a JSON payload into a Message. Missing tags or fields
// decode to empty maps so lookups stay safe.
func DecodeMessage(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("model: bad message payload: %w", err)
	}
	if m.Tags == nil {
		m.Tags = map[string]string{}
	}
	if m.Fields == nil {
		m.Fields = map[string]interface{}{}
	}
	return m, nil
}

func (m Message) Encode() []byte {
	b, _ := json.Marshal(m)
	return b
}

// Device returns the originating device tag.
func (m Message) Device() string { return m.Tags[TagDevice] }

// Area returns the originating area tag.
func (m Message) Area() string { return m.Tags[TagArea] }

// Float returns a field coerced to float64. Strings are parsed, accepting a
// comma decimal separator.
func (m Message) Float(field string) (float64, error) {
	v, ok := m.Fields[field]
	if !ok {
		return 0, fmt.Errorf("model: field %q missing", field)
	}
	return ToFloat(v)
}

// ToFloat coerces a scalar field value to float64.
func ToFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", "."), 64)
		if err != nil {
			return 0, fmt.Errorf("model: cannot coerce %q to float", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("model: cannot coerce %T to float", v)
	}
}
