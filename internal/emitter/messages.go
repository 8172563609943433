package emitter

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Message is anything the emitter can publish.
// Type selects the topic suffix and the QoS entry.
type Message interface {
	Type() string
}

// Hand is the latched state of one hand.
type Hand struct {
	Hand    string  `json:"hand" msgpack:"hand"`
	Event   string  `json:"event" msgpack:"event"`
	Gripped bool    `json:"gripped" msgpack:"gripped"`
	X       float64 `json:"x" msgpack:"x"`
	Y       float64 `json:"y" msgpack:"y"`
}

// User is one tracked user of a hands snapshot.
type User struct {
	TrackingID int     `json:"tracking_id" msgpack:"tracking_id"`
	HeadY      float32 `json:"head_y,omitempty" msgpack:"head_y,omitempty"`
	Hands      []Hand  `json:"hands" msgpack:"hands"`
}

// HandsSnapshot is the joined hand state plus skeleton context of one tick.
type HandsSnapshot struct {
	InstanceID string `json:"instance_id" msgpack:"instance_id"`
	Timestamp  int64  `json:"timestamp_ms" msgpack:"timestamp_ms"`
	Users      []User `json:"users" msgpack:"users"`
}

// Type implements Message.
func (HandsSnapshot) Type() string { return "hands" }

// GripChange is emitted when a hand's latched state flips.
type GripChange struct {
	InstanceID string `json:"instance_id" msgpack:"instance_id"`
	Timestamp  int64  `json:"timestamp_ms" msgpack:"timestamp_ms"`
	TrackingID int    `json:"tracking_id" msgpack:"tracking_id"`
	Hand       string `json:"hand" msgpack:"hand"`
	Gripped    bool   `json:"gripped" msgpack:"gripped"`
}

// Type implements Message.
func (GripChange) Type() string { return "grips" }

// Encoder turns a message into a payload.
type Encoder func(v any) ([]byte, error)

// NewEncoder returns the encoder for a configured encoding name.
func NewEncoder(name string) (Encoder, error) {
	switch name {
	case "", "json":
		return json.Marshal, nil
	case "msgpack":
		return msgpack.Marshal, nil
	default:
		return nil, fmt.Errorf("emitter: unknown encoding %q", name)
	}
}
