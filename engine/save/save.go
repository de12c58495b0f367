// Package save implements JSON serialization and deserialization of play
// sessions.
package save

import (
	"encoding/json"
	"fmt"

	"github.com/nathoo/ifkit/types"
)

// Version is the current save format version.
const Version = 1

// MaxRNGPosition bounds the saved generator position; restoring replays
// every draw up to it.
const MaxRNGPosition = 1 << 24

// Instance is one declared instance of a saved world.
type Instance struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// RNG is the saved position of the random agent's generator.
type RNG struct {
	Seed     int64 `json:"seed"`
	Position int64 `json:"position"`
}

// Data is the JSON-serializable save format.
type Data struct {
	Version    int          `json:"version"`
	Session    string       `json:"session"`
	Moves      int          `json:"moves"`
	Instances  []Instance   `json:"instances"`
	Facts      []types.Fact `json:"facts"`
	CommandLog []string     `json:"command_log"`
	RNG        *RNG         `json:"rng,omitempty"`
}

// Marshal serializes a session snapshot to indented JSON.
func Marshal(d *Data) ([]byte, error) {
	if d.Version == 0 {
		d.Version = Version
	}
	return json.MarshalIndent(d, "", "  ")
}

// Unmarshal deserializes a snapshot. Slices are never nil after loading.
func Unmarshal(data []byte) (*Data, error) {
	var d Data
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding save: %w", err)
	}
	if d.Version > Version {
		return nil, fmt.Errorf("save version %d is newer than supported version %d", d.Version, Version)
	}
	if d.RNG != nil && (d.RNG.Position < 0 || d.RNG.Position > MaxRNGPosition) {
		return nil, fmt.Errorf("save rng position %d out of range [0, %d]", d.RNG.Position, MaxRNGPosition)
	}
	if d.Instances == nil {
		d.Instances = []Instance{}
	}
	if d.Facts == nil {
		d.Facts = []types.Fact{}
	}
	for i, f := range d.Facts {
		if f.Args == nil {
			d.Facts[i].Args = []string{}
		}
	}
	if d.CommandLog == nil {
		d.CommandLog = []string{}
	}
	return &d, nil
}
