package save

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nathoo/ifkit/types"
)

func TestRoundTrip(t *testing.T) {
	in := &Data{
		Session: "6f1c2b1e-0000-4000-8000-000000000001",
		Moves:   3,
		Instances: []Instance{
			{ID: "apple", Type: "f"},
			{ID: "player_inventory", Type: "I"},
		},
		Facts: []types.Fact{
			{Predicate: "eaten", Args: []string{"apple"}},
			{Predicate: "in", Args: []string{"apple", "player_inventory"}},
		},
		CommandLog: []string{"eat apple", "look", "eat apple"},
		RNG:        &RNG{Seed: 42, Position: 7},
	}

	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if out.Version != Version {
		t.Errorf("Version = %d, want %d", out.Version, Version)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshal_ProducesValidJSON(t *testing.T) {
	data, err := Marshal(&Data{Session: "s"})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"version", "session", "moves", "instances", "facts", "command_log"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if _, ok := raw["rng"]; ok {
		t.Error("rng should be omitted when unset")
	}
}

func TestUnmarshal_MissingOptionalFields(t *testing.T) {
	d, err := Unmarshal([]byte(`{"version": 1, "facts": [{"predicate": "open"}]}`))
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if d.Instances == nil || d.CommandLog == nil {
		t.Error("slices should be non-nil after loading")
	}
	if d.Facts[0].Args == nil {
		t.Error("fact args should be non-nil after loading")
	}
	if d.RNG != nil {
		t.Error("RNG should stay nil when absent")
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"garbage", `{not json`, "decoding save"},
		{"future version", `{"version": 99}`, "newer than supported"},
		{"negative rng position", `{"version": 1, "rng": {"seed": 1, "position": -1}}`, "out of range"},
		{"huge rng position", `{"version": 1, "rng": {"seed": 1, "position": 9000000000000}}`, "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Unmarshal() error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}
