package save

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSlot is used when a save or load names no slot.
const DefaultSlot = "quicksave"

// SlotPath returns the file a named slot lives in.
func SlotPath(dir, slot string) string {
	if slot == "" {
		slot = DefaultSlot
	}
	return filepath.Join(dir, slot+".json")
}

// WriteSlot marshals d into the named slot under dir, creating dir.
func WriteSlot(dir, slot string, d *Data) error {
	data, err := Marshal(d)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating save dir: %w", err)
	}
	return os.WriteFile(SlotPath(dir, slot), data, 0o644)
}

// ReadSlot loads the named slot from dir.
func ReadSlot(dir, slot string) (*Data, error) {
	data, err := os.ReadFile(SlotPath(dir, slot))
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
