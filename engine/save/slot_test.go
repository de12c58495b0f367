package save

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nathoo/ifkit/types"
)

func TestSlot_WriteRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	d := &Data{
		Session:    "s1",
		Moves:      2,
		Instances:  []Instance{{ID: "box", Type: "c"}},
		Facts:      []types.Fact{{Predicate: "open", Args: []string{"box"}}},
		CommandLog: []string{"open box", "close box"},
	}
	if err := WriteSlot(dir, "", d); err != nil {
		t.Fatalf("WriteSlot() error: %v", err)
	}
	got, err := ReadSlot(dir, DefaultSlot)
	if err != nil {
		t.Fatalf("ReadSlot() error: %v", err)
	}
	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("slot mismatch (-want +got):\n%s", diff)
	}
}

func TestSlot_Missing(t *testing.T) {
	_, err := ReadSlot(t.TempDir(), "nope")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadSlot() error = %v, want not-exist", err)
	}
}

func TestSlotPath(t *testing.T) {
	if got := SlotPath("/saves", "a"); got != filepath.Join("/saves", "a.json") {
		t.Errorf("SlotPath() = %q", got)
	}
	if got := SlotPath("/saves", ""); got != filepath.Join("/saves", "quicksave.json") {
		t.Errorf("SlotPath(empty) = %q", got)
	}
}
