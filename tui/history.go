// Package tui provides a Bubble Tea terminal UI for play sessions.
package tui

// History keeps the most recent commands for Up/Down recall.
type History struct {
	entries []string
	limit   int
	pos     int // index into entries; len(entries) means "editing a fresh line"
}

// NewHistory creates a history holding at most limit commands.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Push records a command and resets recall. A command equal to the newest
// entry is not stored twice.
func (h *History) Push(cmd string) {
	if n := len(h.entries); n == 0 || h.entries[n-1] != cmd {
		h.entries = append(h.entries, cmd)
		if over := len(h.entries) - h.limit; over > 0 {
			h.entries = append([]string(nil), h.entries[over:]...)
		}
	}
	h.ResetCursor()
}

// Prev steps back to an older command, stopping at the oldest.
func (h *History) Prev() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.pos > 0 {
		h.pos--
	}
	return h.entries[h.pos], true
}

// Next steps forward to a newer command. Stepping past the newest returns
// false and leaves recall.
func (h *History) Next() (string, bool) {
	if h.pos >= len(h.entries)-1 {
		h.ResetCursor()
		return "", false
	}
	h.pos++
	return h.entries[h.pos], true
}

// Len returns the number of stored commands.
func (h *History) Len() int { return len(h.entries) }

// ResetCursor leaves recall; the next Prev returns the newest command.
func (h *History) ResetCursor() { h.pos = len(h.entries) }
