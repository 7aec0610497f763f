package tui

// History holds submitted command lines for Up/Down recall.
type History struct {
	entries []string
	max     int
	cursor  int // -1 when not navigating
}

// NewHistory creates a history that keeps at most max entries.
func NewHistory(max int) *History {
	return &History{max: max, cursor: -1}
}

// Push records a command. A repeat of the most recent entry is dropped.
func (h *History) Push(cmd string) {
	if n := len(h.entries); n > 0 && h.entries[n-1] == cmd {
		return
	}
	h.entries = append(h.entries, cmd)
	if over := len(h.entries) - h.max; over > 0 {
		h.entries = h.entries[over:]
	}
}

// Prev steps back to an older entry, stopping at the oldest.
func (h *History) Prev() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.cursor < 0:
		h.cursor = len(h.entries) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next steps forward to a newer entry. Past the newest it returns false and
// stops navigating.
func (h *History) Next() (string, bool) {
	if h.cursor < 0 {
		return "", false
	}
	if h.cursor++; h.cursor < len(h.entries) {
		return h.entries[h.cursor], true
	}
	h.cursor = -1
	return "", false
}

// ResetCursor stops navigating.
func (h *History) ResetCursor() {
	h.cursor = -1
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	return len(h.entries)
}
