package prompt

import "strings"

// History keeps the most recent distinct input lines, oldest first.
type History struct {
	limit   int
	entries []string
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 25
	}
	return &History{limit: limit}
}

// Add records line and reports whether earlier entries were reordered or dropped.
func (h *History) Add(line string) (rewritten bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	for i, existing := range h.entries {
		if existing == line {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			rewritten = true
			break
		}
	}
	h.entries = append(h.entries, line)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
		rewritten = true
	}
	return rewritten
}

func (h *History) Entries() []string {
	return append([]string(nil), h.entries...)
}
