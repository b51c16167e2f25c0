package domain

import (
	"sort"
	"strings"
)

// ProcessSeparator joins the status prefix and the note in a process text.
const ProcessSeparator = " - "

// ParseProcessStatus reads the status prefix of a process text ("Paid - payment received").
// Text without a recognised prefix returns false.
func ParseProcessStatus(text string) (OrderStatus, bool) {
	prefix, _, found := strings.Cut(text, ProcessSeparator)
	if !found {
		return "", false
	}
	st := OrderStatus(strings.TrimSpace(prefix))
	if !st.IsValid() {
		return "", false
	}
	return st, true
}

// FormatProcess builds the display text of a process entry.
func FormatProcess(status OrderStatus, note string) string {
	return string(status) + ProcessSeparator + note
}

// StripStatusPrefix removes a leading "<status> - " from note so that notes
// sent already prefixed are not prefixed twice.
func StripStatusPrefix(status OrderStatus, note string) string {
	note = strings.TrimSpace(note)
	prefix := string(status) + ProcessSeparator
	if len(note) >= len(prefix) && strings.EqualFold(note[:len(prefix)], prefix) {
		return strings.TrimSpace(note[len(prefix):])
	}
	return note
}

// EffectiveStatus returns the tagged status of the entry, falling back to the
// prefix of its process text for entries recorded without a tag.
func (e ProcessEntry) EffectiveStatus() (OrderStatus, bool) {
	if e.Status.IsValid() {
		return e.Status, true
	}
	return ParseProcessStatus(e.Process)
}

// CompletedStatuses returns the statuses seen at least once in entries, in StatusFlow order.
// Entries without a recognisable status are skipped.
func CompletedStatuses(entries []ProcessEntry) []OrderStatus {
	seen := make(map[OrderStatus]bool, len(StatusFlow))
	for _, e := range entries {
		if st, ok := e.EffectiveStatus(); ok {
			seen[st] = true
		}
	}

	out := make([]OrderStatus, 0, len(seen))
	for _, st := range StatusFlow {
		if seen[st] {
			out = append(out, st)
		}
	}
	return out
}

// FirstEntryFor returns the earliest entry recorded for status.
func FirstEntryFor(entries []ProcessEntry, status OrderStatus) (ProcessEntry, bool) {
	var (
		first ProcessEntry
		found bool
	)
	for _, e := range entries {
		st, ok := e.EffectiveStatus()
		if !ok || st != status {
			continue
		}
		if !found || e.Date.Before(first.Date) {
			first = e
			found = true
		}
	}
	return first, found
}

// SortProcessesByDate returns a sorted copy of entries. Ties keep log order (Sequence).
func SortProcessesByDate(entries []ProcessEntry, desc bool) []ProcessEntry {
	out := make([]ProcessEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date.Equal(b.Date) {
			if desc {
				return a.Sequence > b.Sequence
			}
			return a.Sequence < b.Sequence
		}
		if desc {
			return a.Date.After(b.Date)
		}
		return a.Date.Before(b.Date)
	})
	return out
}
