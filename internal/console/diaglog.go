package console

import (
	"sync"

	"github.com/danielledeleo/wikiforge/internal/wikitext"
)

// PageDiagnostics pairs one page's accumulated diagnostics with its
// title, for the console's recent-activity view.
type PageDiagnostics struct {
	Title string               `json:"title"`
	Items []wikitext.Diagnostic `json:"items"`
}

// diagLog is a small ring buffer of the most recent pages' diagnostics,
// fed only through Server.Record; the replay command does not call
// Record, so in this module it is filled by direct callers such as the
// tests. It holds no page body
// text, only the diagnostic messages, so it stays cheap regardless of
// dump size.
type diagLog struct {
	mu       sync.Mutex
	capacity int
	items    []PageDiagnostics
	next     int
	filled   bool
}

func newDiagLog(capacity int) *diagLog {
	if capacity < 1 {
		capacity = 1
	}
	return &diagLog{capacity: capacity, items: make([]PageDiagnostics, capacity)}
}

// Record appends one page's diagnostics, evicting the oldest entry once
// the buffer is full. Pages with no diagnostics at all are skipped, so
// the log stays focused on pages that actually said something.
func (l *diagLog) Record(title string, items []wikitext.Diagnostic) {
	if len(items) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items[l.next] = PageDiagnostics{Title: title, Items: items}
	l.next = (l.next + 1) % l.capacity
	if l.next == 0 {
		l.filled = true
	}
}

// Recent returns the buffered entries, most recently recorded first.
func (l *diagLog) Recent() []PageDiagnostics {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.next
	if l.filled {
		n = l.capacity
	}
	out := make([]PageDiagnostics, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.next - 1 - i + l.capacity) % l.capacity
		out = append(out, l.items[idx])
	}
	return out
}
