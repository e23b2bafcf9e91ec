package tools

import (
	"sync"
	"time"
)

// AuditEntry records one tool invocation for after-the-fact review.
type AuditEntry struct {
	Time       time.Time `json:"time"`
	Tool       string    `json:"tool"`
	Params     string    `json:"params"`
	Success    bool      `json:"success"`
	DurationMs int64     `json:"durationMs"`
}

// AuditLog is a capacity-bounded ring buffer of tool invocations shared by
// every tool call in the process. Oldest entries are overwritten once the
// capacity is reached.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	next    int
	full    bool
}

// NewAuditLog creates a ring buffer holding at most capacity entries.
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = 1024
	}
	return &AuditLog{entries: make([]AuditEntry, capacity)}
}

// Record appends an entry, overwriting the oldest when full.
func (l *AuditLog) Record(e AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = e
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

// Recent returns up to n entries, newest first.
func (l *AuditLog) Recent(n int) []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.next
	if l.full {
		size = len(l.entries)
	}
	if n > size {
		n = size
	}

	out := make([]AuditEntry, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.next - 1 - i + len(l.entries)) % len(l.entries)
		out = append(out, l.entries[idx])
	}
	return out
}

// Len returns the number of entries currently held.
func (l *AuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.full {
		return len(l.entries)
	}
	return l.next
}
