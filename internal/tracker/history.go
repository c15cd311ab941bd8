package tracker

import (
	"time"

	"github.com/mason50x/sentinel/internal/events"
)

// Record is an immutable snapshot of one received event plus its receipt
// timestamp. Records exist for diagnostic inspection only; activity is never
// derived from them.
type Record struct {
	ID         string      `json:"id"`
	Kind       events.Kind `json:"kind"`
	RawKind    string      `json:"rawKind,omitempty"`
	SessionID  string      `json:"sessionId,omitempty"`
	TaskID     string      `json:"taskId,omitempty"`
	ToolName   string      `json:"toolName,omitempty"`
	ReceivedAt time.Time   `json:"receivedAt"`
}

// historyRing is a fixed-capacity ring buffer of records. Once full, each
// push evicts the oldest entry. Callers hold the tracker mutex.
type historyRing struct {
	records []Record
	next    int
	full    bool
}

func newHistoryRing(capacity int) *historyRing {
	return &historyRing{
		records: make([]Record, capacity),
	}
}

func (r *historyRing) push(record Record) {
	r.records[r.next] = record
	r.next++
	if r.next == len(r.records) {
		r.next = 0
		r.full = true
	}
}

func (r *historyRing) len() int {
	if r.full {
		return len(r.records)
	}
	return r.next
}

// newestFirst returns a copy of the retained records, most recent first.
func (r *historyRing) newestFirst() []Record {
	n := r.len()
	out := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.records)) % len(r.records)
		out = append(out, r.records[idx])
	}
	return out
}
