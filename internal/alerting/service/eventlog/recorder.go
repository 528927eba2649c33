package eventlog

import (
	"sync"
	"time"

	"github.com/qiniu/cloudmonitor/internal/alerting/model"
)

// Recorder is a bounded, append-only classification log. Once full, every
// append evicts the oldest entry.
type Recorder struct {
	mu      sync.RWMutex
	entries []model.LogEntry
	head    int // index of the oldest entry once the buffer has wrapped
	full    bool
}

// NewRecorder returns a recorder holding at most capacity entries.
// Non-positive capacities fall back to model.DefaultLogCapacity.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = model.DefaultLogCapacity
	}
	return &Recorder{entries: make([]model.LogEntry, 0, capacity)}
}

// Record appends one classified sample and returns the stored entry.
func (r *Recorder) Record(s model.Sample, severity model.Severity, now time.Time) model.LogEntry {
	entry := model.LogEntry{
		Timestamp:   now,
		Latency:     s.Latency,
		FailureRate: s.FailureRate,
		Severity:    severity,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		r.entries = append(r.entries, entry)
		if len(r.entries) == cap(r.entries) {
			r.full = true
		}
		return entry
	}
	r.entries[r.head] = entry
	r.head = (r.head + 1) % len(r.entries)
	return entry
}

// Entries exports the log, oldest first.
func (r *Recorder) Entries() []model.LogEntry {
	return r.Tail(0)
}

// Tail exports the newest n entries, oldest first. n <= 0 exports everything.
func (r *Recorder) Tail(n int) []model.LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := len(r.entries)
	if n <= 0 || n > size {
		n = size
	}
	out := make([]model.LogEntry, 0, n)
	for i := size - n; i < size; i++ {
		out = append(out, r.entries[(r.head+i)%size])
	}
	return out
}

func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Recorder) Cap() int { return cap(r.entries) }
