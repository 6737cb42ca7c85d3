package oplog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultCapacity bounds the in-memory log; one month of per-minute
// operations fits comfortably.
const DefaultCapacity = 50000

// Entry is one observability record. Entries are advisory only; the event
// log stays the source of truth.
type Entry struct {
	OperationType string        `json:"operation_type"`
	AggregateID   string        `json:"aggregate_id"`
	Amount        int           `json:"amount"`
	Success       bool          `json:"success"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Duration      time.Duration `json:"duration"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Sink receives every recorded entry, typically for durable storage
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// Recorder keeps a bounded ring of operation entries and mirrors them to
// Prometheus and an optional durable sink.
type Recorder struct {
	mu      sync.RWMutex
	entries []Entry
	start   int
	count   int
	metrics *Metrics
	sink    Sink
}

// NewRecorder creates a recorder holding up to capacity entries. metrics may
// be nil when Prometheus is not wired.
func NewRecorder(capacity int, metrics *Metrics) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		entries: make([]Entry, capacity),
		metrics: metrics,
	}
}

// Record appends an entry, evicting the oldest when full
func (r *Recorder) Record(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	r.mu.Lock()
	idx := (r.start + r.count) % len(r.entries)
	if r.count == len(r.entries) {
		r.start = (r.start + 1) % len(r.entries)
	} else {
		r.count++
	}
	r.entries[idx] = entry
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.Observe(entry)
	}
	if r.sink != nil {
		if err := r.sink.Write(context.Background(), entry); err != nil {
			log.Warn().Err(err).Str("operation", entry.OperationType).Msg("operation log sink write failed")
		}
	}
}

// AttachSink sets a durable sink for recorded entries
func (r *Recorder) AttachSink(sink Sink) {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
}

// Entries returns all recorded entries, oldest first
func (r *Recorder) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.entries[(r.start+i)%len(r.entries)])
	}
	return out
}

// EntriesSince returns entries recorded at or after t, oldest first
func (r *Recorder) EntriesSince(t time.Time) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if !e.Timestamp.Before(t) {
			out = append(out, e)
		}
	}
	return out
}
