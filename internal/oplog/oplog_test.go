package oplog

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink records everything written to it and can fail on demand
type captureSink struct {
	entries []Entry
	err     error
}

func (s *captureSink) Write(ctx context.Context, entry Entry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

// ============================================
// Recorder Tests
// ============================================

func TestRecorder_RecordAndEntries(t *testing.T) {
	r := NewRecorder(10, nil)

	r.Record(Entry{OperationType: "reserve", AggregateID: "sku-1:web", Amount: 5, Success: true})
	r.Record(Entry{OperationType: "allocate", AggregateID: "sku-1:web", Amount: 5, Success: false, FailureReason: "insufficient reserved stock"})

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "reserve", entries[0].OperationType)
	assert.Equal(t, "allocate", entries[1].OperationType)
	assert.False(t, entries[1].Success)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestRecorder_RingEviction(t *testing.T) {
	r := NewRecorder(3, nil)

	for i := 0; i < 5; i++ {
		r.Record(Entry{Amount: i})
	}

	entries := r.Entries()
	require.Len(t, entries, 3)
	// Oldest first, oldest two evicted.
	assert.Equal(t, 2, entries[0].Amount)
	assert.Equal(t, 4, entries[2].Amount)
}

func TestRecorder_EntriesSince(t *testing.T) {
	r := NewRecorder(10, nil)
	now := time.Now()

	r.Record(Entry{Amount: 1, Timestamp: now.Add(-2 * time.Hour)})
	r.Record(Entry{Amount: 2, Timestamp: now.Add(-time.Minute)})
	r.Record(Entry{Amount: 3, Timestamp: now})

	since := r.EntriesSince(now.Add(-time.Hour))
	require.Len(t, since, 2)
	assert.Equal(t, 2, since[0].Amount)
	assert.Equal(t, 3, since[1].Amount)
}

func TestRecorder_ZeroCapacityUsesDefault(t *testing.T) {
	r := NewRecorder(0, nil)
	r.Record(Entry{Amount: 1})
	assert.Len(t, r.Entries(), 1)
}

// ============================================
// Sink Tests
// ============================================

func TestRecorder_MirrorsToSink(t *testing.T) {
	r := NewRecorder(10, nil)
	sink := &captureSink{}
	r.AttachSink(sink)

	r.Record(Entry{OperationType: "sync", Success: true})

	require.Len(t, sink.entries, 1)
	assert.Equal(t, "sync", sink.entries[0].OperationType)
}

func TestRecorder_SinkFailureDoesNotLoseEntry(t *testing.T) {
	r := NewRecorder(10, nil)
	r.AttachSink(&captureSink{err: assert.AnError})

	r.Record(Entry{OperationType: "reserve"})

	// A failing sink is best effort; the in-memory ring still has it.
	assert.Len(t, r.Entries(), 1)
}

// ============================================
// Metrics Tests
// ============================================

func TestRecorder_ObservesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	r := NewRecorder(10, metrics)

	r.Record(Entry{OperationType: "reserve", Success: true, Duration: 5 * time.Millisecond})
	r.Record(Entry{OperationType: "reserve", Success: false, Duration: time.Millisecond})
	r.Record(Entry{OperationType: "allocate", Success: true, Duration: time.Millisecond})

	count := testutil.ToFloat64(metrics.operationsTotal.WithLabelValues("reserve", "success"))
	assert.Equal(t, 1.0, count)
	count = testutil.ToFloat64(metrics.operationsTotal.WithLabelValues("reserve", "failure"))
	assert.Equal(t, 1.0, count)
	count = testutil.ToFloat64(metrics.operationsTotal.WithLabelValues("allocate", "success"))
	assert.Equal(t, 1.0, count)
}
