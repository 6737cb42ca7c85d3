package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/inventory-ledger/internal/breaker"
	"github.com/example/inventory-ledger/internal/domain/ledger"
	"github.com/example/inventory-ledger/internal/infrastructure/store"
	"github.com/example/inventory-ledger/internal/oplog"
)

// Stock status classifications
const (
	StatusInStock       = "in_stock"
	StatusLowStock      = "low_stock"
	StatusCriticalStock = "critical_stock"
	StatusOutOfStock    = "out_of_stock"
	StatusOverstocked   = "overstocked"
)

// baselineWindow is the trailing period used for allocation rates and
// anomaly baselines.
const baselineWindow = 30 * 24 * time.Hour

// anomalySigma is the deviation, in standard deviations, beyond which a
// day's activity is flagged.
const anomalySigma = 3.0

var ErrInvalidThresholds = errors.New("invalid threshold configuration")

// Thresholds configure stock-status classification
type Thresholds struct {
	LowStockMargin      int // low when available <= reserved + margin
	CriticalStockMargin int
	OverstockThreshold  int // overstocked when quantity >= threshold
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		LowStockMargin:      10,
		CriticalStockMargin: 3,
		OverstockThreshold:  1000,
	}
}

func (t Thresholds) Validate() error {
	if t.LowStockMargin < 0 || t.CriticalStockMargin < 0 || t.OverstockThreshold <= 0 {
		return ErrInvalidThresholds
	}
	if t.CriticalStockMargin > t.LowStockMargin {
		return fmt.Errorf("%w: critical margin above low margin", ErrInvalidThresholds)
	}
	return nil
}

// StockoutPrediction estimates when available stock runs out at the current
// allocation rate
type StockoutPrediction struct {
	DailyAllocationRate float64 `json:"daily_allocation_rate"`
	DaysUntilStockout   float64 `json:"days_until_stockout"`
}

// AnomalyReport compares today's operations against the rolling baseline
type AnomalyReport struct {
	CountDeviation       float64 `json:"count_deviation"`
	AmountDeviation      float64 `json:"amount_deviation"`
	SuccessRateDeviation float64 `json:"success_rate_deviation"`
	Anomalous            bool    `json:"anomalous"`
}

// HealthReport is the combined health-check result
type HealthReport struct {
	Healthy                bool              `json:"healthy"`
	StoreReachable         bool              `json:"store_reachable"`
	InconsistentAggregates []string          `json:"inconsistent_aggregates,omitempty"`
	BreakerStates          map[string]string `json:"breaker_states,omitempty"`
	Anomalous              bool              `json:"anomalous"`
	CheckedAt              time.Time         `json:"checked_at"`
}

// Monitor reads ledger state and event history to classify stock, predict
// stockouts, score anomalies, and run health checks. It never mutates data;
// inconsistencies are flagged for an out-of-band reconciliation job.
type Monitor struct {
	eventStore store.EventStoreInterface
	records    store.RecordStoreInterface
	ops        *oplog.Recorder
	thresholds Thresholds

	mu       sync.RWMutex
	breakers map[string]*breaker.Breaker

	now func() time.Time
}

// NewMonitor creates a monitor. records and ops may be nil; the corresponding
// checks degrade gracefully.
func NewMonitor(eventStore store.EventStoreInterface, records store.RecordStoreInterface, ops *oplog.Recorder, thresholds Thresholds) (*Monitor, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		eventStore: eventStore,
		records:    records,
		ops:        ops,
		thresholds: thresholds,
		breakers:   make(map[string]*breaker.Breaker),
		now:        time.Now,
	}, nil
}

// SetClock overrides the monitor clock, for tests
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// RegisterBreaker adds a breaker whose state feeds the health report
func (m *Monitor) RegisterBreaker(name string, b *breaker.Breaker) {
	m.mu.Lock()
	m.breakers[name] = b
	m.mu.Unlock()
}

// Classify maps raw quantities to a stock status
func (t Thresholds) Classify(quantity, reserved int) string {
	available := quantity - reserved
	switch {
	case available <= 0:
		return StatusOutOfStock
	case quantity >= t.OverstockThreshold:
		return StatusOverstocked
	case available <= reserved+t.CriticalStockMargin:
		return StatusCriticalStock
	case available <= reserved+t.LowStockMargin:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// StockStatus classifies a ledger's stock level
func (m *Monitor) StockStatus(l *ledger.Ledger) string {
	return m.thresholds.Classify(l.Quantity, l.ReservedQuantity)
}

// PredictedStockout estimates days until stockout. Pass rate <= 0 to use the
// historical allocation rate (allocated amounts over the trailing 30 days,
// divided by 30). Returns nil when nothing is being allocated.
func (m *Monitor) PredictedStockout(ctx context.Context, l *ledger.Ledger, rate float64) *StockoutPrediction {
	if rate <= 0 {
		rate = m.historicalAllocationRate(l.GetID())
	}
	if rate <= 0 {
		return nil
	}
	return &StockoutPrediction{
		DailyAllocationRate: rate,
		DaysUntilStockout:   float64(l.AvailableQuantity()) / rate,
	}
}

func (m *Monitor) historicalAllocationRate(aggregateID string) float64 {
	cutoff := m.now().Add(-baselineWindow)
	total := 0
	for _, event := range m.eventStore.GetEvents(aggregateID) {
		if event.EventType != ledger.EventStockAllocated || event.Timestamp.Before(cutoff) {
			continue
		}
		var data ledger.StockAllocated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			continue
		}
		total += data.Amount
	}
	return float64(total) / 30.0
}

// AnomalyScore compares the current day's operation counts, amounts, and
// success rate against daily buckets from the trailing 30 days.
func (m *Monitor) AnomalyScore() AnomalyReport {
	if m.ops == nil {
		return AnomalyReport{}
	}

	now := m.now()
	today := now.Truncate(24 * time.Hour)

	type bucket struct {
		count   float64
		amount  float64
		success float64
	}
	buckets := make(map[time.Time]*bucket)
	for _, entry := range m.ops.EntriesSince(now.Add(-baselineWindow)) {
		day := entry.Timestamp.Truncate(24 * time.Hour)
		b := buckets[day]
		if b == nil {
			b = &bucket{}
			buckets[day] = b
		}
		b.count++
		b.amount += float64(entry.Amount)
		if entry.Success {
			b.success++
		}
	}

	current := buckets[today]
	if current == nil {
		return AnomalyReport{}
	}

	var counts, amounts, rates []float64
	for day, b := range buckets {
		if day.Equal(today) {
			continue
		}
		counts = append(counts, b.count)
		amounts = append(amounts, b.amount)
		rates = append(rates, b.success/b.count)
	}
	if len(counts) < 2 {
		// Not enough history to form a baseline.
		return AnomalyReport{}
	}

	report := AnomalyReport{
		CountDeviation:       deviation(current.count, counts),
		AmountDeviation:      deviation(current.amount, amounts),
		SuccessRateDeviation: deviation(current.success/current.count, rates),
	}
	report.Anomalous = math.Abs(report.CountDeviation) > anomalySigma ||
		math.Abs(report.AmountDeviation) > anomalySigma ||
		math.Abs(report.SuccessRateDeviation) > anomalySigma
	return report
}

// deviation returns how many standard deviations value sits from the mean of
// the baseline samples. A flat baseline deviates only when the value differs.
func deviation(value float64, samples []float64) float64 {
	mean := 0.0
	for _, s := range samples {
		mean += s
	}
	mean /= float64(len(samples))

	variance := 0.0
	for _, s := range samples {
		variance += (s - mean) * (s - mean)
	}
	variance /= float64(len(samples))
	stddev := math.Sqrt(variance)

	if stddev == 0 {
		if value == mean {
			return 0
		}
		return math.Inf(1)
	}
	return (value - mean) / stddev
}

// HealthCheck combines store reachability, cached-state consistency, breaker
// states, and the anomaly flag into one report.
func (m *Monitor) HealthCheck(ctx context.Context) *HealthReport {
	report := &HealthReport{
		StoreReachable: true,
		BreakerStates:  make(map[string]string),
		CheckedAt:      m.now(),
	}

	if err := m.eventStore.Ping(ctx); err != nil {
		report.StoreReachable = false
		log.Error().Err(err).Msg("event store unreachable")
	}

	report.InconsistentAggregates = m.findInconsistencies(ctx)

	m.mu.RLock()
	anyOpen := false
	for name, b := range m.breakers {
		state := b.State()
		report.BreakerStates[name] = state.String()
		if state == breaker.StateOpen {
			anyOpen = true
		}
	}
	m.mu.RUnlock()

	report.Anomalous = m.AnomalyScore().Anomalous

	report.Healthy = report.StoreReachable &&
		len(report.InconsistentAggregates) == 0 &&
		!anyOpen &&
		!report.Anomalous
	return report
}

// findInconsistencies rebuilds each aggregate from its events and compares
// the result with the cached record. Divergent aggregates are reported, not
// repaired: the event log is authoritative and a reconciliation job owns the fix.
func (m *Monitor) findInconsistencies(ctx context.Context) []string {
	if m.records == nil {
		return nil
	}

	records, err := m.records.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("record store list failed")
		return nil
	}

	var inconsistent []string
	for _, record := range records {
		replayed, err := ledger.Replay(record.AggregateID, m.eventStore.GetEvents(record.AggregateID))
		if err != nil {
			log.Error().Err(err).Str("aggregate_id", record.AggregateID).Msg("replay failed")
			inconsistent = append(inconsistent, record.AggregateID)
			continue
		}
		if replayed.Quantity != record.Quantity ||
			replayed.ReservedQuantity != record.ReservedQuantity ||
			replayed.AllocatedQuantity != record.AllocatedQuantity {
			log.Warn().
				Str("aggregate_id", record.AggregateID).
				Int("cached_quantity", record.Quantity).
				Int("replayed_quantity", replayed.Quantity).
				Msg("cached state diverges from event log, flagging for reconciliation")
			inconsistent = append(inconsistent, record.AggregateID)
		}
	}
	return inconsistent
}
