// Package telemetry keeps in-process statistics about approach queries served
// over MCP and HTTP. Nothing leaves the process.
package telemetry

import (
	"cmp"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP1    LatencyBucket = "p1"    // <1ms
	BucketP10   LatencyBucket = "p10"   // 1-10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP1000 LatencyBucket = "p1000" // >=100ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < time.Millisecond:
		return BucketP1
	case d < 10*time.Millisecond:
		return BucketP10
	case d < 50*time.Millisecond:
		return BucketP50
	case d < 100*time.Millisecond:
		return BucketP100
	default:
		return BucketP1000
	}
}

// =============================================================================
// Query Event
// =============================================================================

// QueryEvent describes one served approach query.
type QueryEvent struct {
	// Source is the surface that served the query, e.g. "mcp" or "http".
	Source string

	// Criteria names the filters that were set.
	Criteria []string

	ResultCount int
	Truncated   bool
	Cached      bool
	Latency     time.Duration
}

// IsZeroResult returns true if this query returned no results.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// describe renders the criteria for the zero-result list.
func (e QueryEvent) describe() string {
	if len(e.Criteria) == 0 {
		return "(no criteria)"
	}
	return strings.Join(e.Criteria, ",")
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer. Callers synchronize.
type CircularBuffer[T any] struct {
	items    []T
	head     int // next write position
	size     int
	capacity int
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in FIFO order (oldest first).
func (b *CircularBuffer[T]) Items() []T {
	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	return b.size
}

// =============================================================================
// Snapshot
// =============================================================================

// CriterionCount is how often one filter was used.
type CriterionCount struct {
	Criterion string `json:"criterion"`
	Count     int64  `json:"count"`
}

// Snapshot is an immutable copy of the collected metrics.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	TruncatedCount      int64                   `json:"truncated_count"`
	CacheHits           int64                   `json:"cache_hits"`
	SourceCounts        map[string]int64        `json:"source_counts"`
	TopCriteria         []CriterionCount        `json:"top_criteria"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the percentage of zero-result queries.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// CacheHitRate returns the fraction of queries answered from cache.
func (s *Snapshot) CacheHitRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.TotalQueries)
}

// =============================================================================
// Query Metrics
// =============================================================================

// Config configures the collector.
type Config struct {
	CriteriaCapacity    int // distinct criteria tracked (default: 32)
	ZeroResultsCapacity int // recent zero-result queries kept (default: 100)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CriteriaCapacity:    32,
		ZeroResultsCapacity: 100,
	}
}

// QueryMetrics collects query telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.RWMutex

	criteria        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	sources         map[string]int64
	totalQueries    int64
	zeroResultCount int64
	truncatedCount  int64
	cacheHits       int64
	startTime       time.Time
}

// NewQueryMetrics creates a collector with the default configuration.
func NewQueryMetrics() *QueryMetrics {
	return NewQueryMetricsWithConfig(DefaultConfig())
}

// NewQueryMetricsWithConfig creates a collector with cfg.
func NewQueryMetricsWithConfig(cfg Config) *QueryMetrics {
	if cfg.CriteriaCapacity <= 0 {
		cfg.CriteriaCapacity = 32
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}

	criteria, _ := lru.New[string, int64](cfg.CriteriaCapacity)
	return &QueryMetrics{
		criteria:    criteria,
		zeroResults: NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:   make(map[LatencyBucket]int64),
		sources:     make(map[string]int64),
		startTime:   time.Now(),
	}
}

// Record captures one query. A nil collector ignores it.
func (m *QueryMetrics) Record(event QueryEvent) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalQueries++
	m.sources[event.Source]++
	m.latencies[LatencyToBucket(event.Latency)]++

	for _, c := range event.Criteria {
		count, _ := m.criteria.Get(c)
		m.criteria.Add(c, count+1)
	}
	if event.IsZeroResult() {
		m.zeroResults.Add(event.describe())
		m.zeroResultCount++
	}
	if event.Truncated {
		m.truncatedCount++
	}
	if event.Cached {
		m.cacheHits++
	}
}

// Snapshot returns current metrics for reporting. Criteria are sorted by
// count descending, then by name.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var top []CriterionCount
	for _, key := range m.criteria.Keys() {
		if count, ok := m.criteria.Peek(key); ok {
			top = append(top, CriterionCount{Criterion: key, Count: count})
		}
	}
	slices.SortFunc(top, func(a, b CriterionCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Criterion, b.Criterion))
	})

	return &Snapshot{
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		TruncatedCount:      m.truncatedCount,
		CacheHits:           m.cacheHits,
		SourceCounts:        maps.Clone(m.sources),
		TopCriteria:         top,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: maps.Clone(m.latencies),
		Since:               m.startTime,
	}
}
