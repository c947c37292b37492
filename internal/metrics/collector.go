package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// OperationType represents the kind of invocation being measured
type OperationType string

const (
	// PublishOperation represents a PutEvents call made by the producer
	PublishOperation OperationType = "PUBLISH"
	// ConsumeOperation represents a delivery handled by the consumer
	ConsumeOperation OperationType = "CONSUME"
)

// OperationMetric represents metrics for a single operation
type OperationMetric struct {
	Type         OperationType `json:"type"`
	Category     string        `json:"category"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      time.Time     `json:"endTime"`
	Duration     time.Duration `json:"duration"`
	ItemCount    int64         `json:"itemCount"`
	IsColdStart  bool          `json:"isColdStart"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

// Failed reports whether the operation returned an error
func (m *OperationMetric) Failed() bool {
	return m.ErrorMessage != ""
}

// MaxPending bounds the operations kept while the sink is failing; the oldest
// are dropped first
const MaxPending = 500

// Sink persists measured operations
type Sink interface {
	Write(ctx context.Context, metrics []*OperationMetric) error
}

// Collector measures operations of a function instance and hands them to a
// sink. The first measured operation of the instance is flagged as a cold start.
type Collector struct {
	mu        sync.Mutex
	pending   []*OperationMetric
	sink      Sink
	coldStart bool
	limit     int
	now       func() time.Time
}

// NewCollector creates a collector. A nil sink keeps metrics in memory only.
func NewCollector(sink Sink) *Collector {
	return &Collector{
		sink:      sink,
		coldStart: true,
		limit:     MaxPending,
		now:       time.Now,
	}
}

// MeasureOperation runs operation and records its duration and outcome. The
// item count is taken from the operation's return value.
func (c *Collector) MeasureOperation(
	opType OperationType,
	category string,
	operation func() (int64, error),
) error {
	if operation == nil {
		return fmt.Errorf("operation function cannot be nil")
	}

	c.mu.Lock()
	coldStart := c.coldStart
	c.coldStart = false
	c.mu.Unlock()

	metric := &OperationMetric{
		Type:        opType,
		Category:    category,
		StartTime:   c.now(),
		IsColdStart: coldStart,
	}

	items, err := operation()
	metric.EndTime = c.now()
	metric.Duration = metric.EndTime.Sub(metric.StartTime)
	metric.ItemCount = items

	if err != nil {
		metric.ErrorMessage = err.Error()
	}

	c.mu.Lock()
	c.pending = append(c.pending, metric)
	c.trim()
	c.mu.Unlock()

	return err
}

// Summary aggregates the operations that have not been flushed yet
func (c *Collector) Summary() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := make(map[string]interface{})
	opCount := int64(len(c.pending))
	if opCount == 0 {
		return summary
	}

	var totalDuration time.Duration
	var totalItems, errorCount, coldStartCount int64
	for _, op := range c.pending {
		totalDuration += op.Duration
		totalItems += op.ItemCount
		if op.Failed() {
			errorCount++
		}
		if op.IsColdStart {
			coldStartCount++
		}
	}

	summary["operationCount"] = opCount
	summary["totalDuration"] = totalDuration.Nanoseconds()
	summary["avgDuration"] = totalDuration.Nanoseconds() / opCount
	summary["totalItems"] = totalItems
	summary["successCount"] = opCount - errorCount
	summary["errorCount"] = errorCount
	summary["successRate"] = float64(opCount-errorCount) / float64(opCount)
	summary["coldStartCount"] = coldStartCount
	return summary
}

// trim drops the oldest pending operations beyond the limit. mu must be held.
func (c *Collector) trim() {
	if over := len(c.pending) - c.limit; over > 0 {
		c.pending = append([]*OperationMetric(nil), c.pending[over:]...)
	}
}

// Flush writes pending operations to the sink. Operations are dropped once
// the sink accepted them, or when more than MaxPending are waiting.
func (c *Collector) Flush(ctx context.Context) error {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(pending) == 0 || c.sink == nil {
		return nil
	}

	if err := c.sink.Write(ctx, pending); err != nil {
		c.mu.Lock()
		c.pending = append(pending, c.pending...)
		c.trim()
		c.mu.Unlock()
		return fmt.Errorf("failed to flush %d metrics: %w", len(pending), err)
	}
	return nil
}
