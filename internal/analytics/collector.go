package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lets-connect/channel-search/pkg/kafka"
	"github.com/lets-connect/channel-search/pkg/metrics"
)

const (
	defaultBufferSize    = 10000
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	eventKey             = "analytics"
)

// Publisher writes a batch of events to the analytics topic.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers analytics events and publishes them in batches, flushing
// when a batch fills or every flush interval. Track never blocks: events
// are dropped when the buffer is full.
type Collector struct {
	publisher     Publisher
	metrics       *metrics.Metrics
	eventCh       chan any
	batchSize     int
	flushInterval time.Duration
	mu            sync.RWMutex
	closed        bool
	started       bool
	done          chan struct{}
	logger        *slog.Logger
}

// NewCollector creates a Collector with room for bufferSize pending events.
// m may be nil.
func NewCollector(publisher Publisher, bufferSize int, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Collector{
		publisher:     publisher,
		metrics:       m,
		eventCh:       make(chan any, bufferSize),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		done:          make(chan struct{}),
		logger:        slog.Default().With("component", "analytics-collector"),
	}
}

// Start launches the publish loop. It runs until ctx is cancelled or Close
// is called, flushing what is buffered before it exits.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background(), batch)
					return
				}
				batch = append(batch, kafka.Event{Key: eventKey, Value: event})
				if len(batch) >= c.batchSize {
					c.flush(ctx, batch)
					batch = batch[:0]
				}
			case <-ticker.C:
				c.flush(ctx, batch)
				batch = batch[:0]
			case <-ctx.Done():
				c.drainRemaining(batch)
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh), "batch_size", c.batchSize)
}

// Track enqueues event for publishing.
func (c *Collector) Track(event any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		if c.metrics != nil {
			c.metrics.AnalyticsEventsDropped.Inc()
		}
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the buffered ones to be
// published. It is safe to call more than once.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.eventCh)
	started := c.started
	c.mu.Unlock()
	if started {
		<-c.done
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics events", "count", len(batch), "error", err)
	}
}

// drainRemaining publishes the pending batch plus whatever is still queued,
// with a short deadline of its own.
func (c *Collector) drainRemaining(batch []kafka.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flush(ctx, batch)
				return
			}
			batch = append(batch, kafka.Event{Key: eventKey, Value: event})
		default:
			c.flush(ctx, batch)
			return
		}
	}
}
