package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/compost-sensor-etl/internal/domain"
	"github.com/couchcryptid/compost-sensor-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// RowSource fetches the raw telemetry rows for one sensor.
type RowSource interface {
	FetchRows(ctx context.Context) ([]domain.RawRow, error)
}

// Transformer derives a snapshot from fetched rows.
type Transformer interface {
	Transform(ctx context.Context, rows []domain.RawRow) domain.Snapshot
}

// SnapshotStore keeps the latest snapshot per sensor.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) error
	LatestSnapshot(ctx context.Context, sensorID string) (domain.Snapshot, error)
}

// ReadingLoader writes derived readings to the destination, oldest first.
type ReadingLoader interface {
	LoadBatch(ctx context.Context, sensorID string, readings []domain.Reading) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// futureTolerance absorbs clock skew between the sensor and this host.
	futureTolerance = 10 * time.Minute
)

// Pipeline orchestrates the fetch-derive-store-publish loop for one sensor.
type Pipeline struct {
	source       RowSource
	transformer  Transformer
	store        SnapshotStore
	loader       ReadingLoader
	logger       *slog.Logger
	metrics      *observability.Metrics
	ready        atomic.Bool
	pollInterval time.Duration

	// mark is the ObservedAt of the newest reading handed to the loader and
	// markSeen counts the readings already published at exactly that instant.
	// Only the goroutine running Poll touches them.
	mark     time.Time
	markSeen map[domain.Reading]int
}

// New creates a Pipeline. A nil loader disables publishing.
func New(src RowSource, t Transformer, store SnapshotStore, loader ReadingLoader, logger *slog.Logger, metrics *observability.Metrics, pollInterval time.Duration) *Pipeline {
	return &Pipeline{
		source:       src,
		transformer:  t,
		store:        store,
		loader:       loader,
		logger:       logger,
		metrics:      metrics,
		pollInterval: pollInterval,
		markSeen:     make(map[domain.Reading]int),
	}
}

// CheckReadiness returns nil once a snapshot has been stored,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not stored a snapshot yet")
	}
	return nil
}

// Run polls until the context is cancelled. Failed polls are retried with
// exponential backoff; successful polls wait pollInterval.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "poll_interval", p.pollInterval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		wait := p.pollInterval
		if err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("poll failed", "error", err, "retry_in", backoff)
			wait = backoff
			backoff = retry.NextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
		}

		if !retry.SleepWithContext(ctx, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// Poll runs one fetch-derive-store-publish cycle. The snapshot is stored
// even when publishing fails; unpublished readings are retried next poll.
func (p *Pipeline) Poll(ctx context.Context) error {
	start := time.Now()

	rows, err := p.source.FetchRows(ctx)
	if err != nil {
		p.metrics.Polls.WithLabelValues("error").Inc()
		return fmt.Errorf("fetch rows: %w", err)
	}

	snap := p.transformer.Transform(ctx, rows)

	if err := p.store.SaveSnapshot(ctx, snap); err != nil {
		p.metrics.Polls.WithLabelValues("error").Inc()
		return fmt.Errorf("save snapshot: %w", err)
	}
	p.ready.Store(true)

	if err := p.publish(ctx, snap); err != nil {
		p.metrics.Polls.WithLabelValues("error").Inc()
		p.metrics.PublishErrors.Inc()
		return fmt.Errorf("publish readings: %w", err)
	}

	p.metrics.Polls.WithLabelValues("success").Inc()
	p.metrics.PollDuration.Observe(time.Since(start).Seconds())
	return nil
}

// publish hands unpublished readings to the loader, oldest first, and
// advances the high-water mark once the write succeeds. Readings dated more
// than futureTolerance past the clock are held back so one skewed row cannot
// push the mark ahead of every real reading.
func (p *Pipeline) publish(ctx context.Context, snap domain.Snapshot) error {
	if p.loader == nil {
		return nil
	}

	horizon := domain.Now().Add(futureTolerance)
	current := make(domain.Series, 0, len(snap.Series))
	for _, r := range snap.Series {
		if r.ObservedAt.After(horizon) {
			continue
		}
		current = append(current, r)
	}
	if held := len(snap.Series) - len(current); held > 0 {
		p.logger.Warn("holding back future-dated readings",
			"sensor_id", snap.SensorID, "count", held, "horizon", horizon)
	}

	fresh := domain.NewerThan(current, p.mark)

	// Readings that share the mark's timestamp are published once each,
	// counting identical readings as duplicates.
	atMark := make(map[domain.Reading]int)
	for _, r := range current {
		if !r.ObservedAt.Equal(p.mark) {
			continue
		}
		k := readingKey(r)
		atMark[k]++
		if atMark[k] > p.markSeen[k] {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	batch := slices.Clone(fresh)
	slices.SortStableFunc(batch, func(a, b domain.Reading) int {
		return a.ObservedAt.Compare(b.ObservedAt)
	})

	if err := p.loader.LoadBatch(ctx, snap.SensorID, batch); err != nil {
		return err
	}

	newest := batch[len(batch)-1].ObservedAt
	if newest.After(p.mark) {
		p.mark = newest
		p.markSeen = make(map[domain.Reading]int)
		for _, r := range batch {
			if r.ObservedAt.Equal(newest) {
				p.markSeen[readingKey(r)]++
			}
		}
	} else {
		for k, n := range atMark {
			p.markSeen[k] = max(p.markSeen[k], n)
		}
	}

	p.metrics.ReadingsPublished.Add(float64(len(batch)))
	p.logger.Debug("published readings", "sensor_id", snap.SensorID, "count", len(batch), "through", p.mark)
	return nil
}

// readingKey normalizes the time zone so equal readings compare equal.
func readingKey(r domain.Reading) domain.Reading {
	r.ObservedAt = r.ObservedAt.UTC()
	return r
}
