package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/compost-sensor-etl/internal/domain"
	"github.com/couchcryptid/compost-sensor-etl/internal/observability"
)

// SensorTransformer implements Transformer using the domain derivation
// functions, recording dropped rows and the newest reading as metrics.
type SensorTransformer struct {
	sensorID string
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a SensorTransformer for sensorID.
func NewTransformer(sensorID string, logger *slog.Logger, metrics *observability.Metrics) *SensorTransformer {
	return &SensorTransformer{
		sensorID: sensorID,
		logger:   logger,
		metrics:  metrics,
	}
}

func (t *SensorTransformer) Transform(_ context.Context, rows []domain.RawRow) domain.Snapshot {
	snap := domain.NewSnapshot(t.sensorID, rows)

	t.metrics.RowsFetched.Add(float64(snap.RowsFetched))
	t.metrics.RowsDropped.Add(float64(snap.RowsDropped))
	if snap.RowsDropped > 0 {
		t.logger.Warn("dropped malformed telemetry rows",
			"sensor_id", t.sensorID,
			"dropped", snap.RowsDropped,
			"fetched", snap.RowsFetched,
		)
	}

	latest, ok := snap.Latest()
	if !ok {
		t.logger.Info("no usable telemetry rows", "sensor_id", t.sensorID, "fetched", snap.RowsFetched)
		return snap
	}

	t.metrics.MethanePPM.Set(float64(latest.MethanePPM))
	t.metrics.HumidityPercent.Set(latest.HumidityPercent)
	t.metrics.SensorTempC.Set(latest.SensorTempC)
	t.metrics.ExternalTempC.Set(latest.ExternalTempC)
	return snap
}
