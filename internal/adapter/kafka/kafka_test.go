package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/compost-sensor-etl/internal/config"
	"github.com/couchcryptid/compost-sensor-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSensorID = "d444f210-9025-11eb-b5ca-d76ebde59f16"

func TestSerializeToMessage(t *testing.T) {
	observed := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	reading := domain.Reading{
		MethanePPM:      5000,
		MethanePPMMin:   4200,
		MethanePPMMax:   5800,
		HumidityPercent: 58.2,
		SensorTempC:     52.4,
		ExternalTempC:   18.1,
		ObservedAt:      observed,
	}

	msg, err := serializeToMessage(testSensorID, reading)
	require.NoError(t, err)

	assert.Equal(t, []byte(testSensorID), msg.Key)
	assert.JSONEq(t, `{
		"sensor_id": "d444f210-9025-11eb-b5ca-d76ebde59f16",
		"methane_ppm": 5000,
		"methane_ppm_min": 4200,
		"methane_ppm_max": 5800,
		"humidity_percent": 58.2,
		"sensor_temp_c": 52.4,
		"external_temp_c": 18.1,
		"observed_at": "2024-04-26T15:10:00Z"
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "sensor_id", msg.Headers[0].Key)
	assert.Equal(t, []byte(testSensorID), msg.Headers[0].Value)
	assert.Equal(t, "observed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[1].Value)
}

func TestSerializeToMessage_RoundTrip(t *testing.T) {
	reading := domain.Reading{MethanePPM: 10000, ObservedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	msg, err := serializeToMessage(testSensorID, reading)
	require.NoError(t, err)

	var decoded readingMessage
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, testSensorID, decoded.SensorID)
	assert.Equal(t, 10000, decoded.MethanePPM)
	assert.True(t, decoded.ObservedAt.Equal(reading.ObservedAt))
}

func TestWriter_LoadBatch_Empty(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaSinkTopic: "compost-sensor-readings"}
	w := NewWriter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.LoadBatch(context.Background(), testSensorID, nil))
}
