package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/compost-sensor-etl/internal/domain"
	"github.com/couchcryptid/compost-sensor-etl/internal/observability"
)

const sensorDataPath = "/getSensorData"

// maxErrorBody caps how much of a non-200 response is quoted in the error.
const maxErrorBody = 512

// Client fetches raw telemetry rows for one sensor from the app server.
// It implements pipeline.RowSource.
type Client struct {
	baseURL    string
	sensorID   string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a telemetry client for sensorID.
func NewClient(baseURL, sensorID string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sensorID: sensorID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// FetchRows posts the sensor ID to /getSensorData and returns the rows of
// the sensor_data array, newest first as the server sends them. Rows are not
// validated here.
func (c *Client) FetchRows(ctx context.Context) ([]domain.RawRow, error) {
	start := time.Now()
	rows, err := c.fetch(ctx)
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.FetchRequests.WithLabelValues("success").Inc()
	c.logger.Debug("fetched telemetry rows", "sensor_id", c.sensorID, "rows", len(rows))
	return rows, nil
}

func (c *Client) fetch(ctx context.Context) ([]domain.RawRow, error) {
	body, err := json.Marshal(request{SensorID: c.sensorID})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sensorDataPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sensor data request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("sensor API error: status %d: %s", resp.StatusCode, msg)
	}

	var sensorResp response
	if err := json.NewDecoder(resp.Body).Decode(&sensorResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return domain.ParseRawRows(sensorResp.SensorData), nil
}

// Sensor API request and response types.

type request struct {
	SensorID string `json:"sensor_id"`
}

type response struct {
	SensorData []json.RawMessage `json:"sensor_data"`
}
