package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/compost-sensor-etl/internal/adapter/http"
	"github.com/couchcryptid/compost-sensor-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSensorID = "d444f210-9025-11eb-b5ca-d76ebde59f16"

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockSnapshots struct {
	snap domain.Snapshot
	err  error
}

func (m *mockSnapshots) LatestSnapshot(_ context.Context, sensorID string) (domain.Snapshot, error) {
	if m.err != nil {
		return domain.Snapshot{}, m.err
	}
	if sensorID != m.snap.SensorID {
		return domain.Snapshot{}, domain.ErrNoSnapshot
	}
	return m.snap, nil
}

var testView = httpadapter.SensorView{
	SensorID:        testSensorID,
	WindowReference: domain.ReferenceLatest,
	WindowDays:      1,
}

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, &mockSnapshots{err: domain.ErrNoSnapshot}, testView, slog.Default())
}

func newSnapshotServer(snaps *mockSnapshots) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{}, snaps, testView, slog.Default())
}

// testSnapshot holds readings at 0h, 6h, 30h and 60h before 2024-01-02 00:00 UTC.
func testSnapshot() domain.Snapshot {
	latest := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return domain.Snapshot{
		SensorID: testSensorID,
		Series: domain.Series{
			{MethanePPM: 5000, MethanePPMMin: 4200, MethanePPMMax: 5800, HumidityPercent: 58, SensorTempC: 50, ExternalTempC: 25, ObservedAt: latest},
			{MethanePPM: 2000, ObservedAt: latest.Add(-6 * time.Hour)},
			{MethanePPM: 1000, ObservedAt: latest.Add(-30 * time.Hour)},
			{MethanePPM: 0, ObservedAt: latest.Add(-60 * time.Hour)},
		},
		RowsFetched: 5,
		RowsDropped: 1,
		GeneratedAt: latest.Add(time.Minute),
	}
}

func get(t *testing.T, srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(fmt.Errorf("no snapshot yet")), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no snapshot yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

type latestBody struct {
	SensorID string          `json:"sensor_id"`
	Reading  *domain.Reading `json:"reading"`
	Display  *domain.Display `json:"display"`
}

func TestLatestReturnsReadingAndDisplay(t *testing.T) {
	rec := get(t, newSnapshotServer(&mockSnapshots{snap: testSnapshot()}), "/api/v1/sensor")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body latestBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, testSensorID, body.SensorID)
	require.NotNil(t, body.Reading)
	assert.Equal(t, 5000, body.Reading.MethanePPM)
	require.NotNil(t, body.Display)
	assert.Equal(t, "Tuesday, January 2nd, 2024, 12:00:00 AM", body.Display.ObservedAt)
	assert.Equal(t, "Range in last 30 minutes: 4200 ppm - 5800 ppm", body.Display.MethaneRange)
	assert.InDelta(t, 50.0, body.Display.SensorTempFill, 1e-9)
	assert.InDelta(t, 25.0, body.Display.ExternalTempFill, 1e-9)
}

func TestLatestEmptySnapshot(t *testing.T) {
	snap := domain.Snapshot{SensorID: testSensorID, Series: domain.Series{}, RowsFetched: 2, RowsDropped: 2}
	rec := get(t, newSnapshotServer(&mockSnapshots{snap: snap}), "/api/v1/sensor")

	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "null", string(raw["reading"]))
	assert.NotContains(t, raw, "display")
}

func TestLatestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "no snapshot yet", err: domain.ErrNoSnapshot, want: http.StatusServiceUnavailable},
		{name: "wrapped no snapshot", err: fmt.Errorf("lookup: %w", domain.ErrNoSnapshot), want: http.StatusServiceUnavailable},
		{name: "store failure", err: errors.New("connection refused"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newSnapshotServer(&mockSnapshots{err: tt.err}), "/api/v1/sensor")

			assert.Equal(t, tt.want, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body["error"], "connection refused")
		})
	}
}

type historyBody struct {
	Reference string        `json:"reference"`
	Days      int           `json:"days"`
	Readings  domain.Series `json:"readings"`
}

func ppms(series domain.Series) []int {
	out := make([]int, len(series))
	for i, r := range series {
		out[i] = r.MethanePPM
	}
	return out
}

func TestHistoryWindows(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	tests := []struct {
		name     string
		query    string
		wantRef  string
		wantDays int
		wantPPM  []int
	}{
		{name: "defaults", query: "", wantRef: "latest", wantDays: 1, wantPPM: []int{5000, 2000}},
		{name: "two days", query: "?days=2", wantRef: "latest", wantDays: 2, wantPPM: []int{5000, 2000, 1000}},
		{name: "three days", query: "?days=3", wantRef: "latest", wantDays: 3, wantPPM: []int{5000, 2000, 1000, 0}},
		// now is 36h after the newest reading.
		{name: "now one day", query: "?reference=now&days=1", wantRef: "now", wantDays: 1, wantPPM: []int{}},
		{name: "now two days", query: "?reference=now&days=2", wantRef: "now", wantDays: 2, wantPPM: []int{5000, 2000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newSnapshotServer(&mockSnapshots{snap: testSnapshot()}), "/api/v1/sensor/history"+tt.query)

			require.Equal(t, http.StatusOK, rec.Code)
			var body historyBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantRef, body.Reference)
			assert.Equal(t, tt.wantDays, body.Days)
			require.NotNil(t, body.Readings)
			assert.Equal(t, tt.wantPPM, ppms(body.Readings))
		})
	}
}

func TestHistoryRejectsBadQuery(t *testing.T) {
	for _, query := range []string{"?days=0", "?days=-1", "?days=366", "?days=abc", "?days=1.5", "?reference=yesterday"} {
		t.Run(query, func(t *testing.T) {
			rec := get(t, newSnapshotServer(&mockSnapshots{snap: testSnapshot()}), "/api/v1/sensor/history"+query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHistoryBeforeFirstSnapshot(t *testing.T) {
	rec := get(t, newSnapshotServer(&mockSnapshots{err: domain.ErrNoSnapshot}), "/api/v1/sensor/history?days=2")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnknownMethodRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	srv := newSnapshotServer(&mockSnapshots{snap: testSnapshot()})
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sensor", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
