package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/compost-sensor-etl/internal/domain"
	"github.com/couchcryptid/compost-sensor-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSensorID      = "d444f210-9025-11eb-b5ca-d76ebde59f16"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string, timeout time.Duration) *Client {
	return NewClient(baseURL, testSensorID, timeout,
		observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_FetchRows_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/getSensorData", r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get(headerContentType))
		assert.Equal(t, contentTypeJSON, r.Header.Get("Accept"))

		var req request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, testSensorID, req.SensorID)

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"sensor_data":[
			{"mv":"7.0","mvmin":"2.0","mvmax":"8.0","h":"55","st":"40","et":"22","timestamp":"2024-01-01T00:00:00Z"},
			{"mv":3.1,"mvmin":2.9,"mvmax":3.4,"h":60,"st":38.5,"et":20,"timestamp":"2023-12-31T23:30:00Z"}
		]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL+"/", 5*time.Second)
	rows, err := c.FetchRows(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, domain.RawValue("7.0"), rows[0].MV)
	assert.Equal(t, domain.RawValue("3.1"), rows[1].MV)
	assert.Equal(t, domain.RawValue("2023-12-31T23:30:00Z"), rows[1].Timestamp)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues("success")))
}

func TestClient_FetchRows_MalformedRowsKept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"sensor_data":[{"mv":"bad"},17,null]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	rows, err := c.FetchRows(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Empty(t, domain.FilterValid(rows))
}

func TestClient_FetchRows_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"sensor_data":[]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	rows, err := c.FetchRows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestClient_FetchRows_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"database unavailable"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.FetchRows(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "database unavailable")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues("error")))
}

func TestClient_FetchRows_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.FetchRows(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_FetchRows_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 50*time.Millisecond)
	_, err := c.FetchRows(context.Background())
	require.Error(t, err)
}

func TestClient_FetchRows_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.FetchRows(ctx)
	require.Error(t, err)
}
