package metricsource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakePrometheus(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query" {
			http.NotFound(w, r)
			return
		}
		require.NoError(t, r.ParseForm())
		body, ok := results[r.Form.Get("query")]
		if !ok {
			body = `{"status":"success","data":{"resultType":"vector","result":[]}}`
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func vector(v string) string {
	return `{"status":"success","data":{"resultType":"vector","result":[{"metric":{"job":"api"},"value":[1709294400,"` + v + `"]}]}}`
}

func TestPrometheusNext(t *testing.T) {
	srv := fakePrometheus(t, map[string]string{
		"latency_seconds": vector("1.25"),
		"failure_ratio":   vector("0.07"),
	})
	src, err := NewPrometheus(srv.URL, "latency_seconds", "failure_ratio", time.Second)
	require.NoError(t, err)

	s, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1250*time.Millisecond, s.Latency)
	assert.InDelta(t, 0.07, s.FailureRate, 1e-9)
}

func TestPrometheusEmptyVectorIsNoSample(t *testing.T) {
	srv := fakePrometheus(t, map[string]string{"latency_seconds": vector("0.2")})
	src, err := NewPrometheus(srv.URL, "latency_seconds", "failure_ratio", time.Second)
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, ErrNoSample)
}

func TestPrometheusServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	src, err := NewPrometheus(srv.URL, "a", "b", time.Second)
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	assert.Error(t, err)
}

func TestNewPrometheusRequiresQueries(t *testing.T) {
	_, err := NewPrometheus("http://localhost:9090", "", "b", 0)
	assert.Error(t, err)
}
