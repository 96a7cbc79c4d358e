package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/evpolicy/core/metrics"
	"github.com/kilianp07/evpolicy/core/model"
)

func TestInfluxSink_RecordPeriod(t *testing.T) {
	var body, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer func() { _ = sink.Close() }()
	run := coremetrics.RunInfo{ID: "run-1", Policy: model.PolicyConfig{Kind: model.PolicyPDCashback, Level: .4}}
	rec := sampleRecord()
	require.NoError(t, sink.RecordPeriod(context.Background(), run, rec))

	expected := strings.TrimSpace(write.PointToLineProtocol(sink.PeriodPoint(run, rec), time.Nanosecond))
	assert.Equal(t, "/api/v2/write", path)
	assert.Equal(t, expected, strings.TrimSpace(body))
	assert.Contains(t, body, "policy=pd_cashback")
	assert.Contains(t, body, "units_hybrid=4i")
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	assert.IsType(t, coremetrics.NopSink{}, sink)
	assert.True(t, called)
}
