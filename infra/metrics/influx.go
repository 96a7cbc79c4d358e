package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/evpolicy/core/metrics"
	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/report"
	"github.com/kilianp07/evpolicy/infra/logger"
)

// InfluxSink writes one point per closed period to an InfluxDB instance
// using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
	// epoch anchors period timestamps: period t is written at epoch + t hours,
	// so every run of a policy lines up on the same axis.
	epoch time.Time
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
		epoch:    time.Unix(0, 0).UTC(),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.PeriodSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// PeriodPoint converts a record into its line-protocol point.
func (s *InfluxSink) PeriodPoint(run coremetrics.RunInfo, rec report.Record) *write.Point {
	p := write.NewPointWithMeasurement("period").
		AddTag("run_id", run.ID).
		AddTag("policy", string(run.Policy.Normalized().Kind)).
		AddTag("level", strconv.FormatFloat(run.Policy.Level, 'f', 1, 64)).
		AddField("period", rec.Period).
		AddField("green_market_share", round6(rec.GreenMarketShare)).
		AddField("hybrid_market_share", round6(rec.HybridMarketShare)).
		AddField("new_firms_share", round6(rec.NewFirmsShare)).
		AddField("emissions", round3(rec.Emissions)).
		AddField("emissions_index", round6(rec.EmissionsIndex)).
		AddField("benchmark_e", round6(rec.BenchmarkE)).
		AddField("emissions_cap", round6(rec.EmissionsCap)).
		AddField("public_expenditure", round3(rec.PublicExpenditure)).
		AddField("government_revenue", round3(rec.GovernmentRevenue)).
		AddField("firms", rec.Firms).
		AddField("bankruptcies", rec.Bankruptcies)
	for _, t := range model.Technologies {
		p = p.AddField("units_"+t.String(), rec.UnitsSold[t])
	}
	return p.SetTime(s.epoch.Add(time.Duration(rec.Period) * time.Hour))
}

// RecordPeriod writes the record as one point.
func (s *InfluxSink) RecordPeriod(ctx context.Context, run coremetrics.RunInfo, rec report.Record) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, s.PeriodPoint(run, rec))
}

// RecordSummary writes the averaged final period of a sweep cell.
func (s *InfluxSink) RecordSummary(ctx context.Context, policy model.PolicyConfig, rec report.Record) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("sweep_summary").
		AddTag("policy", string(policy.Normalized().Kind)).
		AddTag("level", strconv.FormatFloat(policy.Level, 'f', 1, 64)).
		AddField("green_market_share", round6(rec.GreenMarketShare)).
		AddField("hybrid_market_share", round6(rec.HybridMarketShare)).
		AddField("emissions_index", round6(rec.EmissionsIndex)).
		AddField("public_expenditure", round3(rec.PublicExpenditure)).
		AddField("government_revenue", round3(rec.GovernmentRevenue)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
