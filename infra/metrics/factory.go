package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/evpolicy/core/factory"
	coremetrics "github.com/kilianp07/evpolicy/core/metrics"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterPeriodSink("prometheus", func(map[string]any) (coremetrics.PeriodSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterPeriodSink("influx", func(conf map[string]any) (coremetrics.PeriodSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}
