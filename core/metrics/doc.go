// Package metrics defines the sinks that receive closed simulation periods
// for observability. Sinks such as the Prometheus, InfluxDB and MQTT
// implementations in infra are registered by type name and built from
// configuration; NewPeriodSink returns a MultiSink automatically when
// several sinks are configured.
package metrics
