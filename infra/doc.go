// Package infra holds the adapters around the simulation core: the zerolog
// logger, Prometheus and InfluxDB sinks, the MQTT publisher, the run stores
// and Sentry reporting. These packages depend only on interfaces defined in
// the core packages.
package infra
