// Package metrics exposes TV bridge counters and gauges to Prometheus.
package metrics
