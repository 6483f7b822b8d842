package exporter

import (
	"github.com/dehydr8/guardian-go/relay"
	"github.com/prometheus/client_golang/prometheus"
)

var _ prometheus.Collector = (*RelayExporter)(nil)

type StatsSource interface {
	Stats() relay.Stats
}

type RelayExporter struct {
	source StatsSource

	metricsReceived,
	metricsForwarded,
	metricsFailed,
	metricsSuppressed,
	metricsRejected,
	metricsBuildInfo *prometheus.Desc
}

func NewRelayExporter(source StatsSource, revision string) *RelayExporter {
	constLabels := prometheus.Labels{"revision": revision}

	return &RelayExporter{
		source: source,

		metricsReceived: prometheus.NewDesc("guardian_alerts_received_total",
			"Alerts received from devices",
			nil, nil),

		metricsForwarded: prometheus.NewDesc("guardian_alerts_forwarded_total",
			"Alerts forwarded to Telegram",
			nil, nil),

		metricsFailed: prometheus.NewDesc("guardian_alerts_failed_total",
			"Alerts that could not be forwarded",
			nil, nil),

		metricsSuppressed: prometheus.NewDesc("guardian_alerts_suppressed_total",
			"Duplicate alerts suppressed",
			nil, nil),

		metricsRejected: prometheus.NewDesc("guardian_alerts_rejected_total",
			"Alert requests rejected as malformed",
			nil, nil),

		metricsBuildInfo: prometheus.NewDesc("guardian_build_info",
			"Build information of the relay",
			nil, constLabels),
	}
}

func (e *RelayExporter) Collect(ch chan<- prometheus.Metric) {
	stats := e.source.Stats()

	ch <- prometheus.MustNewConstMetric(e.metricsReceived, prometheus.CounterValue, float64(stats.Received))
	ch <- prometheus.MustNewConstMetric(e.metricsForwarded, prometheus.CounterValue, float64(stats.Forwarded))
	ch <- prometheus.MustNewConstMetric(e.metricsFailed, prometheus.CounterValue, float64(stats.Failed))
	ch <- prometheus.MustNewConstMetric(e.metricsSuppressed, prometheus.CounterValue, float64(stats.Suppressed))
	ch <- prometheus.MustNewConstMetric(e.metricsRejected, prometheus.CounterValue, float64(stats.Rejected))
	ch <- prometheus.MustNewConstMetric(e.metricsBuildInfo, prometheus.GaugeValue, 1)
}

func (e *RelayExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.metricsReceived
	ch <- e.metricsForwarded
	ch <- e.metricsFailed
	ch <- e.metricsSuppressed
	ch <- e.metricsRejected
	ch <- e.metricsBuildInfo
}
