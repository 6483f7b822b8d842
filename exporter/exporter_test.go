package exporter

import (
	"strings"
	"testing"

	"github.com/dehydr8/guardian-go/relay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type staticStats relay.Stats

func (s staticStats) Stats() relay.Stats { return relay.Stats(s) }

func TestRelayExporter(t *testing.T) {
	e := NewRelayExporter(staticStats{Received: 5, Forwarded: 3, Failed: 1, Suppressed: 1, Rejected: 2}, "abc1234")

	registry := prometheus.NewRegistry()
	registry.MustRegister(e)

	expected := `
# HELP guardian_alerts_forwarded_total Alerts forwarded to Telegram
# TYPE guardian_alerts_forwarded_total counter
guardian_alerts_forwarded_total 3
# HELP guardian_alerts_received_total Alerts received from devices
# TYPE guardian_alerts_received_total counter
guardian_alerts_received_total 5
# HELP guardian_build_info Build information of the relay
# TYPE guardian_build_info gauge
guardian_build_info{revision="abc1234"} 1
`

	err := testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"guardian_alerts_received_total",
		"guardian_alerts_forwarded_total",
		"guardian_build_info",
	)
	if err != nil {
		t.Error(err)
	}

	if n := testutil.CollectAndCount(e); n != 6 {
		t.Errorf("collected %d metrics, want 6", n)
	}
}
