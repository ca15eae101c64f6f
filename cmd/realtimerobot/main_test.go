package main

import (
	"bufio"
	"strings"
	"testing"
)

func TestScanMetricsPicksUnlabelledSamples(t *testing.T) {
	body := `# HELP realtimerobot_link_state Current link state.
# TYPE realtimerobot_link_state gauge
realtimerobot_link_state 3
realtimerobot_link_transitions_total 12
realtimerobot_link_drops_total{role="receiver"} 9
realtimerobot_poll_cycles_total 4.5e+02
`
	keys := []string{"realtimerobot_link_state", "realtimerobot_link_transitions_total", "realtimerobot_link_drops_total", "realtimerobot_poll_cycles_total"}
	got, err := scanMetrics(bufio.NewScanner(strings.NewReader(body)), keys)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got["realtimerobot_link_state"] != 3 || got["realtimerobot_link_transitions_total"] != 12 {
		t.Fatalf("unexpected values %v", got)
	}
	if got["realtimerobot_poll_cycles_total"] != 450 {
		t.Fatalf("expected exponent notation parsed, got %v", got["realtimerobot_poll_cycles_total"])
	}
	if _, ok := got["realtimerobot_link_drops_total"]; ok {
		t.Fatalf("labelled samples must be ignored")
	}
}
