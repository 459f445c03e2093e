package internaldefs

import (
	"strings"
	"testing"

	"github.com/MrEthical07/keynotify"
)

func TestCounterDefsCoverEveryCounter(t *testing.T) {
	seen := map[keynotify.MetricID]bool{}
	names := map[string]bool{}
	for _, def := range CounterDefs {
		if seen[def.ID] {
			t.Fatalf("duplicate counter id %d", def.ID)
		}
		if names[def.Name] {
			t.Fatalf("duplicate counter name %s", def.Name)
		}
		if !strings.HasPrefix(def.Name, "keynotify_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter name %q does not follow keynotify_*_total", def.Name)
		}
		seen[def.ID] = true
		names[def.Name] = true
	}

	snap := keynotify.NewMetrics(keynotify.MetricsConfig{Enabled: true}).Snapshot()
	if len(snap.Counters) != len(CounterDefs) {
		t.Fatalf("expected %d counter defs, snapshot has %d counters", len(snap.Counters), len(CounterDefs))
	}
	for id := range snap.Counters {
		if !seen[id] {
			t.Fatalf("counter %d has no definition", id)
		}
	}
}

func TestHistogramTablesAligned(t *testing.T) {
	if len(HistogramBounds) != 8 || len(HistogramBoundSuffix) != 8 {
		t.Fatalf("expected 8 bounds, got %d and %d", len(HistogramBounds), len(HistogramBoundSuffix))
	}
	if len(HistogramUpperBounds) != len(HistogramBounds)-1 {
		t.Fatalf("expected %d finite bounds, got %d", len(HistogramBounds)-1, len(HistogramUpperBounds))
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestApproximateSum(t *testing.T) {
	// one sample in the first bucket (0-50ms) sits at 25ms
	got := ApproximateSum([8]uint64{1})
	if got < 0.0249 || got > 0.0251 {
		t.Fatalf("expected 0.025, got %f", got)
	}
}
